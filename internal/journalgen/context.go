package journalgen

import (
	"context"
	_ "embed"
	"errors"
	"io/fs"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/AnshRaj112/journeygen-backend/internal/models"
	"github.com/AnshRaj112/journeygen-backend/pkg/logger"
)

const (
	// MaxDocChars bounds how much of a single knowledge document reaches a prompt.
	MaxDocChars     = 2000
	truncatedMarker = "\n\n[...truncated]"
	maxParallelRead = 4
)

// builtinBackground is used when no default background file is configured.
//
//go:embed background.txt
var builtinBackground string

type BackgroundSource string

const (
	SourceKnowledge BackgroundSource = "knowledge"
	SourceCaller    BackgroundSource = "caller"
	SourceDefault   BackgroundSource = "default"
	SourceNone      BackgroundSource = "none"
)

// KnowledgeLister returns knowledge documents, most recently uploaded first.
type KnowledgeLister interface {
	ListKnowledgeDocs(ctx context.Context) ([]models.KnowledgeDoc, error)
}

// FileReader reads stored file content by locator.
type FileReader interface {
	Read(ctx context.Context, locator string) ([]byte, error)
}

// PromptContext is everything a prompt needs besides the task itself.
type PromptContext struct {
	Background       string
	Source           BackgroundSource
	ClientName       string
	ClientBackground string
}

// Aggregator assembles PromptContext fresh on every call.
type Aggregator struct {
	docs        KnowledgeLister
	files       FileReader
	defaultFile string
	log         *logger.Logger
}

func NewAggregator(docs KnowledgeLister, files FileReader, defaultFile string, log *logger.Logger) *Aggregator {
	return &Aggregator{docs: docs, files: files, defaultFile: defaultFile, log: log}
}

// Build resolves the background with precedence knowledge documents, then
// callerBackground, then the default background file, then nothing.
func (a *Aggregator) Build(ctx context.Context, client *models.Client, callerBackground string) (PromptContext, error) {
	pc := PromptContext{Source: SourceNone}
	if client != nil {
		pc.ClientName = client.FullName()
		pc.ClientBackground = strings.TrimSpace(client.Background)
	}

	knowledge, err := a.knowledgeText(ctx)
	if err != nil {
		return pc, err
	}

	switch {
	case knowledge != "":
		pc.Background, pc.Source = "Knowledge Bank Documents:"+knowledge, SourceKnowledge
	case strings.TrimSpace(callerBackground) != "":
		pc.Background, pc.Source = strings.TrimSpace(callerBackground), SourceCaller
	default:
		if text := a.defaultBackground(); text != "" {
			pc.Background, pc.Source = text, SourceDefault
		}
	}
	return pc, nil
}

// knowledgeText reads every document concurrently and joins them in list order.
// Unreadable documents are skipped.
func (a *Aggregator) knowledgeText(ctx context.Context) (string, error) {
	if a.docs == nil {
		return "", nil
	}
	docs, err := a.docs.ListKnowledgeDocs(ctx)
	if err != nil {
		return "", err
	}
	if len(docs) == 0 {
		return "", nil
	}

	texts := make([]string, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelRead)
	for i, doc := range docs {
		g.Go(func() error {
			data, err := a.files.Read(gctx, doc.FileURL)
			if err != nil {
				a.log.Warn("could not read knowledge doc", "doc_id", doc.ID.Hex(), "name", doc.Name, "error", err)
				return nil
			}
			texts[i] = truncateDoc(string(data))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var b strings.Builder
	for i, doc := range docs {
		text := strings.TrimSpace(texts[i])
		if text == "" {
			continue
		}
		b.WriteString("\n\n=== ")
		b.WriteString(doc.Name)
		b.WriteString(" ===\n")
		b.WriteString(text)
	}
	return b.String(), nil
}

// defaultBackground reads the configured file, or returns the built-in text
// when no file is configured. A configured file that is missing yields "".
func (a *Aggregator) defaultBackground() string {
	if a.defaultFile == "" {
		return strings.TrimSpace(builtinBackground)
	}
	data, err := os.ReadFile(a.defaultFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			a.log.Warn("could not read default background", "path", a.defaultFile, "error", err)
		}
		return ""
	}
	return strings.TrimSpace(string(data))
}

func truncateDoc(text string) string {
	runes := []rune(text)
	if len(runes) <= MaxDocChars {
		return text
	}
	return string(runes[:MaxDocChars]) + truncatedMarker
}
