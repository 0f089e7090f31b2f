package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/AnshRaj112/journeygen-backend/internal/apperr"
	"github.com/AnshRaj112/journeygen-backend/internal/events"
	"github.com/AnshRaj112/journeygen-backend/internal/llm"
	"github.com/AnshRaj112/journeygen-backend/internal/storage"
)

// FileStore keeps file bodies in memory. Locators in Broken fail to read.
type FileStore struct {
	mu     sync.Mutex
	files  map[string][]byte
	seq    int
	Broken map[string]bool
}

func NewFileStore() *FileStore {
	return &FileStore{files: make(map[string][]byte), Broken: make(map[string]bool)}
}

func (s *FileStore) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	loc := fmt.Sprintf("%s%d-%s", storage.URLPrefix, s.seq, name)
	s.files[loc] = data
	return loc, nil
}

// PutFile stores data under an explicit locator.
func (s *FileStore) PutFile(locator, data string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[locator] = []byte(data)
}

func (s *FileStore) Read(ctx context.Context, locator string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Broken[locator] {
		return nil, fmt.Errorf("read %s: i/o error", locator)
	}
	data, ok := s.files[locator]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return bytes.Clone(data), nil
}

func (s *FileStore) Delete(ctx context.Context, locator string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, locator)
	return nil
}

func (s *FileStore) Has(locator string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[locator]
	return ok
}

// Generator replays canned replies in order; the last one repeats.
type Generator struct {
	mu       sync.Mutex
	Replies  []string
	Err      error
	Requests []llm.Request
}

func NewGenerator(replies ...string) *Generator {
	return &Generator{Replies: replies}
}

func (g *Generator) Generate(ctx context.Context, req llm.Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Requests = append(g.Requests, req)
	if g.Err != nil {
		return "", g.Err
	}
	if len(g.Replies) == 0 {
		return "", apperr.Newf(apperr.EmptyGeneration, "model returned no text")
	}
	reply := g.Replies[0]
	if len(g.Replies) > 1 {
		g.Replies = g.Replies[1:]
	}
	return reply, nil
}

func (g *Generator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Requests)
}

func (g *Generator) LastRequest() llm.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.Requests) == 0 {
		return llm.Request{}
	}
	return g.Requests[len(g.Requests)-1]
}

// Publisher records published events.
type Publisher struct {
	mu     sync.Mutex
	Events []events.Event
}

func (p *Publisher) Publish(_ context.Context, evt events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, evt)
}

func (p *Publisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.Events))
	for _, e := range p.Events {
		out = append(out, e.Type)
	}
	return out
}

// Mailer records invitations instead of sending them.
type Mailer struct {
	mu   sync.Mutex
	Sent []Invite
	Err  error
}

type Invite struct {
	To   string
	Name string
	Link string
}

func (m *Mailer) SendInvite(ctx context.Context, to, name, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, Invite{To: to, Name: name, Link: link})
	return m.Err
}

func (m *Mailer) Invites() []Invite {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Invite(nil), m.Sent...)
}
