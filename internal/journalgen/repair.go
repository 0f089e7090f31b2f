package journalgen

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AnshRaj112/journeygen-backend/internal/apperr"
	"github.com/AnshRaj112/journeygen-backend/internal/models"
)

// PromptPolicy decides what happens when a section does not carry exactly
// models.PromptsPerSection prompts.
type PromptPolicy string

const (
	PolicyPad    PromptPolicy = "pad"
	PolicyReject PromptPolicy = "reject"
	PolicyOff    PromptPolicy = "off"
)

// DefaultClosing is appended when the model leaves the closing section out.
func DefaultClosing() models.Section {
	return models.Section{
		EntryType: models.EntryClosing,
		Title:     "Closing",
		Content:   "Thank you for completing this journal. Please use the prompts below to finalize your reflection.",
		Prompts: []models.Prompt{
			{Text: "How do you feel now that you have explored this topic?"},
			{Text: "What is your main takeaway from this journal?"},
			{Text: "How will you apply these insights going forward?"},
			{Text: "Is there anything else you wish to reflect on before closing?"},
			{Text: "Submit your final thoughts when you’re ready."},
		},
	}
}

// fillerPrompts top up sections that came back short under PolicyPad.
var fillerPrompts = []string{
	"What stands out to you most in this section?",
	"How does this connect to your own experience?",
	"What feels most challenging about this for you right now?",
	"What is one small step you could take based on this?",
	"What would you like to remember from this section?",
}

// MalformedOutput carries the raw model reply that could not be parsed.
type MalformedOutput struct {
	Raw string
	Err error
}

func (m *MalformedOutput) Error() string { return "generated text is not valid JSON: " + m.Err.Error() }

func (m *MalformedOutput) Unwrap() error { return m.Err }

type FieldProblem struct {
	Field   string
	Problem string
}

// ValidationResult lists everything wrong with a parsed reply.
type ValidationResult struct {
	Problems []FieldProblem
}

func (v *ValidationResult) add(field, format string, args ...interface{}) {
	v.Problems = append(v.Problems, FieldProblem{Field: field, Problem: fmt.Sprintf(format, args...)})
}

func (v ValidationResult) OK() bool { return len(v.Problems) == 0 }

func (v ValidationResult) Error() string {
	parts := make([]string, 0, len(v.Problems))
	for _, p := range v.Problems {
		parts = append(parts, p.Field+": "+p.Problem)
	}
	return strings.Join(parts, "; ")
}

// Repairs records which fixes were applied to a reply.
type Repairs struct {
	TrailingComma  bool
	ClosingAdded   bool
	ClosingMoved   bool
	ExtraClosings  int
	PromptsPadded  int
	PromptsTrimmed int
}

// GeneratedJournal is a reply that passed parsing, validation and repair.
type GeneratedJournal struct {
	Title           string
	Description     string
	TableOfContents []models.Section
	Repairs         Repairs
}

// ParseJournal turns raw model text into a GeneratedJournal. The trailing-comma
// repair is tried at most once.
func ParseJournal(raw string, policy PromptPolicy) (*GeneratedJournal, error) {
	value, repaired, err := decode(raw)
	if err != nil {
		return nil, apperr.New(apperr.MalformedGeneration, "failed to parse generated journal", &MalformedOutput{Raw: raw, Err: err})
	}

	out, result := validate(value)
	if !result.OK() {
		return nil, apperr.New(apperr.UnexpectedShape, "unexpected response shape from model", result)
	}
	out.Repairs.TrailingComma = repaired

	enforceClosing(out)

	if result := applyPromptPolicy(out, policy); !result.OK() {
		return nil, apperr.New(apperr.UnexpectedShape, "unexpected prompt count from model", result)
	}
	return out, nil
}

func decode(raw string) (value interface{}, repaired bool, err error) {
	if err = json.Unmarshal([]byte(raw), &value); err == nil {
		return value, false, nil
	}
	fixed := stripTrailingCommas(raw)
	if fixed == raw {
		return nil, false, err
	}
	if retryErr := json.Unmarshal([]byte(fixed), &value); retryErr != nil {
		return nil, false, err
	}
	return value, true, nil
}

// stripTrailingCommas drops every comma that is followed only by whitespace
// and a closing bracket or brace. String literals are copied untouched.
func stripTrailingCommas(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	inString, escaped := false, false
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			b.WriteByte(c)
			continue
		}
		switch c {
		case '"':
			inString = true
		case ',':
			j := i + 1
			for j < len(raw) && isJSONSpace(raw[j]) {
				j++
			}
			if j < len(raw) && (raw[j] == ']' || raw[j] == '}') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isJSONSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func validate(value interface{}) (*GeneratedJournal, ValidationResult) {
	var result ValidationResult
	obj, ok := value.(map[string]interface{})
	if !ok {
		result.add("$", "expected an object, got %s", typeName(value))
		return nil, result
	}

	out := &GeneratedJournal{}
	if out.Title, ok = obj["title"].(string); !ok {
		result.add("title", "expected a string, got %s", typeName(obj["title"]))
	}
	if out.Description, ok = obj["description"].(string); !ok {
		result.add("description", "expected a string, got %s", typeName(obj["description"]))
	}
	entries, ok := obj["tableOfContents"].([]interface{})
	if !ok {
		result.add("tableOfContents", "expected an array, got %s", typeName(obj["tableOfContents"]))
		return out, result
	}

	out.TableOfContents = make([]models.Section, 0, len(entries))
	for i, entry := range entries {
		field := fmt.Sprintf("tableOfContents[%d]", i)
		section, ok := entry.(map[string]interface{})
		if !ok {
			result.add(field, "expected an object, got %s", typeName(entry))
			continue
		}
		out.TableOfContents = append(out.TableOfContents, normalizeSection(field, section, &result))
	}
	return out, result
}

func normalizeSection(field string, obj map[string]interface{}, result *ValidationResult) models.Section {
	s := models.Section{EntryType: parseEntryType(obj["entryType"])}

	switch v := obj["title"].(type) {
	case string:
		s.Title = v
	case nil:
	default:
		result.add(field+".title", "expected a string, got %s", typeName(v))
	}
	switch v := obj["content"].(type) {
	case string:
		s.Content = v
	case nil:
	default:
		result.add(field+".content", "expected a string, got %s", typeName(v))
	}

	switch v := obj["prompts"].(type) {
	case nil:
		s.Prompts = []models.Prompt{}
	case []interface{}:
		s.Prompts = make([]models.Prompt, 0, len(v))
		for _, p := range v {
			if text, ok := promptText(p); ok {
				s.Prompts = append(s.Prompts, models.Prompt{Text: text})
			}
		}
	default:
		result.add(field+".prompts", "expected an array, got %s", typeName(v))
	}
	return s
}

// promptText accepts {"text": "..."} or a bare string.
func promptText(v interface{}) (string, bool) {
	switch p := v.(type) {
	case string:
		p = strings.TrimSpace(p)
		return p, p != ""
	case map[string]interface{}:
		text, ok := p["text"].(string)
		text = strings.TrimSpace(text)
		return text, ok && text != ""
	}
	return "", false
}

func parseEntryType(v interface{}) models.EntryType {
	s, _ := v.(string)
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "part":
		return models.EntryPart
	case "closing":
		return models.EntryClosing
	default:
		return models.EntrySection
	}
}

// enforceClosing leaves exactly one Closing entry, last. The first Closing the
// model produced wins; later ones become plain sections.
func enforceClosing(j *GeneratedJournal) {
	closingAt := -1
	for i := range j.TableOfContents {
		if j.TableOfContents[i].EntryType != models.EntryClosing {
			continue
		}
		if closingAt == -1 {
			closingAt = i
			continue
		}
		j.TableOfContents[i].EntryType = models.EntrySection
		j.Repairs.ExtraClosings++
	}

	switch {
	case closingAt == -1:
		j.TableOfContents = append(j.TableOfContents, DefaultClosing())
		j.Repairs.ClosingAdded = true
	case closingAt != len(j.TableOfContents)-1:
		closing := j.TableOfContents[closingAt]
		j.TableOfContents = append(j.TableOfContents[:closingAt], j.TableOfContents[closingAt+1:]...)
		j.TableOfContents = append(j.TableOfContents, closing)
		j.Repairs.ClosingMoved = true
	}
}

func applyPromptPolicy(j *GeneratedJournal, policy PromptPolicy) ValidationResult {
	var result ValidationResult
	for i := range j.TableOfContents {
		s := &j.TableOfContents[i]
		n := len(s.Prompts)
		if n == models.PromptsPerSection {
			continue
		}
		switch policy {
		case PolicyReject:
			result.add(fmt.Sprintf("tableOfContents[%d].prompts", i), "expected %d prompts, got %d", models.PromptsPerSection, n)
		case PolicyPad:
			if n > models.PromptsPerSection {
				s.Prompts = s.Prompts[:models.PromptsPerSection]
				j.Repairs.PromptsTrimmed++
				continue
			}
			s.Prompts = padPrompts(s.Prompts)
			j.Repairs.PromptsPadded++
		}
	}
	return result
}

func padPrompts(prompts []models.Prompt) []models.Prompt {
	have := make(map[string]bool, len(prompts))
	for _, p := range prompts {
		have[p.Text] = true
	}
	for _, filler := range fillerPrompts {
		if len(prompts) == models.PromptsPerSection {
			break
		}
		if !have[filler] {
			prompts = append(prompts, models.Prompt{Text: filler})
		}
	}
	return prompts
}

func typeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "nothing"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}
