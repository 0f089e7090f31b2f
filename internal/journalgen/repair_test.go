package journalgen

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/journeygen-backend/internal/apperr"
	"github.com/AnshRaj112/journeygen-backend/internal/models"
	"github.com/AnshRaj112/journeygen-backend/internal/testutil"
)

func closingCount(toc []models.Section) int {
	n := 0
	for _, s := range toc {
		if s.EntryType == models.EntryClosing {
			n++
		}
	}
	return n
}

func TestParseJournalValid(t *testing.T) {
	out, err := ParseJournal(testutil.JournalJSON("Focus", 2, true), PolicyPad)
	require.NoError(t, err)

	assert.Equal(t, "Focus", out.Title)
	require.Len(t, out.TableOfContents, 3)
	assert.Equal(t, models.EntryPart, out.TableOfContents[0].EntryType)
	assert.Equal(t, models.EntryClosing, out.TableOfContents[2].EntryType)
	assert.Equal(t, Repairs{}, out.Repairs)
}

func TestParseJournalRoundTrip(t *testing.T) {
	raw := testutil.JournalJSON("Rest", 3, true)
	out, err := ParseJournal(raw, PolicyPad)
	require.NoError(t, err)

	reencoded, err := json.Marshal(map[string]interface{}{
		"title":           out.Title,
		"description":     out.Description,
		"tableOfContents": out.TableOfContents,
	})
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(reencoded))
}

func TestParseJournalRepairsTrailingComma(t *testing.T) {
	raw := `{"title":"T","description":"D","tableOfContents":[
		{"entryType":"Section","title":"A","content":"c","prompts":[{"text":"1"},{"text":"2"},{"text":"3"},{"text":"4"},{"text":"5"},]},
	],}`
	out, err := ParseJournal(raw, PolicyOff)
	require.NoError(t, err)
	assert.True(t, out.Repairs.TrailingComma)
	require.Len(t, out.TableOfContents, 2)
	assert.Len(t, out.TableOfContents[0].Prompts, 5)
}

func TestParseJournalTrailingCommaRepairLeavesStringsAlone(t *testing.T) {
	raw := `{"title":"Lists like [a, b, ] end","description":"Keep {x, } and \",]\" as is","tableOfContents":[
		{"entryType":"Section","title":"A","content":"c","prompts":[{"text":"1"},{"text":"2"},{"text":"3"},{"text":"4"},{"text":"5"}]},
	],}`
	out, err := ParseJournal(raw, PolicyOff)
	require.NoError(t, err)
	assert.True(t, out.Repairs.TrailingComma)
	assert.Equal(t, "Lists like [a, b, ] end", out.Title)
	assert.Equal(t, `Keep {x, } and ",]" as is`, out.Description)
}

func TestStripTrailingCommas(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`[1,2,]`, `[1,2]`},
		{"{\"a\":1 ,\n\t}", "{\"a\":1 \n\t}"},
		{`{"s":"a,]"}`, `{"s":"a,]"}`},
		{`{"s":"q\\",}`, `{"s":"q\\"}`},
		{`[1,2]`, `[1,2]`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripTrailingCommas(tt.in), tt.in)
	}
}

func TestParseJournalMalformed(t *testing.T) {
	for name, raw := range map[string]string{
		"prose":          "Sure! Here is your journal.",
		"markdown fence": "```json\n{\"title\":\"x\"}\n```",
		"truncated":      `{"title":"T","description":"D","tableOfContents":[`,
		"single quotes":  `{'title':'T'}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseJournal(raw, PolicyPad)
			require.Error(t, err)
			assert.Equal(t, apperr.MalformedGeneration, apperr.KindOf(err))

			var malformed *MalformedOutput
			require.True(t, errors.As(err, &malformed))
			assert.Equal(t, raw, malformed.Raw)
		})
	}
}

func TestParseJournalUnexpectedShape(t *testing.T) {
	for name, raw := range map[string]string{
		"array root":        `[1,2,3]`,
		"missing title":     `{"description":"D","tableOfContents":[]}`,
		"numeric desc":      `{"title":"T","description":5,"tableOfContents":[]}`,
		"toc not array":     `{"title":"T","description":"D","tableOfContents":{}}`,
		"section not obj":   `{"title":"T","description":"D","tableOfContents":["intro"]}`,
		"prompts not array": `{"title":"T","description":"D","tableOfContents":[{"title":"A","prompts":"x"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseJournal(raw, PolicyOff)
			require.Error(t, err)
			assert.Equal(t, apperr.UnexpectedShape, apperr.KindOf(err))
		})
	}
}

func TestParseJournalShapeProblemsAreDetailed(t *testing.T) {
	_, err := ParseJournal(`{"title":1,"description":"D","tableOfContents":"no"}`, PolicyOff)
	var result ValidationResult
	require.True(t, errors.As(err, &result))
	require.Len(t, result.Problems, 2)
	assert.Equal(t, "title", result.Problems[0].Field)
	assert.Equal(t, "tableOfContents", result.Problems[1].Field)
}

func TestParseJournalAppendsClosing(t *testing.T) {
	out, err := ParseJournal(testutil.JournalJSON("Sleep", 2, false), PolicyPad)
	require.NoError(t, err)

	require.Len(t, out.TableOfContents, 3)
	last := out.TableOfContents[2]
	assert.Equal(t, DefaultClosing(), last)
	assert.True(t, out.Repairs.ClosingAdded)
	assert.Equal(t, 1, closingCount(out.TableOfContents))
}

func TestParseJournalMovesClosingLast(t *testing.T) {
	raw := `{"title":"T","description":"D","tableOfContents":[
		{"entryType":"Closing","title":"Bye","prompts":[]},
		{"entryType":"Part","title":"One","prompts":[]},
		{"entryType":"closing","title":"Bye again","prompts":[]}
	]}`
	out, err := ParseJournal(raw, PolicyOff)
	require.NoError(t, err)

	require.Len(t, out.TableOfContents, 3)
	assert.Equal(t, "One", out.TableOfContents[0].Title)
	assert.Equal(t, models.EntrySection, out.TableOfContents[1].EntryType)
	assert.Equal(t, "Bye again", out.TableOfContents[1].Title)
	assert.Equal(t, "Bye", out.TableOfContents[2].Title)
	assert.Equal(t, models.EntryClosing, out.TableOfContents[2].EntryType)
	assert.True(t, out.Repairs.ClosingMoved)
	assert.Equal(t, 1, out.Repairs.ExtraClosings)
	assert.Equal(t, 1, closingCount(out.TableOfContents))
}

func TestParseJournalNormalizesSections(t *testing.T) {
	raw := `{"title":"T","description":"D","tableOfContents":[
		{"entryType":"PART","title":"A","prompts":[{"text":"one","id":7},"two",{"text":""},42,{"other":"x"}]},
		{"title":"B"}
	]}`
	out, err := ParseJournal(raw, PolicyOff)
	require.NoError(t, err)

	a := out.TableOfContents[0]
	assert.Equal(t, models.EntryPart, a.EntryType)
	assert.Equal(t, "", a.Content)
	assert.Equal(t, []models.Prompt{{Text: "one"}, {Text: "two"}}, a.Prompts)

	b := out.TableOfContents[1]
	assert.Equal(t, models.EntrySection, b.EntryType)
	assert.NotNil(t, b.Prompts)
	assert.Empty(t, b.Prompts)
}

func TestPromptPolicyPad(t *testing.T) {
	raw := `{"title":"T","description":"D","tableOfContents":[
		{"entryType":"Section","title":"Short","prompts":["a","b","c","d"]},
		{"entryType":"Section","title":"Long","prompts":["1","2","3","4","5","6"]}
	]}`
	out, err := ParseJournal(raw, PolicyPad)
	require.NoError(t, err)

	for _, s := range out.TableOfContents {
		assert.Len(t, s.Prompts, models.PromptsPerSection, s.Title)
	}
	assert.Equal(t, "a", out.TableOfContents[0].Prompts[0].Text)
	assert.Equal(t, fillerPrompts[0], out.TableOfContents[0].Prompts[4].Text)
	assert.Equal(t, "5", out.TableOfContents[1].Prompts[4].Text)
	assert.Equal(t, 1, out.Repairs.PromptsPadded)
	assert.Equal(t, 1, out.Repairs.PromptsTrimmed)
}

func TestPromptPolicyReject(t *testing.T) {
	raw := `{"title":"T","description":"D","tableOfContents":[
		{"entryType":"Section","title":"Short","prompts":["a","b","c","d"]}
	]}`
	_, err := ParseJournal(raw, PolicyReject)
	require.Error(t, err)
	assert.Equal(t, apperr.UnexpectedShape, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "expected 5 prompts, got 4")

	_, err = ParseJournal(testutil.JournalJSON("Ok", 2, true), PolicyReject)
	assert.NoError(t, err)
}

func TestPromptPolicyOffKeepsCounts(t *testing.T) {
	raw := `{"title":"T","description":"D","tableOfContents":[
		{"entryType":"Section","title":"Short","prompts":["a","b"]}
	]}`
	out, err := ParseJournal(raw, PolicyOff)
	require.NoError(t, err)
	assert.Len(t, out.TableOfContents[0].Prompts, 2)
}
