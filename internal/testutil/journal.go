package testutil

import (
	"encoding/json"
	"fmt"

	"github.com/AnshRaj112/journeygen-backend/internal/models"
)

// JournalJSON builds a model reply with the given number of sections, each with
// five prompts. withClosing adds a trailing Closing entry.
func JournalJSON(title string, sections int, withClosing bool) string {
	toc := make([]map[string]interface{}, 0, sections+1)
	for i := 0; i < sections; i++ {
		entryType := "Section"
		if i == 0 {
			entryType = "Part"
		}
		toc = append(toc, section(entryType, fmt.Sprintf("Section %d", i+1)))
	}
	if withClosing {
		toc = append(toc, section("Closing", "Wrapping up"))
	}
	data, _ := json.Marshal(map[string]interface{}{
		"title":           title,
		"description":     "A guided journey through " + title,
		"tableOfContents": toc,
	})
	return string(data)
}

func section(entryType, title string) map[string]interface{} {
	prompts := make([]map[string]string, models.PromptsPerSection)
	for i := range prompts {
		prompts[i] = map[string]string{"text": fmt.Sprintf("%s prompt %d?", title, i+1)}
	}
	return map[string]interface{}{
		"entryType": entryType,
		"title":     title,
		"content":   "Paragraph one.\n\nParagraph two.",
		"prompts":   prompts,
	}
}

// Sections builds n sections of five prompts each.
func Sections(n int) []models.Section {
	out := make([]models.Section, n)
	for i := range out {
		out[i] = models.Section{EntryType: models.EntrySection, Title: fmt.Sprintf("S%d", i+1), Content: "c"}
		for p := 0; p < models.PromptsPerSection; p++ {
			out[i].Prompts = append(out[i].Prompts, models.Prompt{Text: fmt.Sprintf("S%d P%d?", i+1, p+1)})
		}
	}
	return out
}
