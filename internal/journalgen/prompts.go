package journalgen

import (
	"fmt"
	"strings"

	"github.com/AnshRaj112/journeygen-backend/internal/models"
)

// NoAnswer stands in for a prompt the client left blank.
const NoAnswer = "[No answer provided]"

const journalInstructions = `You are a journal writer. Your task is to generate a complete guided journal based on the user's topic. The journal must include:

1. **title** (string)
2. **description** (string)
3. **tableOfContents** (array of sections). Each section must have:
   - entryType  ("Part", "Section", or "Closing")
   - title      (string)
   - content    (3–5 paragraphs of explanatory text)
   - prompts    (exactly 5 reflection prompts, each of the form {"text": "…"})

After all "Part" and "Section" entries, append a final section whose entryType is "Closing", containing wrap-up prompts.

**IMPORTANT**: Respond with _only_ the final JSON object, no extra commentary or markdown fences. Your reply must start with “{” and end with “}” and be valid JSON.`

// preamble writes the shared background and client block.
func preamble(b *strings.Builder, pc PromptContext) {
	if pc.Background != "" {
		b.WriteString(pc.Background)
		b.WriteString("\n\n")
	}
	if pc.ClientName != "" {
		fmt.Fprintf(b, "Client Name: %s\n", pc.ClientName)
	}
	if pc.ClientBackground != "" {
		fmt.Fprintf(b, "Client Background: %s\n\n", pc.ClientBackground)
	} else if pc.ClientName != "" {
		b.WriteString("\n")
	}
}

// JournalPrompts builds the system and user instructions for journal creation.
func JournalPrompts(pc PromptContext, topic string) (system, user string) {
	var b strings.Builder
	preamble(&b, pc)
	b.WriteString(journalInstructions)
	return b.String(), fmt.Sprintf("Generate a complete guided journal on the topic: \"%s\".", topic)
}

// ReportPrompts builds the instructions for a report. answers may be shorter
// than the journal; anything missing renders as NoAnswer.
func ReportPrompts(pc PromptContext, j *models.Journal, answers [][]string) (system, user string) {
	name := pc.ClientName
	if name == "" {
		name = "the client"
	}

	var sb strings.Builder
	preamble(&sb, pc)
	fmt.Fprintf(&sb, "You are a coach’s assistant using the Holy Sim framework. Based on the guided journal below (which was created specifically for %s), generate a personalized report with suggestions, insights, and next steps for the user. Include any relevant context from the knowledge bank and the client’s background in your response.", name)

	var ub strings.Builder
	fmt.Fprintf(&ub, "Journal Title: %s\n", j.Title)
	fmt.Fprintf(&ub, "Journal Description: %s\n\n", j.Description)

	for i, section := range j.TableOfContents {
		fmt.Fprintf(&ub, "---\nSection (%s): %s\n", section.EntryType, section.Title)
		fmt.Fprintf(&ub, "Content: %s\n", section.Content)
		ub.WriteString("Prompts:\n")
		for p, prompt := range section.Prompts {
			fmt.Fprintf(&ub, "  Prompt %d: %s\n", p+1, prompt.Text)
		}
		ub.WriteString("\nUser’s Answers:\n")
		var row []string
		if i < len(answers) {
			row = answers[i]
		}
		for p := range section.Prompts {
			answer := NoAnswer
			if p < len(row) && strings.TrimSpace(row[p]) != "" {
				answer = row[p]
			}
			fmt.Fprintf(&ub, "  Answer %d: %s\n", p+1, answer)
		}
		ub.WriteString("\n")
	}

	fmt.Fprintf(&ub, "---\nNow provide a cohesive report for %s: highlight strengths, offer constructive feedback, and suggest next steps based on their background and their responses.\n\nReport:\n", name)
	return sb.String(), ub.String()
}
