package extractor

import (
	"encoding/json"
	"strings"

	"github.com/dvloznov/voice-ledger/internal/dialogue"
)

// BuildPrompt renders the extraction instructions for one turn.
func BuildPrompt(utterance string, state dialogue.PartialExpense, categories []string) string {
	current, err := json.Marshal(state)
	if err != nil {
		current = []byte("{}")
	}

	var b strings.Builder
	b.WriteString("You are a personal finance assistant that records expenses from spoken sentences.\n\n")

	b.WriteString("Current partial expense (JSON): ")
	b.Write(current)
	b.WriteString("\n")
	b.WriteString("User said: \"" + utterance + "\"\n\n")

	b.WriteString("Task:\n")
	b.WriteString("- Extract ONLY the information present in what the user said.\n")
	b.WriteString("- Output STRICT JSON with exactly this shape:\n")
	b.WriteString(`  {"item": null, "amount": null, "category": null, "paymentMethod": null, ` +
		`"recurrence": null, "purchaseLocation": null, "missingInfoPrompt": null, "cancelRequested": false}` + "\n")
	b.WriteString("- Use null for anything the user did not mention. Never repeat values from the current expense.\n")
	b.WriteString("- \"amount\" is a positive number using a dot as decimal separator.\n")
	b.WriteString("- \"purchaseLocation\" is either \"Online\" or \"PhysicalStore\".\n")
	b.WriteString("- \"recurrence\" is \"OneTime\" unless the user says the expense repeats.\n\n")

	b.WriteString("Use ONLY the following categories:\n")
	for _, c := range categories {
		b.WriteString("  - " + c + "\n")
	}
	b.WriteString("\n")

	b.WriteString("Rules:\n")
	b.WriteString("1. Category \"Purchase\" requires purchaseLocation.\n")
	b.WriteString("2. If item, amount or paymentMethod is still missing after this turn, set missingInfoPrompt to a short question asking for ONE of them.\n")
	b.WriteString("3. If the user wants to cancel, give up or start over, set cancelRequested to true.\n\n")

	b.WriteString("Return ONLY valid raw JSON.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	b.WriteString("Output must begin with \"{\" and end with \"}\".\n")

	return b.String()
}

// cleanModelJSON strips Markdown fences and any text around the JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
