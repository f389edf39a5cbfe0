package synthesis

import (
	"fmt"
	"strings"

	"github.com/sells-group/deep-research/internal/model"
)

// BuildPrompt renders the synthesis prompt. It is a pure function of the
// query and the deduplicated findings: identical inputs produce a
// byte-identical prompt.
func BuildPrompt(q model.Query, findings []model.Finding) string {
	var b strings.Builder

	b.WriteString("You are a research synthesis expert for software engineering questions.\n\n")
	fmt.Fprintf(&b, "Query: %s\n\n", q.Raw)

	if len(findings) == 0 {
		b.WriteString("No sources returned any evidence for this query.\n")
		b.WriteString("Answer from general knowledge, state clearly that no sources were reachable, and cite nothing.\n\n")
	} else {
		b.WriteString("Evidence, grouped by source:\n")
		currentSource := ""
		n := 0
		for _, f := range findings {
			if f.Source != currentSource {
				currentSource = f.Source
				fmt.Fprintf(&b, "\n### %s\n", strings.ToUpper(f.Source))
			}
			n++
			fmt.Fprintf(&b, "%d. %s\n   URL: %s\n   %s\n", n, f.Title, f.URL, clip(f.Snippet, 300))
		}
		b.WriteString("\nEvery factual claim must cite one of the URLs above. Do not invent URLs.\n\n")
	}

	b.WriteString(`Return ONLY valid JSON in this exact shape, no prose outside it:
{
  "narrative": "markdown report answering the query",
  "citations": [{"source": "...", "title": "...", "url": "..."}],
  "confidence": 0.0
}
confidence is your own estimate in [0,1] of how well the evidence supports the narrative.`)

	return b.String()
}

func clip(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
