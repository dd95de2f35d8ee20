package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/rbright/signflow/internal/history"
	"github.com/rbright/signflow/internal/session"
)

// formatView renders a snapshot as "key: value" lines for the terminal.
func formatView(v session.View) string {
	var b strings.Builder
	line := func(key, value string) {
		fmt.Fprintf(&b, "%-11s %s\n", key+":", value)
	}

	line("phase", string(v.Phase))
	line("language", v.Language)
	line("generation", fmt.Sprint(v.Generation))
	if v.Capturing {
		line("capturing", "yes")
	}
	if u := v.Utterance; u != nil {
		line("heard", u.RawText)
	}
	if v.TranslatedText != "" {
		line("translated", v.TranslatedText)
	}
	if res := v.Result; res != nil {
		line("grammar", res.GrammarText)
		line("emotion", fmt.Sprintf("%s (%.2f)", res.Emotion, res.Confidence))
		line("video", orDefault(res.VideoRef, "none"))
	}
	if e := v.Error; e != nil {
		line("error", strings.TrimSuffix(fmt.Sprintf("%s: %s", e.Kind, e.Detail), ": "))
	}
	return b.String()
}

func formatEntry(e history.Entry) string {
	summary := fmt.Sprintf("%q -> %s [%s %.2f]", e.RawText, e.GrammarText, e.Emotion, e.Confidence)
	if e.ErrorKind != "" {
		summary = fmt.Sprintf("%q %s: %s", e.RawText, e.ErrorKind, e.ErrorDetail)
	}
	return fmt.Sprintf("%s  %-6s  %-5s  %s",
		e.FinishedAt.UTC().Format(time.RFC3339), e.Phase, e.Language, summary)
}
