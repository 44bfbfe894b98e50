package lessons

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hupe1980/agentcookbook/core"
	"github.com/hupe1980/agentcookbook/model"
)

const rule = "============================================================"

// printer writes the lesson transcript. Write errors are ignored: the output
// is informational and a broken pipe must not abort a lesson.
type printer struct {
	w io.Writer
}

func newPrinter(w io.Writer) *printer { return &printer{w: w} }

func (p *printer) title(format string, args ...any) {
	fmt.Fprintln(p.w, rule)
	fmt.Fprintf(p.w, format+"\n", args...)
	fmt.Fprintln(p.w, rule)
}

func (p *printer) step(n int, format string, args ...any) {
	fmt.Fprintln(p.w)
	fmt.Fprintf(p.w, "--- Step %d: %s ---\n", n, fmt.Sprintf(format, args...))
}

func (p *printer) printf(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) blank() { fmt.Fprintln(p.w) }

// write prints s without a trailing newline, for streamed tokens.
func (p *printer) write(s string) { fmt.Fprint(p.w, s) }

func (p *printer) answer(text string) {
	p.printf("Answer: %s", strings.TrimSpace(text))
}

func (p *printer) json(label string, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		p.printf("%s: %v", label, v)
		return
	}

	p.printf("%s:\n%s", label, b)
}

// conversation prints every message with its role and any tool traffic.
func (p *printer) conversation(msgs []core.Content) {
	for i, m := range msgs {
		switch {
		case len(m.FunctionCalls()) > 0:
			for _, c := range m.FunctionCalls() {
				p.printf("  %2d. %s -> call %s(%s)", i+1, m.Role, c.Name, c.Arguments)
			}
		case len(m.FunctionResponses()) > 0:
			for _, r := range m.FunctionResponses() {
				p.printf("  %2d. %s <- %s: %s", i+1, m.Role, r.Name, model.ToolResultText(r))
			}
		default:
			p.printf("  %2d. %s: %s", i+1, m.Role, truncate(m.Text(), 160))
		}
	}
}

func (p *printer) usage(u *model.TokenUsage) {
	if u == nil {
		p.printf("Usage: not reported")
		return
	}

	p.printf("Usage: prompt=%d completion=%d total=%d", u.PromptTokens, u.CompletionTokens, u.TotalTokens)
}

func (p *printer) notes(items ...string) {
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, "Key observations:")

	for _, it := range items {
		fmt.Fprintf(p.w, "  - %s\n", it)
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len([]rune(s)) <= n {
		return s
	}

	return string([]rune(s)[:n]) + "..."
}

func orNA[T any](v *T) string {
	if v == nil {
		return "n/a"
	}

	return fmt.Sprint(*v)
}
