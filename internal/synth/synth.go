// Package synth provides the answer synthesizers that sit downstream of the
// retrieval engine. The engine hands every synthesizer the same input — the
// user's query and the assembled context window — and does not care which
// implementation phrases the answer: a template fill, an extractive snippet,
// or a generative model call.
package synth

import (
	"context"
	"fmt"
	"strings"

	"github.com/spacebio/biorag/internal/assemble"
)

// Synthesizer produces a user-facing answer from a query and its assembled
// retrieval context. Implementations must be safe for concurrent use.
type Synthesizer interface {
	// Synthesize returns the answer text. An empty context window means
	// retrieval found nothing usable; synthesizers answer with a clear
	// "no relevant information" response rather than inventing content.
	Synthesize(ctx context.Context, query string, win assemble.Context) (string, error)

	// Name returns a short label for logging and the serve response.
	Name() string
}

// noInfoAnswer is the response when retrieval produced no usable context.
const noInfoAnswer = "I couldn't find relevant information about that in the bioscience research corpus. Could you try rephrasing your question?"

// ExtractiveSynthesizer answers with the highest-ranked chunk verbatim,
// prefixed with its provenance. No model, no templates — the cheapest
// baseline and the fallback when richer synthesizers fail.
type ExtractiveSynthesizer struct{}

// Name returns the synthesizer label.
func (ExtractiveSynthesizer) Name() string { return "extractive" }

// snippetLength bounds the quoted excerpt of the top chunk.
const snippetLength = 500

// Synthesize returns the top included chunk as a quoted excerpt.
func (ExtractiveSynthesizer) Synthesize(_ context.Context, _ string, win assemble.Context) (string, error) {
	if len(win.Used) == 0 {
		return noInfoAnswer, nil
	}

	top := win.Used[0]
	text := assemble.Clean(top.Text)
	if len(text) > snippetLength {
		text = text[:snippetLength] + "..."
	}

	var b strings.Builder
	b.WriteString("Based on the research corpus, here's what I found:\n\n")
	if title := top.Metadata["title"]; title != "" {
		fmt.Fprintf(&b, "From %q:\n", title)
	} else {
		fmt.Fprintf(&b, "From %s (%s):\n", top.Metadata["paper_id"], top.Section())
	}
	b.WriteString(text)

	if n := len(win.Used); n > 1 {
		fmt.Fprintf(&b, "\n\nI found %d relevant sources in total.", n)
	}

	return b.String(), nil
}
