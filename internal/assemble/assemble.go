// Package assemble turns ranked retrieval results into the bounded context
// window handed to an answer synthesizer. Chunks are cleaned, filtered for
// substance, and packed whole into a character budget — a chunk is included
// in full or not at all, so the output never ends mid-sentence.
package assemble

import (
	"fmt"
	"strings"

	"github.com/spacebio/biorag/internal/corpus"
	"github.com/spacebio/biorag/internal/retrieval"
)

// DefaultMaxLength is the context character budget used when the caller does
// not specify one.
const DefaultMaxLength = 2000

// minUsefulLength is the minimum cleaned text length for a chunk to be worth
// including. Anything shorter is residual boilerplate or a stray fragment.
const minUsefulLength = 50

// separator joins formatted context parts.
const separator = "\n\n"

// Context is the assembled output: the bounded text blob plus the chunks
// that made it in, in order, for provenance display by the caller.
type Context struct {
	// Text is the concatenated context, always within the requested budget.
	// Empty when no chunk fit — callers must treat that as "no usable
	// context", not as success.
	Text string

	// Used lists the chunks included in Text, in inclusion order.
	Used []corpus.Chunk
}

// Assemble packs results into a context of at most maxLength characters.
// Results are consumed in rank order; each chunk is cleaned, dropped if the
// cleaned text is too short to be substantive, and otherwise appended whole.
// Packing stops at the first chunk that would exceed the budget.
// maxLength <= 0 yields an empty context.
func Assemble(results []retrieval.SearchResult, maxLength int) Context {
	var ctx Context
	if maxLength <= 0 {
		return ctx
	}

	var b strings.Builder
	for _, res := range results {
		text := Clean(res.Chunk.Text)
		if len(text) < minUsefulLength {
			continue
		}

		part := fmt.Sprintf("[Source %d - %s - %s]: %s",
			len(ctx.Used)+1, res.Chunk.Source(), res.Chunk.Section(), text)

		need := len(part)
		if b.Len() > 0 {
			need += len(separator)
		}
		if b.Len()+need > maxLength {
			break
		}

		if b.Len() > 0 {
			b.WriteString(separator)
		}
		b.WriteString(part)
		ctx.Used = append(ctx.Used, res.Chunk)
	}

	ctx.Text = b.String()
	return ctx
}
