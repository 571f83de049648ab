package synth

import (
	"context"
	"fmt"

	"github.com/spacebio/biorag/internal/assemble"
)

// TemplateSynthesizer fills an intent-keyed response template with the
// assembled context. It needs no external model and is the default
// synthesizer: answers are grounded entirely in retrieved text, framed by a
// fixed preamble per intent.
type TemplateSynthesizer struct {
	// corpusSize is reported in the greeting response so users know the
	// scale of the material behind their answers.
	corpusSize int
}

// NewTemplateSynthesizer constructs a TemplateSynthesizer. corpusSize is the
// number of chunks available to retrieval.
func NewTemplateSynthesizer(corpusSize int) *TemplateSynthesizer {
	return &TemplateSynthesizer{corpusSize: corpusSize}
}

// Name returns the synthesizer label.
func (*TemplateSynthesizer) Name() string { return "template" }

// SetCorpusSize updates the chunk count reported in the greeting. Call after
// an index is loaded or rebuilt, before serving queries.
func (t *TemplateSynthesizer) SetCorpusSize(n int) { t.corpusSize = n }

// templates maps each intent tag to its response preamble. The %s slot
// receives the assembled context. Conversational intents have complete
// responses with no slot.
var templates = map[Intent]string{
	IntentDefinition: "Here's how the research literature defines and describes this topic:\n\n%s",
	IntentEffects: "Space environmental factors interact with biological systems in several documented ways. " +
		"The research findings most relevant to your question:\n\n%s",
	IntentPlants: "Plant biology in space is an active research area — plants are a candidate source of food, " +
		"oxygen, and psychological benefit on long missions. Relevant findings:\n\n%s",
	IntentRadiation: "Space radiation — galactic cosmic rays, solar particle events, and trapped particles — " +
		"is a primary health concern for crewed missions. Relevant findings:\n\n%s",
	IntentDefault: "Here's what the bioscience research corpus says about your question:\n\n%s",
}

// conversationalResponses are complete answers for intents that never touch
// the corpus.
var conversationalResponses = map[Intent]string{
	IntentGreeting: "Hello! I'm a bioscience research assistant with access to %d research chunks on space biology. " +
		"Ask me about microgravity, astronaut health, plant growth in space, or related topics.",
	IntentThanks: "You're welcome! Feel free to ask me anything else about space bioscience research.",
}

// Synthesize classifies the query and fills the matching template with the
// context window.
func (t *TemplateSynthesizer) Synthesize(_ context.Context, query string, win assemble.Context) (string, error) {
	intent := Classify(query)

	if intent.conversational() {
		resp := conversationalResponses[intent]
		if intent == IntentGreeting {
			return fmt.Sprintf(resp, t.corpusSize), nil
		}
		return resp, nil
	}

	if win.Text == "" {
		return noInfoAnswer, nil
	}

	tmpl, ok := templates[intent]
	if !ok {
		tmpl = templates[IntentDefault]
	}
	return fmt.Sprintf(tmpl, win.Text), nil
}
