package synth

import (
	"fmt"
	"os"
)

// NewFromEnv constructs a Synthesizer from environment variables:
//
//	SYNTH_PROVIDER = template | extractive | openai   (default: template)
//	SYNTH_MODEL    — chat model for the openai backend (default: gpt-4o-mini)
//	OPENAI_API_KEY — required for the openai backend
//
// corpusSize is the number of chunks available to retrieval, surfaced in
// conversational responses.
func NewFromEnv(corpusSize int) (Synthesizer, error) {
	backend := os.Getenv("SYNTH_PROVIDER")
	if backend == "" {
		backend = "template"
	}

	switch backend {
	case "template":
		return NewTemplateSynthesizer(corpusSize), nil
	case "extractive":
		return ExtractiveSynthesizer{}, nil
	case "openai":
		return NewOpenAISynthesizer(os.Getenv("OPENAI_API_KEY"), os.Getenv("SYNTH_MODEL"))
	default:
		return nil, fmt.Errorf("synth: unknown backend %q — valid values: template, extractive, openai", backend)
	}
}
