package synth

import "strings"

// Intent is a query-intent tag. The set is closed: every query maps to
// exactly one intent, with IntentDefault as the fallback. Dispatch is a data
// table rather than branching code so it can be tested as data.
type Intent string

const (
	// IntentGreeting covers salutations and small talk openers.
	IntentGreeting Intent = "greeting"
	// IntentThanks covers gratitude closers.
	IntentThanks Intent = "thanks"
	// IntentDefinition covers "what is X" style questions.
	IntentDefinition Intent = "definition"
	// IntentEffects covers "how does X affect Y" style questions.
	IntentEffects Intent = "effects"
	// IntentPlants covers questions about plant biology in space.
	IntentPlants Intent = "plants"
	// IntentRadiation covers questions about space radiation.
	IntentRadiation Intent = "radiation"
	// IntentDefault is the fallback for anything unmatched.
	IntentDefault Intent = "default"
)

// intentRule binds an intent tag to the keyword list that selects it.
type intentRule struct {
	// intent is the tag assigned when any keyword matches.
	intent Intent
	// keywords are matched as substrings of the lowercased query.
	keywords []string
}

// intentRules is evaluated in order; the first matching rule wins. Greeting
// and thanks come first so "thanks, what is microgravity?" still reads as a
// question — phrase keywords beat single words by placement, not priority
// logic.
var intentRules = []intentRule{
	{IntentGreeting, []string{"hello", "hi ", "hey", "how are you"}},
	{IntentThanks, []string{"thank", "thanks"}},
	{IntentDefinition, []string{"what is", "define", "definition"}},
	{IntentEffects, []string{"how does", "effects", "affects", "impact"}},
	{IntentPlants, []string{"plant"}},
	{IntentRadiation, []string{"radiation"}},
}

// Classify maps a query to its intent tag. Unmatched queries get
// IntentDefault.
func Classify(query string) Intent {
	q := strings.ToLower(strings.TrimSpace(query)) + " "
	for _, rule := range intentRules {
		for _, kw := range rule.keywords {
			if strings.Contains(q, kw) {
				return rule.intent
			}
		}
	}
	return IntentDefault
}

// conversational reports whether the intent is answered without consulting
// the corpus at all.
func (i Intent) conversational() bool {
	return i == IntentGreeting || i == IntentThanks
}
