package assemble

import (
	"regexp"
	"strings"
)

// boilerplatePatterns match known non-substantive text that leaks into
// scraped research chunks: site navigation, legal notices, and download
// prompts. Cleaning is best-effort and pattern-based — an unmatched variant
// simply stays in the text and is judged as ordinary content by the
// minimum-length filter.
var boilerplatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)skip to (?:main )?content`),
	regexp.MustCompile(`(?i)back to (?:top|results)`),
	regexp.MustCompile(`(?i)an official website of the united states government`),
	regexp.MustCompile(`(?i)copyright ©?\s*\d{4}[^.\n]*`),
	regexp.MustCompile(`(?i)all rights reserved\.?`),
	regexp.MustCompile(`(?i)terms of (?:use|service)`),
	regexp.MustCompile(`(?i)privacy policy`),
	regexp.MustCompile(`(?i)cookie(?:s)? (?:policy|settings)`),
	regexp.MustCompile(`(?i)download (?:pdf|full[- ]text)`),
	regexp.MustCompile(`(?i)supplementary material(?:s)? available`),
	regexp.MustCompile(`(?i)click here to (?:view|download)[^.\n]*`),
}

// whitespaceRun collapses any whitespace run, including newlines, to one
// space so cleaned chunks read as continuous prose.
var whitespaceRun = regexp.MustCompile(`\s+`)

// Clean strips known boilerplate substrings from text and collapses
// whitespace. The result may be empty; callers length-filter afterwards.
func Clean(text string) string {
	for _, p := range boilerplatePatterns {
		text = p.ReplaceAllString(text, " ")
	}
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}
