// Package sanitize scans content for a fixed taxonomy of prompt-injection
// patterns and redacts matches before they reach an upstream call.
package sanitize

import (
	"encoding/base64"
	"regexp"
)

// Category names, in the taxonomy's canonical order. Check-order is
// irrelevant to the result: the returned pattern set is order-independent.
const (
	CategorySystemPromptOverride = "system_prompt_override"
	CategoryRoleInjection        = "role_injection"
	CategoryInstructionInjection = "instruction_injection"
	CategoryDataExfiltration     = "data_exfiltration"
	CategoryEncodingEvasion      = "encoding_evasion"
)

// marker replaces every matched substring. It deliberately contains none of
// the catalog's patterns, which is what makes Sanitize idempotent.
const marker = "[SANITIZED: injection pattern detected]"

// pattern pairs a category with its compiled matcher.
type pattern struct {
	category string
	re       *regexp.Regexp
}

// encodedPhrases is the short fixed list of injection phrases whose literal
// base64 encodings are also treated as matches (CategoryEncodingEvasion).
var encodedPhrases = []string{
	"ignore previous instructions",
	"ignore all previous instructions",
	"disregard your instructions",
	"system prompt",
	"you are now",
}

var catalog = buildCatalog()

func buildCatalog() []pattern {
	patterns := []pattern{
		{CategorySystemPromptOverride, regexp.MustCompile(`(?i)ignore\s+(all\s+)?previous\s+instructions`)},
		{CategorySystemPromptOverride, regexp.MustCompile(`(?i)disregard\s+(your|all|previous)\s+instructions`)},
		{CategorySystemPromptOverride, regexp.MustCompile(`(?i)forget\s+(everything|all)\s+(you|above)`)},
		{CategoryRoleInjection, regexp.MustCompile(`(?i)you\s+are\s+now\s+[a-z0-9 _-]+`)},
		{CategoryRoleInjection, regexp.MustCompile(`(?i)act\s+as\s+(if\s+you\s+are\s+)?[a-z0-9 _-]+`)},
		{CategoryRoleInjection, regexp.MustCompile(`(?i)pretend\s+(to\s+be|you\s+are)\s+[a-z0-9 _-]+`)},
		{CategoryInstructionInjection, regexp.MustCompile(`(?i)new\s+instructions?\s*:`)},
		{CategoryInstructionInjection, regexp.MustCompile(`(?i)system\s*:\s*`)},
		{CategoryInstructionInjection, regexp.MustCompile(`(?i)\[\s*system\s+prompt\s*\]`)},
		{CategoryDataExfiltration, regexp.MustCompile(`(?i)reveal\s+(your\s+|the\s+)?(secrets?|system\s+prompt|instructions)`)},
		{CategoryDataExfiltration, regexp.MustCompile(`(?i)print\s+(your\s+|the\s+)?(api\s+key|credentials|token|password)`)},
		{CategoryDataExfiltration, regexp.MustCompile(`(?i)send\s+(this\s+)?(data|information|secrets?)\s+to\s+https?://`)},
	}

	for _, phrase := range encodedPhrases {
		encoded := base64.StdEncoding.EncodeToString([]byte(phrase))
		patterns = append(patterns, pattern{
			category: CategoryEncodingEvasion,
			re:       regexp.MustCompile(regexp.QuoteMeta(encoded)),
		})
	}

	return patterns
}

// Result is the outcome of a Sanitize call.
type Result struct {
	Content   string
	Sanitized bool
	Patterns  []string
}

// Sanitizer scans strings against the fixed pattern catalog. It is
// stateless; the catalog is compiled once at package init.
type Sanitizer struct{}

// New creates a Sanitizer.
func New() *Sanitizer {
	return &Sanitizer{}
}

// Sanitize scans content and replaces every matched substring with the
// marker. Sanitized is true iff Patterns is non-empty; when false, Content
// is returned unchanged. The result is idempotent: sanitizing the output of
// a previous Sanitize call is a no-op.
func (s *Sanitizer) Sanitize(content string) Result {
	fired := make(map[string]bool)
	out := content

	for _, p := range catalog {
		if p.re.MatchString(out) {
			fired[p.category] = true
			out = p.re.ReplaceAllString(out, marker)
		}
	}

	if len(fired) == 0 {
		return Result{Content: content, Sanitized: false}
	}

	patterns := make([]string, 0, len(fired))
	for _, name := range []string{
		CategorySystemPromptOverride,
		CategoryRoleInjection,
		CategoryInstructionInjection,
		CategoryDataExfiltration,
		CategoryEncodingEvasion,
	} {
		if fired[name] {
			patterns = append(patterns, name)
		}
	}

	return Result{Content: out, Sanitized: true, Patterns: patterns}
}

// ContainsPattern is a convenience check used by the /post handler, which
// must deny on any match without forwarding the sanitized content.
func (s *Sanitizer) ContainsPattern(content string) bool {
	for _, p := range catalog {
		if p.re.MatchString(content) {
			return true
		}
	}
	return false
}
