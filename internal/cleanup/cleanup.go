// Package cleanup corrects common OCR confusions in recognized label text.
//
// The rules are heuristic and lossy. They target ingredient lists, where a
// digit between letters is almost always a misread letter and a few keywords
// matter more than the rest of the text.
package cleanup

import (
	"strings"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/ironsheep/label-ocr-mcp/internal/logging"
)

// matchTimeout bounds a single rule on adversarial input.
const matchTimeout = 250 * time.Millisecond

var log = logging.Named("cleanup")

// Rule is one regex substitution applied by Clean.
type Rule struct {
	Name        string
	Pattern     *regexp2.Regexp
	Replacement string
}

func rule(name, pattern, replacement string) Rule {
	re := regexp2.MustCompile(pattern, regexp2.None)
	re.MatchTimeout = matchTimeout
	return Rule{Name: name, Pattern: re, Replacement: replacement}
}

// Rules run in order. Isolated digit substitution has to come before the
// keyword rules so that "c0ntains" and "ingredi0nts" normalize. Digits are
// ASCII only in every rule.
var Rules = []Rule{
	rule("collapse-repeats", `(.)\1{3,}`, "$1$1"),
	rule("zero-to-o", `(?<![0-9])0(?![0-9])`, "o"),
	rule("one-to-l", `(?<![0-9])1(?![0-9])`, "l"),
	rule("drop-stray-digit", `\b[0-9]\b`, ""),
	rule("ingredients", `(?i)\b[i1l|]+ngredi[e0o]nts\b`, "Ingredients"),
	rule("contains", `(?i)\bc[o0]nta[i1l]ns\b`, "Contains"),
}

// Clean applies Rules to text and trims surrounding whitespace. A rule that
// fails to match in time leaves the text as it was.
func Clean(text string) string {
	return clean(text, Rules)
}

func clean(text string, rules []Rule) string {
	out := text
	for _, r := range rules {
		replaced, err := r.Pattern.Replace(out, r.Replacement, -1, -1)
		if err != nil {
			log.Debugw("rule skipped", "rule", r.Name, "error", err)
			continue
		}
		out = replaced
	}
	return strings.TrimSpace(out)
}
