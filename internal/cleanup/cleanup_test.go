package cleanup

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"

	"github.com/ironsheep/label-ocr-mcp/internal/logging"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", "   \n\t", ""},
		{"plain text untouched", "Sugar, Salt", "Sugar, Salt"},
		{"collapse long runs", "Miiiiiilk", "Miilk"},
		{"three repeats kept", "Miiilk", "Miiilk"},
		{"zero inside word", "s0y lecithin", "soy lecithin"},
		{"one inside word", "mi1k", "milk"},
		{"multi digit numbers kept", "100 mg", "100 mg"},
		{"stray digit removed", "Salt 5 Water", "Salt  Water"},
		{"keyword ingredients", "INGREDI0NTS: water", "Ingredients: water"},
		{"keyword contains", "c0ntains: milk", "Contains: milk"},
		{"contains with misread i", "Conta1ns soy", "Contains soy"},
		{"trimmed", "  flour  ", "flour"},
		{"non-ascii digits untouched", "ab٣cd ٣ x", "ab٣cd ٣ x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestClean_MisreadIngredientsHeader(t *testing.T) {
	got := Clean("111ngredi0nts")
	assert.Equal(t, "Ingredients", got)
	assert.True(t, strings.Contains(strings.ToLower(got), "ingredients"))
}

func TestClean_Idempotent(t *testing.T) {
	for _, in := range []string{"Ingredients: milk, s0y", "c0ntains 1 egg", "aaaaaaa"} {
		once := Clean(in)
		assert.Equal(t, once, Clean(once), in)
	}
}

func TestRules_Order(t *testing.T) {
	names := make([]string, len(Rules))
	for i, r := range Rules {
		names[i] = r.Name
	}
	assert.Equal(t, []string{
		"collapse-repeats", "zero-to-o", "one-to-l",
		"drop-stray-digit", "ingredients", "contains",
	}, names)
}

func TestClean_TimedOutRuleIsSkippedAndLogged(t *testing.T) {
	var buf bytes.Buffer
	prev := log
	log = logging.New(zapcore.AddSync(&buf))
	logging.SetLevel(logging.LevelDebug)
	defer func() {
		log = prev
		logging.SetLevel(logging.LevelInfo)
	}()

	// Nested quantifiers backtrack exponentially on a non-matching tail.
	slow := rule("nested", `(a+)+$`, "x")
	slow.Pattern.MatchTimeout = 10 * time.Millisecond

	in := strings.Repeat("a", 28) + "!"
	got := clean(in, []Rule{slow, rule("bang", `!`, "?")})

	assert.Equal(t, strings.Repeat("a", 28)+"?", got)
	assert.Contains(t, buf.String(), "rule skipped")
	assert.Contains(t, buf.String(), "nested")
}
