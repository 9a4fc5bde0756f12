package patch

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
)

// Rule is one substitution. A rule either replaces a literal string or, when
// Pattern is set, every match of Pattern using regexp expansion syntax.
type Rule struct {
	Name        string
	Literal     string
	Pattern     *regexp.Regexp
	Replacement string
}

// apply runs the rule against code and reports how many matches it replaced
func (r Rule) apply(code string) (string, int) {
	if r.Pattern != nil {
		n := len(r.Pattern.FindAllStringIndex(code, -1))
		if n == 0 {
			return code, 0
		}
		return r.Pattern.ReplaceAllString(code, r.Replacement), n
	}

	if r.Literal == "" {
		return code, 0
	}
	n := strings.Count(code, r.Literal)
	if n == 0 {
		return code, 0
	}
	return strings.ReplaceAll(code, r.Literal, r.Replacement), n
}

// defaultRules is the LaTeX fix list, in application order. The MathTex rule
// runs after call-spacing has rewritten every "MathTex(" to "MathTex (", so in
// this list it never matches. It only takes effect in rule sets that drop or
// reorder call-spacing.
var defaultRules = []Rule{
	{Name: "form-feed-frac", Literal: "\\f\\frac", Replacement: `\frac`},
	{Name: "double-escaped-frac", Literal: `\\frac`, Replacement: `\frac`},
	{Name: "escaped-quote", Literal: `\"`, Replacement: `"`},
	{Name: "double-backslash-frac", Pattern: regexp.MustCompile(`\\\\frac`), Replacement: `\frac`},
	{Name: "call-spacing", Pattern: regexp.MustCompile(`(\w+)\(`), Replacement: `${1} (`},
	{Name: "assign-spacing", Pattern: regexp.MustCompile(`(\w+)=`), Replacement: `${1} =`},
	{Name: "mathtex-text", Pattern: regexp.MustCompile(`MathTex\((.*?)\)`), Replacement: `MathTex(r"\text{{${1}}}")`},
}

// Rules returns a copy of the default rule list
func Rules() []Rule {
	rules := make([]Rule, len(defaultRules))
	copy(rules, defaultRules)
	return rules
}

// Patcher applies a fixed rule list
type Patcher struct {
	rules []Rule
}

// New creates a patcher. Without rules the default list is used.
func New(rules ...Rule) *Patcher {
	if len(rules) == 0 {
		rules = Rules()
	}
	return &Patcher{rules: rules}
}

// Apply runs every rule in order and returns the patched source
func (p *Patcher) Apply(code string) string {
	total := 0
	for _, rule := range p.rules {
		var n int
		code, n = rule.apply(code)
		if n > 0 {
			log.Debug("Applied patch rule", "rule", rule.Name, "matches", n)
		}
		total += n
	}
	log.Debug("Patched generated code", "replacements", total)
	return code
}

// Apply patches code with the default rules
func Apply(code string) string {
	return New().Apply(code)
}
