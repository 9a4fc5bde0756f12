package patch

import (
	"regexp"
	"testing"
)

func TestApply(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "form feed before frac",
			input: `\f\frac{1}{2}`,
			want:  `\frac{1}{2}`,
		},
		{
			name:  "double escaped frac",
			input: `\\frac{a}{b}`,
			want:  `\frac{a}{b}`,
		},
		{
			name:  "escaped quotes",
			input: `label = \"area\"`,
			want:  `label = "area"`,
		},
		{
			name:  "call and keyword spacing",
			input: `Circle(radius=1)`,
			want:  `Circle (radius =1)`,
		},
		{
			name:  "mathtex call is spaced before its own rule runs",
			input: `MathTex("x^2")`,
			want:  `MathTex ("x^2")`,
		},
		{
			name:  "untouched code",
			input: `self.wait 1`,
			want:  `self.wait 1`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Apply(tt.input); got != tt.want {
				t.Errorf("Apply(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestMathTexRule(t *testing.T) {
	rules := Rules()
	mathtex := rules[len(rules)-1]
	if mathtex.Name != "mathtex-text" {
		t.Fatalf("last rule = %q, want mathtex-text", mathtex.Name)
	}

	got := New(mathtex).Apply(`eq = MathTex("x^2")`)
	want := `eq = MathTex(r"\text{{"x^2"}}")`
	if got != want {
		t.Errorf("Apply() = %q, want %q", got, want)
	}

	// With the default order call-spacing has already consumed "MathTex("
	got = Apply(`eq = MathTex("x^2")`)
	want = `eq = MathTex ("x^2")`
	if got != want {
		t.Errorf("default Apply() = %q, want %q", got, want)
	}
}

func TestRulesOrder(t *testing.T) {
	want := []string{
		"form-feed-frac",
		"double-escaped-frac",
		"escaped-quote",
		"double-backslash-frac",
		"call-spacing",
		"assign-spacing",
		"mathtex-text",
	}

	rules := Rules()
	if len(rules) != len(want) {
		t.Fatalf("Rules() returned %d rules, want %d", len(rules), len(want))
	}
	for i, name := range want {
		if rules[i].Name != name {
			t.Errorf("rule %d = %q, want %q", i, rules[i].Name, name)
		}
	}

	// Mutating the returned slice must not change the defaults
	rules[0] = Rule{Name: "changed"}
	if Rules()[0].Name != "form-feed-frac" {
		t.Error("Rules() exposes the default slice")
	}
}

func TestCustomRules(t *testing.T) {
	p := New(
		Rule{Name: "tabs", Literal: "\t", Replacement: "    "},
		Rule{Name: "color", Pattern: regexp.MustCompile(`color=(\w+)`), Replacement: `color=${1}_C`},
	)

	got := p.Apply("\tcircle.set(color=BLUE)")
	want := "    circle.set(color=BLUE_C)"
	if got != want {
		t.Errorf("Apply() = %q, want %q", got, want)
	}
}

func TestEmptyLiteralRuleIsNoop(t *testing.T) {
	p := New(Rule{Name: "empty"})
	if got := p.Apply("abc"); got != "abc" {
		t.Errorf("Apply() = %q, want abc", got)
	}
}
