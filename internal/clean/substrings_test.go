package clean

import "testing"

func TestReplaceSubstrings(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		patterns   []string
		substitute string
		want       string
	}{
		{
			name:       "literal replacement",
			text:       "hello world",
			patterns:   []string{"world"},
			substitute: "there",
			want:       "hello there",
		},
		{
			name:       "regex pattern replaces all matches",
			text:       "a1b22c333",
			patterns:   []string{`\d+`},
			substitute: "#",
			want:       "a#b#c#",
		},
		{
			name:       "invalid regex degrades to literal",
			text:       "price [USD( today",
			patterns:   []string{"[USD("},
			substitute: "$",
			want:       "price $ today",
		},
		{
			name:       "patterns fold over the prior result",
			text:       "cat",
			patterns:   []string{"c", "at"},
			substitute: "h",
			want:       "hh",
		},
		{
			name:       "empty pattern list is identity",
			text:       "unchanged",
			patterns:   nil,
			substitute: "x",
			want:       "unchanged",
		},
		{
			name:       "empty pattern is a valid trivial regex",
			text:       "ab",
			patterns:   []string{""},
			substitute: "-",
			want:       "-a-b-",
		},
		{
			name:       "literal matching is case sensitive",
			text:       "Foo foo",
			patterns:   []string{"foo"},
			substitute: "bar",
			want:       "Foo bar",
		},
		{
			name:       "empty text stays empty",
			text:       "",
			patterns:   []string{"x"},
			substitute: "y",
			want:       "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ReplaceSubstrings(tt.text, tt.patterns, tt.substitute)
			if got != tt.want {
				t.Errorf("ReplaceSubstrings(%q, %v, %q) = %q, want %q",
					tt.text, tt.patterns, tt.substitute, got, tt.want)
			}
		})
	}
}

func TestRemoveSubstrings(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		patterns []string
		want     string
	}{
		{
			name:     "removes literal",
			text:     "hello world",
			patterns: []string{" world"},
			want:     "hello",
		},
		{
			name:     "removes regex matches",
			text:     "a1b2c3",
			patterns: []string{`\d`},
			want:     "abc",
		},
		{
			name:     "removes several patterns in order",
			text:     "<p>text</p>",
			patterns: []string{"<p>", "</p>"},
			want:     "text",
		},
		{
			name:     "no match leaves text intact",
			text:     "plain",
			patterns: []string{"zap"},
			want:     "plain",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RemoveSubstrings(tt.text, tt.patterns)
			if got != tt.want {
				t.Errorf("RemoveSubstrings(%q, %v) = %q, want %q", tt.text, tt.patterns, got, tt.want)
			}
		})
	}
}

func TestCompileSubstitutionsModes(t *testing.T) {
	subs := compileSubstitutions([]string{`\d+`, "[broken", ""})
	if len(subs) != 3 {
		t.Fatalf("expected 3 substitutions, got %d", len(subs))
	}
	if subs[0].re == nil {
		t.Error("valid regex pattern should compile to regex mode")
	}
	if subs[1].re != nil || subs[1].literal != "[broken" {
		t.Error("invalid pattern should fall back to literal mode")
	}
	if subs[2].re == nil {
		t.Error("empty pattern should compile to regex mode")
	}
}
