package domaingate

import "testing"

func TestInDomain(t *testing.T) {
	g := Default()

	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"korean menu question", "내일 후생관 메뉴 얼마야", true},
		{"english menu question", "what is on the cafeteria menu today", true},
		{"one-char typo", "cafteria lunch please", true},
		{"accented spanish", "menú del comedor", true},
		{"payment question", "포인트 적립 어떻게 해", true},
		{"unrelated sentence", "quantum chromodynamics lattice simulation", false},
		{"empty", "", false},
		{"whitespace only", "   \t\n ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.InDomain(tt.in); got != tt.want {
				t.Errorf("InDomain(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeLoose_Idempotent(t *testing.T) {
	inputs := []string{
		"Menú  del   Comedor",
		"내일 후생관   메뉴",
		"CAFETERÍA",
		"",
	}
	for _, in := range inputs {
		once := NormalizeLoose(in)
		twice := NormalizeLoose(once)
		if once != twice {
			t.Errorf("NormalizeLoose not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestNormalize_CollapsesWhitespace(t *testing.T) {
	if got := Normalize("오늘   뭐\t나와 "); got != "오늘 뭐 나와" {
		t.Errorf("Normalize = %q", got)
	}
}

func TestEmptyLexicon(t *testing.T) {
	g := New(nil, 0)
	if g.InDomain("cafeteria menu") {
		t.Error("empty lexicon must classify everything off-topic")
	}
}
