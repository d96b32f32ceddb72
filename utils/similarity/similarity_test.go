package similarity

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "lowercases", input: "The Matrix", expected: "thematrix"},
		{name: "strips punctuation", input: "Spider-Man: No Way Home", expected: "spidermannowayhome"},
		{name: "strips whitespace", input: "  a  b\tc ", expected: "abc"},
		{name: "keeps digits", input: "Blade Runner 2049", expected: "bladerunner2049"},
		{name: "transliterates accents", input: "Amélie", expected: "amelie"},
		{name: "empty", input: "", expected: ""},
		{name: "punctuation only", input: "?!...", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.expected {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTitlesMatch(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected bool
	}{
		{name: "identical", a: "The Matrix", b: "the matrix", expected: true},
		{name: "candidate contains target", a: "Dune", b: "Dune: Part Two", expected: true},
		{name: "target contains candidate", a: "Dune: Part Two", b: "Dune", expected: true},
		{name: "punctuation variants", a: "Spider-Man", b: "Spider Man", expected: true},
		{name: "unrelated", a: "The Matrix", b: "Inception", expected: false},
		{name: "empty target never matches", a: "", b: "Inception", expected: false},
		{name: "both empty", a: "", b: "", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TitlesMatch(tt.a, tt.b); got != tt.expected {
				t.Errorf("TitlesMatch(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}

func TestYearMatches(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected bool
	}{
		{name: "equal years", a: "2024", b: "2024", expected: true},
		{name: "different years", a: "2024", b: "2021", expected: false},
		{name: "absent on one side", a: "", b: "2024", expected: true},
		{name: "absent on other side", a: "2024", b: "", expected: true},
		{name: "both absent", a: "", b: "", expected: true},
		{name: "whitespace treated as absent", a: "  ", b: "2024", expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := YearMatches(tt.a, tt.b); got != tt.expected {
				t.Errorf("YearMatches(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}
