package normalize

import "testing"

func TestText(t *testing.T) {
	tests := []struct {
		name        string
		in          string
		primaryOnly bool
		want        string
	}{
		{"empty", "", false, ""},
		{"lowercases", "The Way of Kings", false, "the way of kings"},
		{"strips punctuation", "Mistborn: The Final Empire!", false, "mistborn the final empire"},
		{"collapses whitespace", "  The   Hobbit  ", false, "the hobbit"},
		{"primary truncates at colon", "Mistborn: The Final Empire", true, "mistborn"},
		{"primary truncates at paren", "Elantris (Unabridged)", true, "elantris"},
		{"primary truncates at bracket", "Warbreaker [MP3 64k]", true, "warbreaker"},
		{"primary truncates at em dash", "Oathbringer — Book 3", true, "oathbringer"},
		{"primary without delimiter", "The Final Empire", true, "the final empire"},
		{"unicode letters survive", "Les Misérables", false, "les misérables"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(tt.in, tt.primaryOnly); got != tt.want {
				t.Errorf("Text(%q, %v) = %q, want %q", tt.in, tt.primaryOnly, got, tt.want)
			}
		})
	}
}

func TestTextDeterministic(t *testing.T) {
	// Same logical input through different surface forms must normalize
	// identically; virtual ASINs depend on it.
	a := Text("The Way of Kings", false)
	b := Text("the  way   of KINGS!", false)
	if a != b {
		t.Errorf("normalized forms differ: %q vs %q", a, b)
	}
}

func TestKey(t *testing.T) {
	if Key("The Hobbit", "J.R.R. Tolkien") != "the hobbit:j r r tolkien" {
		t.Errorf("unexpected key: %q", Key("The Hobbit", "J.R.R. Tolkien"))
	}
}
