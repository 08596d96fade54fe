package prowlarr

import "testing"

func TestParseReleaseTitle(t *testing.T) {
	tests := []struct {
		name     string
		release  string
		title    string
		author   string
		narrator string
	}{
		{
			name:     "three part dash format",
			release:  "The Way of Kings - Brandon Sanderson - Michael Kramer",
			title:    "The Way of Kings",
			author:   "Brandon Sanderson",
			narrator: "Michael Kramer",
		},
		{
			name:     "tags stripped before parsing",
			release:  "The Way of Kings - Brandon Sanderson - Michael Kramer [ENG / M4B] (2010)",
			title:    "The Way of Kings",
			author:   "Brandon Sanderson",
			narrator: "Michael Kramer",
		},
		{
			name:     "author dash single word title",
			release:  "Brandon Sanderson - Mistborn",
			title:    "Mistborn",
			author:   "Brandon Sanderson",
			narrator: "Unknown",
		},
		{
			name:     "title dash author",
			release:  "The Final Empire - Sanderson",
			title:    "The Final Empire",
			author:   "Sanderson",
			narrator: "Unknown",
		},
		{
			name:     "by format",
			release:  "Project Hail Mary by Andy Weir",
			title:    "Project Hail Mary",
			author:   "Andy Weir",
			narrator: "Unknown",
		},
		{
			name:     "by format case insensitive",
			release:  "Project Hail Mary BY Andy Weir",
			title:    "Project Hail Mary",
			author:   "Andy Weir",
			narrator: "Unknown",
		},
		{
			name:     "no separators",
			release:  "SomeOpaqueReleaseName",
			title:    "SomeOpaqueReleaseName",
			author:   "Unknown",
			narrator: "Unknown",
		},
		{
			name:     "only tags",
			release:  "Dune [FLAC]",
			title:    "Dune",
			author:   "Unknown",
			narrator: "Unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, author, narrator := ParseReleaseTitle(tt.release)
			if title != tt.title {
				t.Errorf("title = %q, want %q", title, tt.title)
			}
			if author != tt.author {
				t.Errorf("author = %q, want %q", author, tt.author)
			}
			if narrator != tt.narrator {
				t.Errorf("narrator = %q, want %q", narrator, tt.narrator)
			}
		})
	}
}
