package googlebooks

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

const volumesFixture = `{
  "totalItems": 2,
  "items": [
    {
      "volumeInfo": {
        "title": "Project Hail Mary",
        "authors": ["Andy Weir"],
        "description": "A lone astronaut must save the earth.",
        "categories": ["Fiction"],
        "publishedDate": "2021-05-04",
        "pageCount": 496,
        "averageRating": 4.5,
        "ratingsCount": 1200,
        "imageLinks": {
          "thumbnail": "http://books.google.com/thumb.jpg",
          "large": "http://books.google.com/large.jpg"
        },
        "industryIdentifiers": [
          {"type": "ISBN_10", "identifier": "0593135202"},
          {"type": "ISBN_13", "identifier": "9780593135204"}
        ]
      }
    },
    {
      "volumeInfo": {
        "title": "Artemis",
        "authors": ["Andy Weir"]
      }
    }
  ]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})))
	client.httpClient = server.Client()
	client.baseURL = server.URL
	return client
}

func TestClient_Lookup(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(volumesFixture))
	})

	meta, err := client.Lookup(context.Background(), "Project Hail Mary", "Andy Weir")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if meta.Description != "A lone astronaut must save the earth." {
		t.Errorf("unexpected description: %q", meta.Description)
	}
	if len(meta.Authors) != 1 || meta.Authors[0] != "Andy Weir" {
		t.Errorf("unexpected authors: %v", meta.Authors)
	}
	if meta.ISBN != "9780593135204" {
		t.Errorf("expected ISBN_13 preferred, got %q", meta.ISBN)
	}
	if meta.CoverURL != "https://books.google.com/large.jpg" {
		t.Errorf("expected https large cover, got %q", meta.CoverURL)
	}
	if meta.PageCount != 496 {
		t.Errorf("expected page count 496, got %d", meta.PageCount)
	}
	if meta.Provider != Provider {
		t.Errorf("expected provider %q, got %q", Provider, meta.Provider)
	}
	if meta.Empty() {
		t.Error("metadata should not be empty")
	}
}

func TestClient_Lookup_StrategyFallback(t *testing.T) {
	var queries []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		queries = append(queries, q)
		// Only the title-only strategy finds anything.
		if q == `intitle:"The Martian"` {
			w.Write([]byte(volumesFixture))
			return
		}
		w.Write([]byte(`{"totalItems": 0}`))
	})

	meta, err := client.Lookup(context.Background(), "The Martian", "Andy Weir")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta == nil {
		t.Fatal("expected metadata")
	}

	want := []string{
		`intitle:"The Martian" inauthor:"Andy Weir"`,
		`intitle:"Martian" inauthor:"Andy Weir"`,
		`intitle:"The Martian"`,
	}
	if len(queries) != len(want) {
		t.Fatalf("got %d queries, want %d: %v", len(queries), len(want), queries)
	}
	for i := range want {
		if queries[i] != want[i] {
			t.Errorf("query[%d] = %q, want %q", i, queries[i], want[i])
		}
	}
}

func TestClient_Lookup_NoArticleSkipsStrippedStrategy(t *testing.T) {
	var queries []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query().Get("q"))
		w.Write([]byte(`{"totalItems": 0}`))
	})

	_, err := client.Lookup(context.Background(), "Mistborn", "Brandon Sanderson")
	if !errors.Is(err, ErrNoResults) {
		t.Fatalf("expected ErrNoResults, got %v", err)
	}
	if len(queries) != 3 {
		t.Errorf("expected 3 strategies for article-free title, got %d: %v", len(queries), queries)
	}
	if queries[len(queries)-1] != "Mistborn Brandon Sanderson" {
		t.Errorf("unexpected final keyword query: %q", queries[len(queries)-1])
	}
}

func TestClient_Lookup_ServerErrorFallsThrough(t *testing.T) {
	var calls int
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(volumesFixture))
	})

	meta, err := client.Lookup(context.Background(), "The Martian", "Andy Weir")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta == nil || meta.Description == "" {
		t.Error("expected metadata from second strategy")
	}
}

func TestClient_Lookup_ContextCancelled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.Lookup(ctx, "Dune", "Frank Herbert"); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestBestCover(t *testing.T) {
	tests := []struct {
		name  string
		links map[string]string
		want  string
	}{
		{
			name: "prefers extraLarge",
			links: map[string]string{
				"thumbnail":  "http://x/t.jpg",
				"extraLarge": "https://x/xl.jpg",
				"medium":     "https://x/m.jpg",
			},
			want: "https://x/xl.jpg",
		},
		{
			name:  "upgrades http",
			links: map[string]string{"thumbnail": "http://x/t.jpg"},
			want:  "https://x/t.jpg",
		},
		{
			name:  "empty map",
			links: nil,
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := bestCover(tt.links); got != tt.want {
				t.Errorf("bestCover() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractISBN(t *testing.T) {
	ids := []industryIdentifier{
		{Type: "ISBN_10", Identifier: "0593135202"},
		{Type: "OTHER", Identifier: "abc"},
	}
	if got := extractISBN(ids); got != "0593135202" {
		t.Errorf("expected ISBN_10 fallback, got %q", got)
	}
	if got := extractISBN(nil); got != "" {
		t.Errorf("expected empty for no identifiers, got %q", got)
	}
}

func TestSearchKey(t *testing.T) {
	key := SearchKey("The Way of Kings", "Brandon Sanderson")
	if len(key) != 16 {
		t.Fatalf("expected 16-char key, got %d", len(key))
	}
	if key != SearchKey("  the way of kings  ", "BRANDON SANDERSON") {
		t.Error("key should be case and whitespace insensitive")
	}
	if key == SearchKey("The Way of Kings", "Someone Else") {
		t.Error("different authors should produce different keys")
	}
}
