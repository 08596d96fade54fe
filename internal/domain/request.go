package domain

import "time"

// Request represents one user's interest in one book.
// Uniqueness is enforced on (ASIN, Username).
type Request struct {
	ID        string    `json:"id"`
	ASIN      string    `json:"asin"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// WishlistEntry is a requested book together with everyone who requested it.
type WishlistEntry struct {
	Book     *Book     `json:"book"`
	Requests []Request `json:"requests"`
}

// WishlistCounts summarizes requested books by download state.
type WishlistCounts struct {
	Requested  int `json:"requested"`
	Downloaded int `json:"downloaded"`
}
