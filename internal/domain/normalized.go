package domain

import "time"

// NormalizedFeed is the parser-independent shape of a fetched feed document.
type NormalizedFeed struct {
	Title     *string
	SiteLinks []string
	Entries   []NormalizedEntry
}

type NormalizedEntry struct {
	Title       *string
	Content     *string
	Links       []string
	Authors     []string
	PublishedAt *time.Time
	UpdatedAt   *time.Time
}
