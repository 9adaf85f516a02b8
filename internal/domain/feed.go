package domain

import "time"

type Feed struct {
	ID        int64     `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	FeedURI   string    `db:"feed_uri" json:"feed_uri"`
	SiteURI   *string   `db:"site_uri" json:"site_uri,omitempty"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type Item struct {
	ID        int64     `db:"id" json:"id"`
	FeedID    int64     `db:"feed_id" json:"feed_id"`
	Hash      string    `db:"hash" json:"hash"`
	Link      *string   `db:"link" json:"link,omitempty"`
	Title     string    `db:"title" json:"title"`
	Author    string    `db:"author" json:"author"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
	Read      bool      `db:"read" json:"read"`
	Star      bool      `db:"star" json:"star"`
}

type Tag struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Tagging associates a feed with a tag.
type Tagging struct {
	FeedID int64 `db:"feed_id"`
	TagID  int64 `db:"tag_id"`
}

// FeedWithTags is a feed together with the tags attached to it.
type FeedWithTags struct {
	Feed
	Tags []Tag `json:"tags"`
}
