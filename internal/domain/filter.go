package domain

import "time"

// ItemFilter narrows item listings and bulk read-state updates. Zero values
// mean "no restriction".
type ItemFilter struct {
	FeedID      int64
	TagID       int64
	UnreadOnly  bool
	StarredOnly bool
	OlderThan   time.Time
	NewerThan   time.Time
	Limit       int
	Offset      int
}
