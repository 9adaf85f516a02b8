package domain

import "time"

// SyncStats holds statistics about a sync operation. For a refresh of all
// feeds the counters are summed and Feeds/Failed count the feeds touched.
type SyncStats struct {
	FeedID    int64
	Fetched   int
	New       int
	Skipped   int
	Errors    int
	Published int
	Feeds     int
	Failed    int
	Duration  time.Duration
}

func (s *SyncStats) Add(other *SyncStats) {
	if other == nil {
		return
	}
	s.Fetched += other.Fetched
	s.New += other.New
	s.Skipped += other.Skipped
	s.Errors += other.Errors
	s.Published += other.Published
}

// UnreadCounts is the read-state summary across feeds and tags. Total is
// summed over feeds, so a feed carrying several tags is counted once.
type UnreadCounts struct {
	PerFeed map[int64]int64
	PerTag  map[int64]int64
	Total   int64
}
