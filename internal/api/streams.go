package api

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"feedsync/internal/domain"
)

const (
	feedPrefix  = "feed/"
	labelPrefix = "user/-/label/"

	streamReadingList = "user/-/state/com.google/reading-list"
	streamStarred     = "user/-/state/com.google/starred"
	streamRead        = "user/-/state/com.google/read"

	itemIDPrefix = "tag:google.com,2005:reader/item/"
)

func feedStreamID(id int64) string {
	return feedPrefix + strconv.FormatInt(id, 10)
}

func labelStreamID(name string) string {
	return labelPrefix + name
}

// longItemID renders an item id in the form Reader clients expect.
func longItemID(id int64) string {
	return fmt.Sprintf("%s%016x", itemIDPrefix, id)
}

// parseItemID accepts the long hexadecimal form and plain decimal ids.
func parseItemID(raw string) (int64, error) {
	if hex, ok := strings.CutPrefix(raw, itemIDPrefix); ok {
		id, err := strconv.ParseUint(hex, 16, 64)
		if err != nil {
			return 0, badRequest("invalid item id %q", raw)
		}
		return int64(id), nil
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, badRequest("invalid item id %q", raw)
	}
	return id, nil
}

func parseFeedStream(s string) (int64, error) {
	raw, ok := strings.CutPrefix(s, feedPrefix)
	if !ok {
		return 0, badRequest("not a feed stream: %q", s)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, badRequest("invalid feed id in %q", s)
	}
	return id, nil
}

// streamFilter turns a stream id into an item filter. An empty stream is the
// reading list.
func (s *Server) streamFilter(ctx context.Context, stream string) (domain.ItemFilter, error) {
	switch {
	case stream == "" || stream == streamReadingList:
		return domain.ItemFilter{}, nil
	case stream == streamStarred:
		return domain.ItemFilter{StarredOnly: true}, nil
	case strings.HasPrefix(stream, feedPrefix):
		id, err := parseFeedStream(stream)
		if err != nil {
			return domain.ItemFilter{}, err
		}
		if _, err := s.reader.GetFeed(ctx, id); err != nil {
			return domain.ItemFilter{}, err
		}
		return domain.ItemFilter{FeedID: id}, nil
	case strings.HasPrefix(stream, labelPrefix):
		tag, err := s.reader.GetTagByName(ctx, strings.TrimPrefix(stream, labelPrefix))
		if err != nil {
			return domain.ItemFilter{}, err
		}
		return domain.ItemFilter{TagID: tag.ID}, nil
	default:
		return domain.ItemFilter{}, badRequest("unsupported stream %q", stream)
	}
}
