package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"feedsync/internal/auth"
	"feedsync/internal/domain"
	"feedsync/internal/service"
)

const maxUnreadCount = 1000

func (s *Server) handleClientLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeText(w, http.StatusBadRequest, "Error=BadRequest\n")
		return
	}

	token, err := s.auth.Login(r.Context(), r.Form.Get("Email"), r.Form.Get("Passwd"))
	if errors.Is(err, auth.ErrUnauthorized) {
		writeText(w, http.StatusUnauthorized, "Error=BadAuthentication\n")
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeText(w, http.StatusOK, fmt.Sprintf("SID=%s\nLSID=%s\nAuth=%s\n", token, token, token))
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	token, _ := r.Context().Value(tokenKey).(string)
	writeText(w, http.StatusOK, token)
}

type tagJSON struct {
	ID          string `json:"id"`
	Type        string `json:"type,omitempty"`
	UnreadCount *int64 `json:"unread_count,omitempty"`
}

func (s *Server) handleTagList(w http.ResponseWriter, r *http.Request) {
	tags, err := s.reader.ListTags(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	counts, err := s.counts.GetUnreadCounts(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]tagJSON, 0, len(tags)+1)
	out = append(out, tagJSON{ID: streamStarred})
	for _, t := range tags {
		n := counts.PerTag[t.ID]
		out = append(out, tagJSON{ID: labelStreamID(t.Name), Type: "tag", UnreadCount: &n})
	}

	writeJSON(w, http.StatusOK, map[string]any{"tags": out})
}

func (s *Server) handleDisableTag(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeError(w, r, badRequest("invalid form"))
		return
	}

	name := strings.TrimPrefix(r.Form.Get("s"), labelPrefix)
	if name == "" {
		name = r.Form.Get("t")
	}

	tag, err := s.reader.GetTagByName(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.reader.DeleteTag(r.Context(), tag.ID); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeText(w, http.StatusOK, "OK")
}

type categoryJSON struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type subscriptionJSON struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Categories []categoryJSON `json:"categories"`
	URL        string         `json:"url"`
	HTMLURL    *string        `json:"htmlUrl"`
	IconURL    *string        `json:"iconUrl"`
}

func (s *Server) handleSubscriptionList(w http.ResponseWriter, r *http.Request) {
	feeds, err := s.reader.ListFeeds(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]subscriptionJSON, 0, len(feeds))
	for _, f := range feeds {
		cats := make([]categoryJSON, 0, len(f.Tags))
		for _, t := range f.Tags {
			cats = append(cats, categoryJSON{ID: labelStreamID(t.Name), Label: t.Name})
		}
		out = append(out, subscriptionJSON{
			ID:         feedStreamID(f.ID),
			Title:      f.Title,
			Categories: cats,
			URL:        f.FeedURI,
			HTMLURL:    f.SiteURI,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"subscriptions": out})
}

func (s *Server) handleQuickAdd(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeError(w, r, badRequest("invalid form"))
		return
	}

	uri := strings.TrimPrefix(r.Form.Get("quickadd"), feedPrefix)
	feed, err := s.subs.AddFeed(r.Context(), uri)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"numResults": 1,
		"query":      uri,
		"streamId":   feedStreamID(feed.ID),
		"streamName": feed.Title,
	})
}

func (s *Server) handleSubscriptionEdit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeError(w, r, badRequest("invalid form"))
		return
	}
	ctx := r.Context()
	stream := r.Form.Get("s")

	var feedID int64
	switch r.Form.Get("ac") {
	case "subscribe":
		feed, err := s.subs.AddFeed(ctx, strings.TrimPrefix(stream, feedPrefix))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		feedID = feed.ID
	case "edit":
		id, err := parseFeedStream(stream)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if _, err := s.reader.GetFeed(ctx, id); err != nil {
			s.writeError(w, r, err)
			return
		}
		feedID = id
	case "unsubscribe":
		id, err := parseFeedStream(stream)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := s.subs.DeleteFeed(ctx, id); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeText(w, http.StatusOK, "OK")
		return
	default:
		s.writeError(w, r, badRequest("unknown action %q", r.Form.Get("ac")))
		return
	}

	if title := r.Form.Get("t"); title != "" {
		if err := s.reader.RenameFeed(ctx, feedID, title); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	for _, label := range r.Form["a"] {
		if _, err := s.reader.TagFeed(ctx, feedID, strings.TrimPrefix(label, labelPrefix)); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	for _, label := range r.Form["r"] {
		if err := s.reader.UntagFeed(ctx, feedID, strings.TrimPrefix(label, labelPrefix)); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	writeText(w, http.StatusOK, "OK")
}

type syncStatsJSON struct {
	Feeds     int   `json:"feeds,omitempty"`
	Failed    int   `json:"failed,omitempty"`
	Fetched   int   `json:"fetched"`
	New       int   `json:"new"`
	Skipped   int   `json:"skipped"`
	Errors    int   `json:"errors"`
	Published int   `json:"published"`
	TookMs    int64 `json:"took_ms"`
}

// handleRefresh refreshes the feed named by s, or every feed when s is empty.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeError(w, r, badRequest("invalid form"))
		return
	}

	ctx := r.Context()
	if s.refreshTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.refreshTimeout)
		defer cancel()

		// The response is written after the refresh, which may outlast the
		// server write timeout.
		deadline := time.Now().Add(s.refreshTimeout + time.Second)
		if err := http.NewResponseController(w).SetWriteDeadline(deadline); err != nil {
			s.logger.Warn("cannot extend write deadline", "error", err)
		}
	}

	var (
		stats *domain.SyncStats
		err   error
	)
	if stream := r.Form.Get("s"); stream != "" {
		id, perr := parseFeedStream(stream)
		if perr != nil {
			s.writeError(w, r, perr)
			return
		}
		stats, err = s.subs.RefreshFeed(ctx, id)
	} else {
		stats, err = s.subs.Sync(ctx)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, syncStatsJSON{
		Feeds:     stats.Feeds,
		Failed:    stats.Failed,
		Fetched:   stats.Fetched,
		New:       stats.New,
		Skipped:   stats.Skipped,
		Errors:    stats.Errors,
		Published: stats.Published,
		TookMs:    stats.Duration.Milliseconds(),
	})
}

type unreadCountJSON struct {
	ID                      string `json:"id"`
	Count                   int64  `json:"count"`
	NewestItemTimestampUsec string `json:"newestItemTimestampUsec"`
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	counts, err := s.counts.GetUnreadCounts(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	feeds, err := s.reader.ListFeeds(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tags, err := s.reader.ListTags(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]unreadCountJSON, 0, len(feeds)+len(tags)+1)
	for _, f := range feeds {
		out = append(out, unreadCountJSON{ID: feedStreamID(f.ID), Count: counts.PerFeed[f.ID]})
	}
	for _, t := range tags {
		out = append(out, unreadCountJSON{ID: labelStreamID(t.Name), Count: counts.PerTag[t.ID]})
	}
	out = append(out, unreadCountJSON{ID: streamReadingList, Count: counts.Total})

	writeJSON(w, http.StatusOK, map[string]any{
		"max":          maxUnreadCount,
		"unreadcounts": out,
	})
}

type linkJSON struct {
	Href string `json:"href"`
}

type contentJSON struct {
	Direction string `json:"direction"`
	Content   string `json:"content"`
}

type originJSON struct {
	StreamID string  `json:"streamId"`
	Title    string  `json:"title"`
	HTMLURL  *string `json:"htmlUrl,omitempty"`
}

type itemJSON struct {
	ID            string      `json:"id"`
	CrawlTimeMsec string      `json:"crawlTimeMsec"`
	TimestampUsec string      `json:"timestampUsec"`
	Published     int64       `json:"published"`
	Updated       int64       `json:"updated"`
	Title         string      `json:"title"`
	Author        string      `json:"author,omitempty"`
	Canonical     []linkJSON  `json:"canonical"`
	Alternate     []linkJSON  `json:"alternate"`
	Summary       contentJSON `json:"summary"`
	Categories    []string    `json:"categories"`
	Origin        originJSON  `json:"origin"`
}

func (s *Server) handleStreamContents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	stream := q.Get("s")

	filter, err := s.streamFilter(ctx, stream)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	for _, exclude := range q["xt"] {
		if exclude == streamRead {
			filter.UnreadOnly = true
		}
	}

	if n := q.Get("n"); n != "" {
		if filter.Limit, err = strconv.Atoi(n); err != nil || filter.Limit < 0 {
			s.writeError(w, r, badRequest("invalid n %q", n))
			return
		}
	}
	filter.Limit = service.PageLimit(filter.Limit)
	if c := q.Get("c"); c != "" {
		if filter.Offset, err = strconv.Atoi(c); err != nil || filter.Offset < 0 {
			s.writeError(w, r, badRequest("invalid continuation %q", c))
			return
		}
	}
	if ot := q.Get("ot"); ot != "" {
		sec, perr := strconv.ParseInt(ot, 10, 64)
		if perr != nil {
			s.writeError(w, r, badRequest("invalid ot %q", ot))
			return
		}
		filter.OlderThan = time.Unix(sec, 0)
	}
	if nt := q.Get("nt"); nt != "" {
		sec, perr := strconv.ParseInt(nt, 10, 64)
		if perr != nil {
			s.writeError(w, r, badRequest("invalid nt %q", nt))
			return
		}
		filter.NewerThan = time.Unix(sec, 0)
	}

	items, err := s.reader.ListItems(ctx, filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	feeds, err := s.reader.ListFeeds(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	byID := make(map[int64]domain.FeedWithTags, len(feeds))
	for _, f := range feeds {
		byID[f.ID] = f
	}

	out := make([]itemJSON, 0, len(items))
	for _, it := range items {
		out = append(out, renderItem(it, byID[it.FeedID]))
	}

	if stream == "" {
		stream = streamReadingList
	}
	resp := map[string]any{
		"id":      stream,
		"updated": time.Now().Unix(),
		"items":   out,
	}
	if len(items) == filter.Limit {
		resp["continuation"] = strconv.Itoa(filter.Offset + len(items))
	}

	writeJSON(w, http.StatusOK, resp)
}

func renderItem(it domain.Item, feed domain.FeedWithTags) itemJSON {
	out := itemJSON{
		ID:            longItemID(it.ID),
		CrawlTimeMsec: strconv.FormatInt(it.CreatedAt.UnixMilli(), 10),
		TimestampUsec: strconv.FormatInt(it.UpdatedAt.UnixMicro(), 10),
		Published:     it.CreatedAt.Unix(),
		Updated:       it.UpdatedAt.Unix(),
		Title:         it.Title,
		Author:        it.Author,
		Canonical:     []linkJSON{},
		Alternate:     []linkJSON{},
		Summary:       contentJSON{Direction: "ltr", Content: it.Content},
		Categories:    []string{streamReadingList},
		Origin: originJSON{
			StreamID: feedStreamID(it.FeedID),
			Title:    feed.Title,
			HTMLURL:  feed.SiteURI,
		},
	}

	if it.Link != nil {
		out.Canonical = append(out.Canonical, linkJSON{Href: *it.Link})
		out.Alternate = append(out.Alternate, linkJSON{Href: *it.Link})
	}
	if it.Read {
		out.Categories = append(out.Categories, streamRead)
	}
	if it.Star {
		out.Categories = append(out.Categories, streamStarred)
	}
	for _, t := range feed.Tags {
		out.Categories = append(out.Categories, labelStreamID(t.Name))
	}
	return out
}

func (s *Server) handleEditTag(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeError(w, r, badRequest("invalid form"))
		return
	}

	var read, star *bool
	yes, no := true, false
	for _, tag := range r.Form["a"] {
		switch tag {
		case streamRead:
			read = &yes
		case streamStarred:
			star = &yes
		}
	}
	for _, tag := range r.Form["r"] {
		switch tag {
		case streamRead:
			read = &no
		case streamStarred:
			star = &no
		}
	}

	ids := r.Form["i"]
	if len(ids) == 0 {
		s.writeError(w, r, badRequest("missing item id"))
		return
	}

	for _, raw := range ids {
		id, err := parseItemID(raw)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := s.reader.SetReadState(r.Context(), id, read, star); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	writeText(w, http.StatusOK, "OK")
}

// handleMarkAllAsRead marks the stream read up to ts, given in microseconds.
func (s *Server) handleMarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeError(w, r, badRequest("invalid form"))
		return
	}

	filter, err := s.streamFilter(r.Context(), r.Form.Get("s"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if ts := r.Form.Get("ts"); ts != "" {
		usec, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			s.writeError(w, r, badRequest("invalid ts %q", ts))
			return
		}
		filter.OlderThan = time.UnixMicro(usec)
	}

	if _, err := s.reader.MarkAllRead(r.Context(), filter); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeText(w, http.StatusOK, "OK")
}
