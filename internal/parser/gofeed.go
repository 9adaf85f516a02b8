// Package parser turns raw feed documents into domain.NormalizedFeed values.
package parser

import (
	"bytes"
	"strings"

	"github.com/mmcdole/gofeed"

	"feedsync/internal/domain"
)

// GofeedParser accepts RSS, Atom and JSON Feed documents.
type GofeedParser struct {
	parser *gofeed.Parser
}

func New() *GofeedParser {
	return &GofeedParser{parser: gofeed.NewParser()}
}

// Parse returns *domain.ParseError for any document gofeed rejects; no
// partial result is produced.
func (p *GofeedParser) Parse(raw []byte) (*domain.NormalizedFeed, error) {
	feed, err := p.parser.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, &domain.ParseError{Err: err}
	}
	return normalize(feed), nil
}

func normalize(feed *gofeed.Feed) *domain.NormalizedFeed {
	out := &domain.NormalizedFeed{
		Title:     optional(feed.Title),
		SiteLinks: siteLinks(feed),
		Entries:   make([]domain.NormalizedEntry, 0, len(feed.Items)),
	}

	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		out.Entries = append(out.Entries, normalizeItem(item))
	}

	return out
}

func normalizeItem(item *gofeed.Item) domain.NormalizedEntry {
	content := item.Content
	if content == "" {
		content = item.Description
	}

	entry := domain.NormalizedEntry{
		Title:       optional(item.Title),
		Content:     optional(content),
		Links:       uniqueLinks(append([]string{item.Link}, item.Links...), ""),
		PublishedAt: item.PublishedParsed,
		UpdatedAt:   item.UpdatedParsed,
	}

	for _, person := range item.Authors {
		if person != nil && strings.TrimSpace(person.Name) != "" {
			entry.Authors = append(entry.Authors, strings.TrimSpace(person.Name))
		}
	}
	if len(entry.Authors) == 0 && item.Author != nil && strings.TrimSpace(item.Author.Name) != "" {
		entry.Authors = []string{strings.TrimSpace(item.Author.Name)}
	}

	return entry
}

// siteLinks lists the human-facing links of a feed, main link first. The
// feed's own document URL is not a site link.
func siteLinks(feed *gofeed.Feed) []string {
	return uniqueLinks(append([]string{feed.Link}, feed.Links...), feed.FeedLink)
}

func uniqueLinks(links []string, exclude string) []string {
	var out []string
	seen := make(map[string]struct{}, len(links))
	for _, l := range links {
		l = strings.TrimSpace(l)
		if l == "" || l == exclude {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
