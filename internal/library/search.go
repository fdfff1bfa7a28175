package library

import (
	"strings"

	"github.com/sahilm/fuzzy"

	"beatcache/internal/beatmap"
)

// SearchResult is one fuzzy match over cached records.
type SearchResult struct {
	Record beatmap.ValidRecord `json:"record"`
	Score  int                 `json:"score"`
}

// recordSource implements fuzzy.Source over record search text.
type recordSource []beatmap.ValidRecord

func (s recordSource) String(i int) string { return searchText(s[i].Metadata) }
func (s recordSource) Len() int            { return len(s) }

func searchText(m beatmap.Metadata) string {
	parts := []string{m.Title(), m.SongAuthorName, m.LevelAuthorName, m.Key}
	fields := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			fields = append(fields, p)
		}
	}
	return strings.Join(fields, " ")
}

// Search fuzzy-matches query against title, artist, mapper, and key. Results
// are best match first; a blank query returns records in hash order. A limit
// of zero or less falls back to the configured limit.
func (l *Library) Search(query string, limit int) []SearchResult {
	if limit <= 0 {
		limit = l.cfg.Search.Limit
	}
	records := l.cache.All()

	var results []SearchResult
	if strings.TrimSpace(query) == "" {
		for _, rec := range records {
			results = append(results, SearchResult{Record: rec})
		}
	} else {
		for _, match := range fuzzy.FindFrom(strings.TrimSpace(query), recordSource(records)) {
			results = append(results, SearchResult{Record: records[match.Index], Score: match.Score})
		}
	}

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
