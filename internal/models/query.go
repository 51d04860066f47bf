package models

import (
	"net/url"
	"slices"
	"strings"
)

// SortKey selects the torrent field a list is ordered by.
type SortKey string

const (
	SortAdded    SortKey = "added"
	SortName     SortKey = "name"
	SortProgress SortKey = "progress"
	SortSize     SortKey = "size"
	SortStatus   SortKey = "status"
	SortEta      SortKey = "eta"
)

// Query holds the list parameters of one request or stream. It is parsed once and never mutated.
type Query struct {
	Filter    string
	Sort      SortKey
	Ascending bool
}

// ParseQuery reads q (filter), sort and dir ("ascend" or "descend") from the request values.
// Unknown sort keys fall back to [SortAdded]; lists default to descending order.
func ParseQuery(v url.Values) Query {
	q := Query{
		Filter:    strings.TrimSpace(v.Get("q")),
		Sort:      SortKey(strings.ToLower(v.Get("sort"))),
		Ascending: v.Get("dir") == "ascend",
	}

	switch q.Sort {
	case SortAdded, SortName, SortProgress, SortSize, SortStatus, SortEta:
	default:
		q.Sort = SortAdded
	}

	return q
}

// Values encodes the query back into URL parameters, omitting defaults.
func (q Query) Values() url.Values {
	v := url.Values{}
	if q.Filter != "" {
		v.Set("q", q.Filter)
	}
	if q.Sort != "" && q.Sort != SortAdded {
		v.Set("sort", string(q.Sort))
	}
	if q.Ascending {
		v.Set("dir", "ascend")
	}
	return v
}

// Matches reports whether the torrent name contains the filter, ignoring case.
func (q Query) Matches(t Torrent) bool {
	if q.Filter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(t.Name), strings.ToLower(q.Filter))
}

// Apply returns the matching torrents in query order. The input slice is left untouched.
// Ties are broken by name and then hash so the order is deterministic between polls.
func (q Query) Apply(torrents []Torrent) []Torrent {
	out := make([]Torrent, 0, len(torrents))
	for _, t := range torrents {
		if q.Matches(t) {
			out = append(out, t)
		}
	}

	slices.SortStableFunc(out, func(a, b Torrent) int {
		c := q.compare(a, b)
		if !q.Ascending {
			c = -c
		}
		if c != 0 {
			return c
		}
		if c = strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.HashString, b.HashString)
	})

	return out
}

func (q Query) compare(a, b Torrent) int {
	switch q.Sort {
	case SortName:
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	case SortProgress:
		return cmp(a.PercentDone, b.PercentDone)
	case SortSize:
		return cmp(a.TotalSize, b.TotalSize)
	case SortStatus:
		return cmp(a.Status, b.Status)
	case SortEta:
		return cmp(etaKey(a), etaKey(b))
	default:
		return cmp(a.AddedDate, b.AddedDate)
	}
}

// etaKey orders unknown ETAs after every known one.
func etaKey(t Torrent) int64 {
	if t.Eta < 0 {
		return 1<<63 - 1
	}
	return t.Eta
}

func cmp[T int64 | float64 | TorrentStatus](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
