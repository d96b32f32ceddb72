package models

import (
	"fmt"
	"strings"
	"time"
)

// BestSource is the payload cached for a resolved title. Timestamps are
// unix milliseconds to keep the wire format compact for clients.
type BestSource struct {
	Source     string `json:"source"`
	ID         string `json:"id"`
	SourceName string `json:"source_name"`
	UpdateTime int64  `json:"updateTime"`
	ExpireAt   int64  `json:"expireAt"`
}

// NewBestSource builds a payload for the winning candidate with the given TTL.
func NewBestSource(source, id, sourceName string, ttl time.Duration) BestSource {
	now := time.Now()
	return BestSource{
		Source:     source,
		ID:         id,
		SourceName: sourceName,
		UpdateTime: now.UnixMilli(),
		ExpireAt:   now.Add(ttl).UnixMilli(),
	}
}

// PrewarmItem identifies one watch-list title for background warming.
// Identity is the (title, year) pair; year may be empty.
type PrewarmItem struct {
	Title string `json:"title"`
	Year  string `json:"year,omitempty"`
}

// Key returns the cache key and checked-set identity for this item.
func (p PrewarmItem) Key() string {
	return fmt.Sprintf("%s_%s", strings.TrimSpace(p.Title), strings.TrimSpace(p.Year))
}
