// Package content narrows raw source records before they reach a prompt.
package content

import (
	"strings"
	"time"
)

// Record is anything with a timestamp and a sender identity.
type Record interface {
	Timestamp() time.Time
	SenderKeys() []string
}

// FilterRecent keeps records with now-window <= ts <= now, preserving order.
func FilterRecent[T Record](records []T, window time.Duration, now time.Time) []T {
	cutoff := now.Add(-window)
	out := make([]T, 0, len(records))
	for _, r := range records {
		ts := r.Timestamp()
		if ts.Before(cutoff) || ts.After(now) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// FilterBySender keeps records whose sender matches an allowlist entry,
// case-insensitively. An empty allowlist keeps everything.
func FilterBySender[T Record](records []T, allowlist []string) []T {
	if len(allowlist) == 0 {
		return records
	}
	allowed := make(map[string]struct{}, len(allowlist))
	for _, a := range allowlist {
		allowed[strings.ToLower(strings.TrimSpace(a))] = struct{}{}
	}

	out := make([]T, 0, len(records))
	for _, r := range records {
		for _, key := range r.SenderKeys() {
			if key == "" {
				continue
			}
			if _, ok := allowed[strings.ToLower(key)]; ok {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// Select applies FilterRecent then FilterBySender.
func Select[T Record](records []T, window time.Duration, now time.Time, allowlist []string) []T {
	return FilterBySender(FilterRecent(records, window, now), allowlist)
}
