// Package clip defines the clipboard value type shared between the
// transport, session, dedup store, and worker layers.
package clip

import "time"

// Clip is an immutable unit of clipboard content: UTF-8 text plus the
// wall-clock millisecond timestamp it was created at.
type Clip struct {
	Text      string `json:"text"`
	Timestamp uint64 `json:"timestamp"`
}

// New stamps text with the current wall clock, in milliseconds since the
// Unix epoch.
func New(text string) Clip {
	return Clip{
		Text:      text,
		Timestamp: uint64(time.Now().UnixMilli()),
	}
}

// NewerThan reports whether c should replace other: strictly later and
// carrying different text. Equal timestamps are always rejected, even when
// the text differs — a local clip and its server echo share a timestamp and
// must be treated as the same event.
func (c Clip) NewerThan(other Clip) bool {
	return c.Timestamp > other.Timestamp && c.Text != other.Text
}
