// Package frame implements the envelope nodes exchange over mailboxes: a
// Value payload plus routing metadata, and the sentinel None frame used to
// start a graph's source nodes.
package frame

import (
	"time"

	"github.com/dagflow/flowcore/pkg/flow/value"
)

// Frame is the unit of data carried over a mailbox edge.
type Frame struct {
	none bool
	v    value.Value
	at   time.Time
	tags map[string]string
}

// New wraps v as a frame stamped with the current time.
func New(v value.Value) Frame {
	return Frame{v: v, at: time.Now()}
}

// None returns the sentinel frame injected into a graph's starter nodes,
// mirroring the upstream engine's "kick" message with no payload.
func None() Frame { return Frame{none: true, at: time.Now()} }

// IsNone reports whether f is the starter sentinel.
func (f Frame) IsNone() bool { return f.none }

// Value returns the payload. It is the zero Value if f IsNone.
func (f Frame) Value() value.Value { return f.v }

// Timestamp returns when the frame was created.
func (f Frame) Timestamp() time.Time { return f.at }

// WithTag returns a copy of f with tag key set to val.
func (f Frame) WithTag(key, val string) Frame {
	tags := make(map[string]string, len(f.tags)+1)
	for k, v := range f.tags {
		tags[k] = v
	}
	tags[key] = val
	f.tags = tags
	return f
}

// Tag returns the value of a tag previously set with WithTag.
func (f Frame) Tag(key string) (string, bool) {
	v, ok := f.tags[key]
	return v, ok
}
