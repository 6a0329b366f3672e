// Package sse provides a minimal, purpose-built SSE (Server-Sent Events)
// line reader for streamflow. It reassembles "data:" lines from a
// chunk-fragmented byte stream while optionally forwarding the raw bytes
// verbatim to a downstream writer in a tee pipe fashion.
//
// Unlike a browser EventSource, every "data:" line is yielded as its own
// Frame: the producer writes one JSON document per line and blank-line
// event boundaries carry no meaning.
//
// This package intentionally does NOT provide SSE writer or server
// capabilities.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// DoneSentinel is the data payload that terminates a stream.
const DoneSentinel = "[DONE]"

// Frame is one decoded "data:" line.
type Frame struct {
	// Data is the line content after "data:", with one optional leading
	// space stripped.
	Data string

	// Event is the most recent "event:" field seen before this line, if any.
	Event string

	// ID is the most recent "id:" field seen before this line, if any.
	ID string
}
