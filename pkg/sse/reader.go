package sse

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
)

const readChunkSize = 32 * 1024

// Reader reads SSE frames from a source io.Reader while simultaneously
// writing all raw bytes verbatim to a destination io.Writer.
// This effectively enables "tee" shaped reading where Reader.Next
// returns the Frame for consumption while writing to a separate destination.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐   ┌───────────────────────┐
// │  Reader.Next()   │──▶│ destination io.Writer │
// └──────────────────┘   └───────────────────────┘
// │
// ▼
// ┌──────────────────┐
// │      Frame       │
// └──────────────────┘
//
// Source reads happen on a background goroutine so that Next can give up
// waiting when its context is cancelled. Once Next has returned nil or an
// error the Reader is finished and every later call returns the same
// result. Callers must Close or Drain the Reader when they stop reading.
type Reader struct {
	src  io.Reader
	dest io.Writer
	dec  LineDecoder

	lines   []string
	eof     bool
	flushed bool

	event string
	id    string

	startOnce sync.Once
	stopOnce  sync.Once
	chunks    chan chunk
	stop      chan struct{}

	finished bool
	err      error
}

type chunk struct {
	data []byte
	err  error
}

// NewReader returns a Reader that parses frames from src and writes all raw
// bytes through to dest. dest may be nil, in which case nothing is teed.
// The dest writer typically backs an io.Pipe connected to the downstream HTTP
// response.
func NewReader(src io.Reader, dest io.Writer) *Reader {
	if dest == nil {
		dest = io.Discard
	}
	return &Reader{
		src:    src,
		dest:   dest,
		chunks: make(chan chunk),
		stop:   make(chan struct{}),
	}
}

// Next returns the next frame. It blocks until a complete "data:" line is
// available, the stream ends, or ctx is done.
//
// Next returns nil, nil when the source is exhausted or the "[DONE]"
// sentinel was read. When ctx is cancelled while waiting for bytes, Next
// returns ctx.Err() and the Reader never yields another frame.
func (r *Reader) Next(ctx context.Context) (*Frame, error) {
	if r.finished {
		return nil, r.err
	}
	if err := ctx.Err(); err != nil {
		return nil, r.finish(err)
	}

	for {
		for len(r.lines) > 0 {
			line := r.lines[0]
			r.lines = r.lines[1:]

			frame, ok := r.parseLine(line)
			if !ok {
				continue
			}
			if frame.Data == DoneSentinel {
				return nil, r.finish(nil)
			}
			return frame, nil
		}

		if r.eof {
			if r.flushed {
				return nil, r.finish(nil)
			}
			r.flushed = true
			if line, ok := r.dec.Flush(); ok {
				r.lines = append(r.lines, line)
			}
			continue
		}

		r.startOnce.Do(func() { go r.pump() })

		select {
		case <-ctx.Done():
			return nil, r.finish(ctx.Err())
		case c, ok := <-r.chunks:
			if !ok {
				r.eof = true
				continue
			}
			if len(c.data) > 0 {
				if _, err := r.dest.Write(c.data); err != nil {
					return nil, r.finish(err)
				}
				r.lines = append(r.lines, r.dec.Feed(c.data)...)
			}
			switch {
			case c.err == nil:
			case errors.Is(c.err, io.EOF):
				r.eof = true
			default:
				return nil, r.finish(c.err)
			}
		}
	}
}

// Close releases the background read goroutine. It does not close the
// source: a goroutine blocked in the source's Read only exits once the
// caller closes the source (an HTTP body, a pipe), so callers must always
// do so.
func (r *Reader) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// Drain tees the unread remainder of the source to dest without parsing
// it. The recording proxy calls it after the done sentinel so the client
// still receives every byte the producer wrote.
func (r *Reader) Drain(ctx context.Context) error {
	if r.err != nil {
		return r.err
	}
	if r.eof {
		return nil
	}
	r.startOnce.Do(func() { go r.pump() })

	for {
		select {
		case <-ctx.Done():
			r.Close()
			return ctx.Err()
		case c, ok := <-r.chunks:
			if !ok {
				r.eof = true
				return nil
			}
			if len(c.data) > 0 {
				if _, err := r.dest.Write(c.data); err != nil {
					r.Close()
					return err
				}
			}
			if c.err != nil {
				r.eof = true
				if errors.Is(c.err, io.EOF) {
					return nil
				}
				return c.err
			}
		}
	}
}

func (r *Reader) finish(err error) error {
	r.finished = true
	r.err = err
	r.lines = nil
	if err != nil {
		r.Close()
	}
	return err
}

// pump copies chunks from the source onto r.chunks until the source ends or
// the Reader is closed.
func (r *Reader) pump() {
	defer close(r.chunks)

	buf := make([]byte, readChunkSize)
	for {
		n, err := r.src.Read(buf)
		if n > 0 || err != nil {
			c := chunk{err: err}
			if n > 0 {
				c.data = append([]byte(nil), buf[:n]...)
			}
			select {
			case r.chunks <- c:
			case <-r.stop:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// parseLine processes a single line. Only "data:" lines produce a frame;
// "event:" and "id:" fields are remembered for the frames that follow, and
// everything else (comments, blank separators, "retry:") is ignored.
//
// Per the SSE spec, the first space after the colon is optional and
// stripped if present.
func (r *Reader) parseLine(line string) (*Frame, bool) {
	field, value, ok := strings.Cut(line, ":")
	if !ok || field == "" {
		return nil, false
	}
	value = strings.TrimPrefix(value, " ")

	switch field {
	case "data":
		return &Frame{Data: value, Event: r.event, ID: r.id}, true
	case "event":
		r.event = value
	case "id":
		r.id = value
	}
	return nil, false
}
