package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/buger/jsonparser"
	"github.com/google/uuid"

	"github.com/papercomputeco/streamflow/pkg/session"
	"github.com/papercomputeco/streamflow/pkg/storage"
	"github.com/papercomputeco/streamflow/pkg/transcript"
	"github.com/papercomputeco/streamflow/proxy/worker"
)

// recording is one proxied turn being reconstructed. A nil recording is
// valid and records nothing.
type recording struct {
	session     *session.Session
	userMessage string
	path        string
	startTime   time.Time

	// replyFrom is the transcript length after the user message, so entries
	// from there on are the reply.
	replyFrom int
}

func (p *Proxy) newRecording(sessionID, path string, req session.Request, startTime time.Time) *recording {
	sess := session.New(
		session.WithID(sessionID),
		session.WithResponseNode(p.config.ResponseNode),
		session.WithDocument(req.Input.UIState),
		session.WithTranscript(req.History()),
		session.WithLogger(p.logger),
	)

	user := req.LastUserMessage()
	sess.BeginTurn(user)

	return &recording{
		session:     sess,
		userMessage: user,
		path:        path,
		startTime:   startTime,
		replyFrom:   len(sess.Transcript()),
	}
}

// fail records the turn as failed before any stream was read.
func (r *recording) fail(p *Proxy, message string, httpStatus int) {
	if r == nil {
		return
	}
	r.session.Fail(transcript.FailureMessage)
	r.enqueue(p, storage.StatusFailed, message, 0, httpStatus)
}

// finish records the turn once the stream has been consumed.
func (r *recording) finish(p *Proxy, bytes int64, httpStatus int, err error) {
	if r == nil {
		return
	}

	status := storage.StatusCompleted
	msg := ""
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = storage.StatusCancelled
		msg = err.Error()
	case err != nil:
		status = storage.StatusFailed
		msg = err.Error()
	}
	r.enqueue(p, status, msg, bytes, httpStatus)
}

func (r *recording) enqueue(p *Proxy, status storage.Status, message string, bytes int64, httpStatus int) {
	defer r.session.Close()

	entries := r.session.Transcript()
	var reply []transcript.Entry
	if r.replyFrom < len(entries) {
		reply = entries[r.replyFrom:]
	}

	turn := &storage.Turn{
		ID:          uuid.NewString(),
		SessionID:   r.session.ID(),
		UserMessage: r.userMessage,
		Reply:       reply,
		Document:    r.session.Document(),
		Status:      status,
		Error:       message,
		Bytes:       bytes,
		StartedAt:   r.startTime.UTC(),
		CompletedAt: time.Now().UTC(),
	}

	p.logger.Debug("turn reconstructed",
		"session_id", turn.SessionID,
		"status", turn.Status,
		"reply_entries", len(reply),
		"duration", turn.Duration(),
	)

	// Non-blocking enqueue for async storage
	p.workerPool.Enqueue(worker.Job{
		Turn:       turn,
		Path:       r.path,
		HTTPStatus: httpStatus,
	})
}

// upstreamErrorMessage extracts the producer's {"error": "..."} message,
// falling back to the status text.
func upstreamErrorMessage(statusCode int, body []byte) string {
	if msg, err := jsonparser.GetString(body, "error"); err == nil && msg != "" {
		return msg
	}
	return fmt.Sprintf("upstream returned %d %s", statusCode, http.StatusText(statusCode))
}
