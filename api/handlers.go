package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/streamflow/pkg/client"
	"github.com/papercomputeco/streamflow/pkg/storage"
	"github.com/papercomputeco/streamflow/pkg/transcript"
)

// SessionListResponse lists recorded sessions, most recently active first.
type SessionListResponse struct {
	Count    int                      `json:"count"`
	Sessions []storage.SessionSummary `json:"sessions"`
}

// SessionHistoryResponse contains every recorded turn of a session and the
// transcript they add up to.
type SessionHistoryResponse struct {
	SessionID  string             `json:"session_id"`
	Turns      []*storage.Turn    `json:"turns"`
	Transcript []transcript.Entry `json:"transcript"`
	// Depth is the number of turns in the session
	Depth int `json:"depth"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleListSessions returns a summary of every recorded session.
func (s *Server) handleListSessions(c *fiber.Ctx) error {
	sessions, err := s.driver.Sessions(c.Context())
	if err != nil {
		s.logger.Error("failed to list sessions", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(client.ErrorResponse{Error: "failed to list sessions"})
	}
	if sessions == nil {
		sessions = []storage.SessionSummary{}
	}

	return c.JSON(SessionListResponse{
		Count:    len(sessions),
		Sessions: sessions,
	})
}

// handleGetSession returns the full history of a session.
func (s *Server) handleGetSession(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(client.ErrorResponse{Error: "id parameter required"})
	}

	history, err := s.buildHistory(c.Context(), id)
	if err != nil {
		return s.lookupError(c, err, "session")
	}

	return c.JSON(history)
}

// handleGetLatest returns the most recent turn of a session, whose document
// is the session's current state.
func (s *Server) handleGetLatest(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(client.ErrorResponse{Error: "id parameter required"})
	}

	turn, err := s.driver.Latest(c.Context(), id)
	if err != nil {
		return s.lookupError(c, err, "session")
	}

	return c.JSON(turn)
}

// handleGetTurn returns a single turn by its ID.
func (s *Server) handleGetTurn(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(client.ErrorResponse{Error: "id parameter required"})
	}

	turn, err := s.driver.Get(c.Context(), id)
	if err != nil {
		return s.lookupError(c, err, "turn")
	}

	return c.JSON(turn)
}

func (s *Server) lookupError(c *fiber.Ctx, err error, what string) error {
	var nf storage.NotFoundError
	if errors.As(err, &nf) {
		return c.Status(fiber.StatusNotFound).JSON(client.ErrorResponse{Error: what + " not found"})
	}

	s.logger.Error("lookup failed", "kind", what, "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(client.ErrorResponse{Error: "failed to load " + what})
}

// buildHistory constructs a SessionHistoryResponse for the given session.
// The transcript interleaves each turn's user message with its reply.
func (s *Server) buildHistory(ctx context.Context, sessionID string) (*SessionHistoryResponse, error) {
	turns, err := s.driver.ListTurns(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(turns) == 0 {
		return nil, storage.NotFoundError{ID: sessionID}
	}

	entries := []transcript.Entry{}
	for _, turn := range turns {
		if turn.UserMessage != "" {
			entries = append(entries, transcript.Entry{Role: transcript.RoleUser, Content: turn.UserMessage})
		}
		entries = append(entries, turn.Reply...)
	}

	return &SessionHistoryResponse{
		SessionID:  sessionID,
		Turns:      turns,
		Transcript: entries,
		Depth:      len(turns),
	}, nil
}
