package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/algoqa/pkg/storage"
	"github.com/papercomputeco/algoqa/pkg/transcript"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ListResponse wraps a page of transcripts.
type ListResponse struct {
	Transcripts []*transcript.Transcript `json:"transcripts"`
	Count       int                      `json:"count"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleListTranscripts returns recorded transcripts, newest first.
// Query parameters: limit (default storage.DefaultListLimit) and status.
func (s *Server) handleListTranscripts(c *fiber.Ctx) error {
	opts := storage.ListOptions{}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "limit must be a non-negative integer"})
		}
		opts.Limit = limit
	}

	switch status := transcript.Status(c.Query("status")); status {
	case "":
	case transcript.StatusStreaming, transcript.StatusCompleted, transcript.StatusFailed:
		opts.Status = status
	default:
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "unknown status: " + string(status)})
	}

	transcripts, err := s.driver.List(c.Context(), opts)
	if err != nil {
		s.logger.Error("failed to list transcripts", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list transcripts"})
	}
	if transcripts == nil {
		transcripts = []*transcript.Transcript{}
	}

	return c.JSON(ListResponse{Transcripts: transcripts, Count: len(transcripts)})
}

// handleGetTranscript returns a single transcript by ID.
func (s *Server) handleGetTranscript(c *fiber.Ctx) error {
	id := c.Params("id")

	t, err := s.driver.Get(c.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "transcript not found"})
		}
		s.logger.Error("failed to get transcript", "id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to get transcript"})
	}

	return c.JSON(t)
}
