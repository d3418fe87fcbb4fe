package lesson

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type lessonSummary struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	Difficulty        string   `json:"difficulty"`
	EstimatedDuration int      `json:"estimatedDuration"`
	ImageURL          string   `json:"imageUrl,omitempty"`
	Tags              []string `json:"tags"`
}

func (h *Handler) List(c *fiber.Ctx) error {
	lessons, err := h.svc.List(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "lessons unavailable"})
	}

	out := make([]lessonSummary, 0, len(lessons))
	for _, l := range lessons {
		out = append(out, lessonSummary{
			ID:                l.ID,
			Title:             l.Title,
			Description:       l.Description,
			Difficulty:        l.Difficulty,
			EstimatedDuration: l.EstimatedDuration,
			ImageURL:          l.ImageURL,
			Tags:              l.Tags,
		})
	}
	return c.JSON(out)
}

// Get returns the full lesson. The answer key never serializes; grading is
// server-side only.
func (h *Handler) Get(c *fiber.Ctx) error {
	lesson, err := h.svc.Get(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(lesson)
}

func (h *Handler) Progress(c *fiber.Ctx) error {
	p, err := h.svc.Progress(c.Context(), mustUserID(c), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(p)
}

func (h *Handler) StartAttempt(c *fiber.Ctx) error {
	attempt, err := h.svc.StartAttempt(c.Context(), mustUserID(c), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(attempt)
}

type submitRequest struct {
	SelectedOption int `json:"selectedOption"`
}

func (h *Handler) SubmitCheckIn(c *fiber.Ctx) error {
	var req submitRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if req.SelectedOption < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "selectedOption must be non-negative"})
	}

	result, err := h.svc.SubmitCheckIn(c.Context(),
		mustUserID(c), c.Params("id"), c.Params("attemptID"), c.Params("checkInID"),
		req.SelectedOption)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(result)
}

type completeRequest struct {
	TimeSpentMin int `json:"timeSpentMin"`
}

func (h *Handler) CompleteAttempt(c *fiber.Ctx) error {
	var req completeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	p, err := h.svc.CompleteAttempt(c.Context(),
		mustUserID(c), c.Params("id"), c.Params("attemptID"), req.TimeSpentMin)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(p)
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrLessonNotFound),
		errors.Is(err, ErrAttemptNotFound),
		errors.Is(err, ErrCheckInNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrNotYours):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrAttemptClosed):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "request failed"})
	}
}

func mustUserID(c *fiber.Ctx) string {
	uid, ok := c.Locals("userID").(string)
	if !ok {
		return ""
	}
	return uid
}
