package leaderboard

import (
	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Board returns the hydrated top-N rows.
func (h *Handler) Board(c *fiber.Ctx) error {
	entries, updatedAt, err := h.svc.Entries(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "leaderboard unavailable"})
	}
	return c.JSON(fiber.Map{"entries": entries, "updatedAt": updatedAt})
}

// Status reports the caller's rank or the XP gap to the last qualifying spot.
func (h *Handler) Status(c *fiber.Ctx) error {
	st, err := h.svc.Status(c.Context(), mustUserID(c))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "leaderboard unavailable"})
	}
	return c.JSON(st)
}

// Eligibility answers "would this score make the board", used by the client
// before celebrating a placement.
func (h *Handler) Eligibility(c *fiber.Ctx) error {
	el, err := h.svc.Eligibility(c.Context(), mustUserID(c), c.QueryInt("xp"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "leaderboard unavailable"})
	}
	return c.JSON(el)
}

func mustUserID(c *fiber.Ctx) string {
	uid, ok := c.Locals("userID").(string)
	if !ok {
		return ""
	}
	return uid
}
