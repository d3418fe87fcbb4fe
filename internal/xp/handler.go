package xp

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/sociopolis/sociopolis_service/internal/store"
)

type Handler struct {
	svc      *Service
	users    store.UserRepository
	validate *validator.Validate
}

func NewHandler(svc *Service, users store.UserRepository) *Handler {
	return &Handler{svc: svc, users: users, validate: validator.New()}
}

type awardRequest struct {
	UserID string `json:"userId" validate:"required"`
	Amount int    `json:"amount" validate:"required,gt=0"`
}

// Award grants XP to an arbitrary user. Admin only; regular users earn XP
// through check-ins.
func (h *Handler) Award(c *fiber.Ctx) error {
	requester, err := h.users.GetByID(c.Context(), mustUserID(c))
	if err != nil || !requester.Admin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "admin only"})
	}

	var req awardRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	newXP, err := h.svc.Award(c.Context(), req.UserID, req.Amount)
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "award failed"})
	}

	return c.JSON(fiber.Map{"userId": req.UserID, "xp": newXP})
}

// Mine returns the caller's own XP and level.
func (h *Handler) Mine(c *fiber.Ctx) error {
	xp := h.svc.UserXP(c.Context(), mustUserID(c))
	return c.JSON(fiber.Map{"xp": xp, "level": LevelFor(xp)})
}

func mustUserID(c *fiber.Ctx) string {
	uid, ok := c.Locals("userID").(string)
	if !ok {
		return ""
	}
	return uid
}
