package report

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/sociopolis/sociopolis_service/internal/model"
	"github.com/sociopolis/sociopolis_service/internal/store"
	"github.com/sociopolis/sociopolis_service/internal/telemetry"
)

type Handler struct {
	reports  store.ReportRepository
	users    store.UserRepository
	validate *validator.Validate
}

func NewHandler(reports store.ReportRepository, users store.UserRepository) *Handler {
	return &Handler{reports: reports, users: users, validate: validator.New()}
}

type submitRequest struct {
	Message    string `json:"message" validate:"required,min=1,max=5000"`
	SourcePage string `json:"sourcePage" validate:"max=200"`
}

func (h *Handler) Submit(c *fiber.Ctx) error {
	uid := mustUserID(c)

	var req submitRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	req.Message = strings.TrimSpace(req.Message)
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	// Reporter identity comes from the session user, not the request body.
	user, err := h.users.GetByID(c.Context(), uid)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	rep, err := h.reports.Create(c.Context(), &model.Report{
		UID:         uid,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Message:     req.Message,
		SourcePage:  req.SourcePage,
		WordCount:   len(strings.Fields(req.Message)),
	})
	if err != nil {
		tl := telemetry.L()
		tl.Error().Err(err).Str("user_id", uid).Msg("report_create_failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not save report"})
	}

	tl := telemetry.L()
	tl.Info().
		Str("user_id", uid).
		Str("report_id", rep.ID.Hex()).
		Str("source_page", rep.SourcePage).
		Int("word_count", rep.WordCount).
		Msg("report_submitted")
	return c.Status(fiber.StatusCreated).JSON(rep)
}

func mustUserID(c *fiber.Ctx) string {
	uid, _ := c.Locals("userID").(string)
	return uid
}
