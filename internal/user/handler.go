package user

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/sociopolis/sociopolis_service/internal/config"
	"github.com/sociopolis/sociopolis_service/internal/img"
	"github.com/sociopolis/sociopolis_service/internal/store"
	"github.com/sociopolis/sociopolis_service/internal/telemetry"
	"github.com/sociopolis/sociopolis_service/internal/xp"
)

type Handler struct {
	cfg      *config.Config
	users    store.UserRepository
	xp       *xp.Service
	validate *validator.Validate
}

func NewHandler(cfg *config.Config, users store.UserRepository, xpSvc *xp.Service) *Handler {
	return &Handler{cfg: cfg, users: users, xp: xpSvc, validate: validator.New()}
}

type updateProfileRequest struct {
	DisplayName *string `json:"displayName" validate:"omitempty,min=2,max=40"`
	Age         *int    `json:"age" validate:"omitempty,gte=0,lte=120"`
}

func (h *Handler) UpdateProfile(c *fiber.Ctx) error {
	uid := mustUserID(c)

	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if req.DisplayName == nil && req.Age == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "nothing to update"})
	}

	user, err := h.users.UpdateProfile(c.Context(), uid, store.UpdateProfileParams{
		DisplayName: req.DisplayName,
		Age:         req.Age,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "update failed"})
	}
	return c.JSON(user)
}

func (h *Handler) UploadAvatar(c *fiber.Ctx) error {
	uid := mustUserID(c)
	log := telemetry.L().With().Str("user_id", uid).Logger()

	file, err := c.FormFile("avatar")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "avatar file required"})
	}

	tmpDir := filepath.Join(os.TempDir(), "sociopolis-uploads")
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "upload failed"})
	}
	tmpPath := filepath.Join(tmpDir, uuid.NewString()+filepath.Ext(file.Filename))
	if err := c.SaveFile(file, tmpPath); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "upload failed"})
	}
	defer os.Remove(tmpPath)

	res, err := img.SaveAvatarJPEG(tmpPath, h.cfg.AvatarDir, h.cfg.AvatarMaxW)
	if err != nil {
		log.Error().Err(err).Msg("avatar_process_failed")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot process image"})
	}

	url := "/avatars/" + filepath.Base(res.Path)
	if err := h.users.SetAvatar(c.Context(), uid, url); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "update failed"})
	}

	log.Info().Str("avatar", url).Int("w", res.Width).Int("h", res.Height).Msg("avatar_updated")
	return c.JSON(fiber.Map{"avatarUrl": url})
}

func (h *Handler) ResetXP(c *fiber.Ctx) error {
	uid := mustUserID(c)
	if err := h.xp.Reset(c.Context(), uid); err != nil {
		if errors.Is(err, xp.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "reset failed"})
	}
	return c.JSON(fiber.Map{"xp": 0, "level": 0})
}

func mustUserID(c *fiber.Ctx) string {
	uid, _ := c.Locals("userID").(string)
	return uid
}
