package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/sociopolis/sociopolis_service/internal/config"
	"github.com/sociopolis/sociopolis_service/internal/middleware"
	"github.com/sociopolis/sociopolis_service/internal/model"
	"github.com/sociopolis/sociopolis_service/internal/store"
	"github.com/sociopolis/sociopolis_service/internal/telemetry"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type Registry struct {
	cfg      *config.Config
	users    store.UserRepository
	rdb      *redis.Client
	oauth    *oauth2.Config
	validate *validator.Validate
}

func (r *Registry) Rdb() *redis.Client { return r.rdb }

func (r *Registry) CookieName() string { return r.cfg.SessionCookieName }

func NewRegistry(cfg *config.Config, users store.UserRepository, rdb *redis.Client) *Registry {
	return &Registry{
		cfg: cfg, users: users, rdb: rdb,
		validate: validator.New(),
		oauth: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
	}
}

type registerRequest struct {
	DisplayName   string `json:"displayName" validate:"required,min=2,max=40"`
	Email         string `json:"email" validate:"required,email"`
	Password      string `json:"password" validate:"required,min=8"`
	Age           int    `json:"age" validate:"gte=0,lte=120"`
	TermsAccepted bool   `json:"termsAccepted" validate:"eq=true"`
}

func (r *Registry) Register(c *fiber.Ctx) error {
	rid, _ := c.Locals(middleware.ReqIDKey).(string)
	log := telemetry.L().With().Str("req_id", rid).Logger()

	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if err := r.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "registration failed"})
	}

	user, err := r.users.Create(c.Context(), &model.User{
		DisplayName:   req.DisplayName,
		Email:         req.Email,
		PasswordHash:  hash,
		Provider:      "email",
		Age:           req.Age,
		TermsAccepted: true,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": ErrEmailTaken.Error()})
		}
		log.Error().Err(err).Msg("register_create_failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "registration failed"})
	}

	// Mail delivery is out of scope; the token surfaces in the log so the
	// verify link can be exercised end to end.
	if token, err := issueVerifyToken(user.ID.Hex(), r.cfg.JWTSecret, r.cfg.VerifyTokenTTL); err == nil {
		log.Info().
			Str("user_id", user.ID.Hex()).
			Str("verify_url", r.cfg.BaseURL+"/api/v1/auth/verify?token="+token).
			Msg("user_registered")
	}

	r.startSession(c, user.ID.Hex())
	return c.Status(fiber.StatusCreated).JSON(user)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r *Registry) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if err := r.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	user, err := r.users.GetByEmail(c.Context(), req.Email)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": ErrInvalidCredentials.Error()})
	}
	if ok, err := VerifyPassword(req.Password, user.PasswordHash); err != nil || !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": ErrInvalidCredentials.Error()})
	}

	if err := r.users.SetLastLogin(c.Context(), user.ID.Hex()); err != nil {
		tl := telemetry.L()
		tl.Warn().Err(err).Str("user_id", user.ID.Hex()).Msg("last_login_update_err")
	}

	r.startSession(c, user.ID.Hex())
	return c.JSON(user)
}

func (r *Registry) Verify(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "token required"})
	}

	userID, err := parseVerifyToken(token, r.cfg.JWTSecret)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid or expired token"})
	}
	if err := r.users.SetEmailVerified(c.Context(), userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "verification failed"})
	}

	tl := telemetry.L()
	tl.Info().Str("user_id", userID).Msg("email_verified")
	return c.JSON(fiber.Map{"verified": true})
}

func (r *Registry) Logout(c *fiber.Ctx) error {
	sid := c.Cookies(r.cfg.SessionCookieName)
	if sid != "" {
		r.rdb.Del(c.Context(), "sess:"+sid)
		c.ClearCookie(r.cfg.SessionCookieName)
	}
	return c.SendString("ok")
}

func (r *Registry) Me(c *fiber.Ctx) error {
	uid, _ := c.Locals("userID").(string)
	user, err := r.users.GetByID(c.Context(), uid)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	return c.JSON(user)
}

func (r *Registry) startSession(c *fiber.Ctx, userID string) {
	sid := randomHex(16)
	r.rdb.Set(context.Background(), "sess:"+sid, userID, r.cfg.SessionTTL)
	c.Cookie(&fiber.Cookie{
		Name:     r.cfg.SessionCookieName,
		Value:    sid,
		HTTPOnly: true,
		SameSite: "Lax",
		Secure:   r.cfg.AppEnv != "dev",
		MaxAge:   int(r.cfg.SessionTTL.Seconds()),
	})
}

func randomHex(n int) string { b := make([]byte, n); rand.Read(b); return hex.EncodeToString(b) }
