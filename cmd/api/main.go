package main

import (
	"context"
	"flag"
	"log"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/sociopolis/sociopolis_service/internal/auth"
	"github.com/sociopolis/sociopolis_service/internal/cache"
	"github.com/sociopolis/sociopolis_service/internal/config"
	"github.com/sociopolis/sociopolis_service/internal/db"
	"github.com/sociopolis/sociopolis_service/internal/leaderboard"
	"github.com/sociopolis/sociopolis_service/internal/lesson"
	"github.com/sociopolis/sociopolis_service/internal/middleware"
	"github.com/sociopolis/sociopolis_service/internal/report"
	"github.com/sociopolis/sociopolis_service/internal/store"
	"github.com/sociopolis/sociopolis_service/internal/telemetry"
	"github.com/sociopolis/sociopolis_service/internal/user"
	"github.com/sociopolis/sociopolis_service/internal/ws"
	"github.com/sociopolis/sociopolis_service/internal/xp"
)

func main() {
	doMigrate := flag.Bool("migrate", false, "run migrations and exit")
	flag.Parse()

	cfg := config.Load()

	tlog := telemetry.Init(telemetry.FromEnv(config.GetEnv))
	tlog.Info().Str("port", cfg.AppPort).Msg("booting sociopolis_service")

	if *doMigrate {
		db.MustMigrate(cfg.MongoURI)
		log.Println("migrations done")
		return
	}

	mdb := db.MustConnect(cfg.MongoURI, cfg.MongoDBName)
	rdb := cache.MustConnect(cfg.RedisAddr, cfg.RedisDB)

	users := store.NewUserMongoRepository(mdb)
	lessons := store.NewLessonMongoRepository(mdb)
	progress := store.NewProgressMongoRepository(mdb)
	attempts := store.NewAttemptMongoRepository(mdb)
	board := store.NewLeaderboardMongoRepository(mdb)
	reports := store.NewReportMongoRepository(mdb)

	lbSvc := leaderboard.NewService(users, board, rdb, cfg.LeaderboardSize, cfg.SnapshotCacheTTL)
	maintainer := leaderboard.NewMaintainer(lbSvc, rdb, cfg.RecomputeRPS, cfg.RecomputeBurst, cfg.RecomputeMaxRetries)
	go maintainer.Run(context.Background())
	maintainer.Enqueue() // refresh the snapshot at boot

	xpSvc := xp.NewService(users, maintainer)
	lessonSvc := lesson.NewService(lessons, progress, attempts, xpSvc)

	authReg := auth.NewRegistry(cfg, users, rdb)
	xpH := xp.NewHandler(xpSvc, users)
	lessonH := lesson.NewHandler(lessonSvc)
	lbH := leaderboard.NewHandler(lbSvc)
	userH := user.NewHandler(cfg, users, xpSvc)
	reportH := report.NewHandler(reports, users)

	app := fiber.New()

	app.Use(middleware.RequestID())
	app.Use(middleware.Recover())
	app.Use(middleware.CORS(cfg))
	app.Use(middleware.RequestLog())
	app.Use(middleware.SecureHeaders())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Static("/avatars", cfg.AvatarDir)

	app.Post("/api/v1/auth/register", middleware.RateLimiter(), authReg.Register)
	app.Post("/api/v1/auth/login", middleware.RateLimiter(), authReg.Login)
	app.Get("/api/v1/auth/verify", authReg.Verify)
	app.Get("/api/v1/auth/google/login", authReg.GoogleLogin)
	app.Get("/api/v1/auth/google/callback", authReg.GoogleCallback)

	protected := app.Group("/api/v1", middleware.AuthSession(authReg))

	protected.Post("/auth/logout", authReg.Logout)
	protected.Get("/me", authReg.Me)
	protected.Patch("/me", userH.UpdateProfile)
	protected.Post("/me/avatar", middleware.FileUploadValidator(cfg), userH.UploadAvatar)
	protected.Post("/me/xp/reset", userH.ResetXP)

	protected.Get("/xp", xpH.Mine)
	protected.Post("/xp/award", xpH.Award)

	protected.Get("/leaderboard", lbH.Board)
	protected.Get("/leaderboard/status", lbH.Status)
	protected.Get("/leaderboard/eligibility", lbH.Eligibility)

	protected.Get("/lessons", lessonH.List)
	protected.Get("/lessons/:id", lessonH.Get)
	protected.Get("/lessons/:id/progress", lessonH.Progress)
	protected.Post("/lessons/:id/attempts", lessonH.StartAttempt)
	protected.Post("/lessons/:id/attempts/:attemptID/checkins/:checkInID", lessonH.SubmitCheckIn)
	protected.Post("/lessons/:id/attempts/:attemptID/complete", lessonH.CompleteAttempt)

	protected.Post("/reports", reportH.Submit)

	app.Get("/ws", middleware.WSUpgradeMiddleware(), websocket.New(ws.HandleWS))

	log.Fatal(app.Listen(":" + cfg.AppPort))
}
