package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv, AppPort, BaseURL string
	ClientURL                string

	MongoURI    string
	MongoDBName string
	RedisAddr   string
	RedisDB     int

	SessionCookieName string
	SessionTTL        time.Duration
	JWTSecret         string
	VerifyTokenTTL    time.Duration

	GoogleClientID, GoogleClientSecret, GoogleRedirectURL string
	OAuthAllowedDomains                                   []string
	CORSOrigins                                           []string

	LeaderboardSize     int
	RecomputeRPS        int
	RecomputeBurst      int
	RecomputeMaxRetries int
	SnapshotCacheTTL    time.Duration

	AvatarMaxW         int
	AvatarDir          string
	AllowedMaxFileSize int
	AllowedFileExt     []string
}

func Load() *Config {
	_ = godotenv.Load()

	c := &Config{
		AppEnv:              get("APP_ENV", "dev"),
		AppPort:             get("APP_PORT", "8080"),
		BaseURL:             get("APP_BASE_URL", "http://localhost:8080"),
		ClientURL:           get("CLIENT_URL", "http://localhost:5173"),
		MongoURI:            must("MONGO_URI"),
		MongoDBName:         get("MONGO_DB", "sociopolis"),
		RedisAddr:           get("REDIS_ADDR", "127.0.0.1:6379"),
		RedisDB:             atoi(get("REDIS_DB", "0")),
		SessionCookieName:   get("SESSION_COOKIE_NAME", "sociopolis_sid"),
		SessionTTL:          mustDuration(get("SESSION_TTL", "168h")),
		JWTSecret:           must("JWT_SECRET"),
		VerifyTokenTTL:      mustDuration(get("VERIFY_TOKEN_TTL", "48h")),
		GoogleClientID:      get("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:  get("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:   get("GOOGLE_REDIRECT_URL", ""),
		OAuthAllowedDomains: split(get("OAUTH_ALLOWED_DOMAINS", "")),
		CORSOrigins:         split(get("CORS_ORIGINS", "http://localhost:5173")),
		LeaderboardSize:     atoi(get("LEADERBOARD_SIZE", "10")),
		RecomputeRPS:        atoi(get("LEADERBOARD_RECOMPUTE_RPS", "2")),
		RecomputeBurst:      atoi(get("LEADERBOARD_RECOMPUTE_BURST", "1")),
		RecomputeMaxRetries: atoi(get("LEADERBOARD_RECOMPUTE_MAX_RETRIES", "3")),
		SnapshotCacheTTL:    mustDuration(get("LEADERBOARD_CACHE_TTL", "30s")),
		AvatarMaxW:          atoi(get("AVATAR_MAX_W", "256")),
		AvatarDir:           get("AVATAR_DIR", "./data/avatars"),
		AllowedMaxFileSize:  GetEnvInt("ALLOWED_MAX_FILE_SIZE", 2),
		AllowedFileExt:      GetEnvList("ALLOWED_FILE_EXT", []string{".jpg", ".jpeg", ".png"}),
	}
	return c
}

func GetEnvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return d
}

func GetEnvList(k string, d []string) []string {
	if v := os.Getenv(k); v != "" {
		return strings.Split(v, ",")
	}
	return d
}

func get(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("missing env %s", k)
	}
	return v
}
func atoi(s string) int                   { i, _ := strconv.Atoi(s); return i }
func mustDuration(s string) time.Duration { d, _ := time.ParseDuration(s); return d }
func split(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func GetEnv(k, d string) string {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	return v
}
