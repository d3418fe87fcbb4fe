package xp

import (
	"context"
	"errors"

	"github.com/sociopolis/sociopolis_service/internal/store"
	"github.com/sociopolis/sociopolis_service/internal/telemetry"
	"github.com/sociopolis/sociopolis_service/internal/ws"
)

var (
	ErrInvalidAmount = errors.New("xp amount must be positive")
	ErrUserNotFound  = errors.New("user not found")
)

// Recomputer accepts leaderboard recompute requests; the award path never
// waits on one.
type Recomputer interface {
	Enqueue()
}

// LevelDivisor is how much XP one level takes.
const LevelDivisor = 100

func LevelFor(xp int) int { return xp / LevelDivisor }

type Service struct {
	users store.UserRepository
	board Recomputer
}

func NewService(users store.UserRepository, board Recomputer) *Service {
	return &Service{users: users, board: board}
}

// Award adds amount to the user's XP in one atomic store increment and returns
// the new total. The leaderboard recompute is queued as a dependent step;
// its failure never rolls back the committed award.
func (s *Service) Award(ctx context.Context, userID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	user, err := s.users.IncrementXP(ctx, userID, amount)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, ErrUserNotFound
		}
		tl := telemetry.L()
		tl.Error().Err(err).Str("user_id", userID).Msg("xp_award_failed")
		return 0, err
	}

	tl := telemetry.L()
	tl.Info().
		Str("user_id", userID).
		Int("amount", amount).
		Int("xp", user.XP).
		Int("level", user.Level).
		Msg("xp_awarded")

	s.board.Enqueue()
	ws.BroadcastUserXP(userID, user.XP, user.Level)
	return user.XP, nil
}

// Reset is the one permitted XP decrease: back to zero.
func (s *Service) Reset(ctx context.Context, userID string) error {
	user, err := s.users.ResetXP(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	telemetry.L().Info().Str("user_id", userID).Msg("xp_reset")
	s.board.Enqueue()
	ws.BroadcastUserXP(userID, user.XP, user.Level)
	return nil
}

// UserXP reads the stored XP; a missing user reads as zero so callers can
// treat "never played" and "zero XP" alike.
func (s *Service) UserXP(ctx context.Context, userID string) int {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return 0
	}
	return user.XP
}
