package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/sociopolis/sociopolis_service/internal/model"
	"github.com/sociopolis/sociopolis_service/internal/store"
	"github.com/sociopolis/sociopolis_service/internal/telemetry"
	"github.com/sociopolis/sociopolis_service/internal/ws"
)

const snapshotCacheKey = "leaderboard:snapshot"

// Service owns the derived top-N snapshot: recomputing it from the
// authoritative per-user XP, mirroring it into Redis for cheap reads, and
// answering rank/gap queries against the persisted copy.
type Service struct {
	users    store.UserRepository
	board    store.LeaderboardRepository
	rdb      *redis.Client
	size     int
	cacheTTL time.Duration
}

func NewService(
	users store.UserRepository,
	board store.LeaderboardRepository,
	rdb *redis.Client,
	size int,
	cacheTTL time.Duration,
) *Service {
	if size <= 0 {
		size = 10
	}
	return &Service{users: users, board: board, rdb: rdb, size: size, cacheTTL: cacheTTL}
}

// Recompute queries the top-N users by XP descending (ties: earliest to reach
// the score first) and replaces the persisted snapshot wholesale.
func (s *Service) Recompute(ctx context.Context) error {
	top, err := s.users.TopByXP(ctx, s.size)
	if err != nil {
		return fmt.Errorf("query top users: %w", err)
	}

	ids := make([]string, 0, len(top))
	for _, u := range top {
		ids = append(ids, u.ID.Hex())
	}

	snap := &model.Snapshot{TopUserIDs: ids, UpdatedAt: time.Now()}
	if err := s.board.Replace(ctx, snap); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}

	s.mirror(ctx, snap)
	ws.BroadcastLeaderboard(snap.TopUserIDs, snap.UpdatedAt)

	telemetry.L().Info().Int("members", len(ids)).Msg("leaderboard_recomputed")
	return nil
}

func (s *Service) mirror(ctx context.Context, snap *model.Snapshot) {
	if s.rdb == nil {
		return
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, snapshotCacheKey, b, s.cacheTTL).Err(); err != nil {
		telemetry.L().Warn().Err(err).Msg("leaderboard_cache_set_err")
	}
}

// snapshot reads the Redis mirror when fresh, falling back to the store. A
// snapshot that was never computed reads as empty.
func (s *Service) snapshot(ctx context.Context) (*model.Snapshot, error) {
	if s.rdb != nil {
		if raw, err := s.rdb.Get(ctx, snapshotCacheKey).Bytes(); err == nil {
			var snap model.Snapshot
			if err := json.Unmarshal(raw, &snap); err == nil {
				return &snap, nil
			}
		}
	}

	snap, err := s.board.Get(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &model.Snapshot{}, nil
		}
		return nil, err
	}
	s.mirror(ctx, snap)
	return snap, nil
}

// Status reports the user's standing against the persisted snapshot: 1-based
// rank when present; for absentees against a full board, the XP needed to tie
// the current last place plus one.
func (s *Service) Status(ctx context.Context, userID string) (*model.Status, error) {
	userXP := 0
	if u, err := s.users.GetByID(ctx, userID); err == nil {
		userXP = u.XP
	}

	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	for i, id := range snap.TopUserIDs {
		if id == userID {
			return &model.Status{OnLeaderboard: true, Rank: i + 1, XP: userXP}, nil
		}
	}

	st := &model.Status{OnLeaderboard: false, XP: userXP}
	if len(snap.TopUserIDs) == s.size {
		lastID := snap.TopUserIDs[len(snap.TopUserIDs)-1]
		lastXP := 0
		if u, err := s.users.GetByID(ctx, lastID); err == nil {
			lastXP = u.XP
		}
		if gap := lastXP - userXP + 1; gap > 0 {
			st.XPToNextRank = gap
		}
	}
	return st, nil
}

// Entries hydrates the snapshot into display rows, preserving snapshot order.
// Users deleted since the last recompute render as placeholders.
func (s *Service) Entries(ctx context.Context) ([]model.Entry, time.Time, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}

	entries := make([]model.Entry, len(snap.TopUserIDs))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range snap.TopUserIDs {
		g.Go(func() error {
			entry := model.Entry{UserID: id, DisplayName: "Unknown", Rank: i + 1}
			if u, err := s.users.GetByID(gctx, id); err == nil {
				entry.DisplayName = u.DisplayName
				entry.XP = u.XP
				entry.Level = u.Level
				entry.AvatarURL = u.AvatarURL
			}
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, time.Time{}, err
	}
	return entries, snap.UpdatedAt, nil
}

// Eligibility is the award-time check: does newXP put the user on the board,
// and if not, how far off are they.
func (s *Service) Eligibility(ctx context.Context, userID string, newXP int) (*model.Eligibility, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	if len(snap.TopUserIDs) == 0 {
		return &model.Eligibility{
			Eligible: true,
			Rank:     1,
			Message:  "congratulations! you're now on the leaderboard!",
		}, nil
	}

	if len(snap.TopUserIDs) < s.size {
		return &model.Eligibility{
			Eligible: true,
			Rank:     len(snap.TopUserIDs) + 1,
			Message:  "you've made it onto the leaderboard!",
		}, nil
	}

	lastID := snap.TopUserIDs[len(snap.TopUserIDs)-1]
	last, err := s.users.GetByID(ctx, lastID)
	if err != nil {
		return &model.Eligibility{Eligible: false, Message: "unable to check leaderboard status"}, nil
	}

	switch {
	case newXP > last.XP:
		return &model.Eligibility{
			Eligible: true,
			Rank:     s.size,
			Message:  fmt.Sprintf("congratulations! you've surpassed %s and are now on the leaderboard with %d XP!", last.DisplayName, newXP),
		}, nil
	case newXP == last.XP:
		return &model.Eligibility{
			Eligible: false,
			Message:  fmt.Sprintf("you're tied with %s at %d XP. keep earning to move up!", last.DisplayName, newXP),
		}, nil
	default:
		return &model.Eligibility{
			Eligible: false,
			Message:  fmt.Sprintf("you need %d more XP to beat %s and join the leaderboard!", last.XP-newXP+1, last.DisplayName),
		}, nil
	}
}
