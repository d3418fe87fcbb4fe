package lesson

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sociopolis/sociopolis_service/internal/model"
	"github.com/sociopolis/sociopolis_service/internal/store"
	"github.com/sociopolis/sociopolis_service/internal/telemetry"
	"github.com/sociopolis/sociopolis_service/internal/xp"
)

var (
	ErrLessonNotFound  = errors.New("lesson not found")
	ErrAttemptNotFound = errors.New("attempt not found")
	ErrCheckInNotFound = errors.New("check-in not found")
	ErrAttemptClosed   = errors.New("attempt already completed")
	ErrNotYours        = errors.New("attempt belongs to another user")
)

type Service struct {
	lessons  store.LessonRepository
	progress store.ProgressRepository
	attempts store.AttemptRepository
	xp       *xp.Service
}

func NewService(
	lessons store.LessonRepository,
	progress store.ProgressRepository,
	attempts store.AttemptRepository,
	xpSvc *xp.Service,
) *Service {
	return &Service{lessons: lessons, progress: progress, attempts: attempts, xp: xpSvc}
}

func (s *Service) List(ctx context.Context) ([]*model.Lesson, error) {
	return s.lessons.List(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (*model.Lesson, error) {
	lesson, err := s.lessons.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrLessonNotFound
	}
	return lesson, err
}

// Progress returns the user's accumulated progress on a lesson; never having
// opened it reads as the zero value rather than an error.
func (s *Service) Progress(ctx context.Context, userID, lessonID string) (*model.Progress, error) {
	p, err := s.progress.Get(ctx, userID, lessonID)
	if errors.Is(err, store.ErrNotFound) {
		return &model.Progress{UserID: userID, LessonID: lessonID}, nil
	}
	return p, err
}

// StartAttempt opens a fresh play-through. Prior completions don't block a
// replay; they only accumulate in progress.
func (s *Service) StartAttempt(ctx context.Context, userID, lessonID string) (*model.Attempt, error) {
	if _, err := s.Get(ctx, lessonID); err != nil {
		return nil, err
	}

	attempt := &model.Attempt{
		ID:        uuid.New().String(),
		UserID:    userID,
		LessonID:  lessonID,
		Answers:   map[string]model.AttemptAnswer{},
		StartedAt: time.Now(),
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		return nil, err
	}

	if err := s.progress.Touch(ctx, userID, lessonID); err != nil {
		telemetry.L().Warn().Err(err).Str("user_id", userID).Str("lesson_id", lessonID).Msg("progress_touch_err")
	}
	return attempt, nil
}

type SubmitResult struct {
	Correct         bool `json:"correct"`
	AwardedXP       int  `json:"awardedXp"`
	NewTotalXP      int  `json:"newTotalXp,omitempty"`
	AlreadyAnswered bool `json:"alreadyAnswered,omitempty"`
}

// SubmitCheckIn grades a selected option against the lesson's answer key and,
// on a correct first submission, awards the check-in's XP. One award per
// (attempt, check-in): replays return the recorded grade and never touch XP.
func (s *Service) SubmitCheckIn(
	ctx context.Context,
	userID, lessonID, attemptID, checkInID string,
	selected int,
) (*SubmitResult, error) {
	attempt, err := s.getOwnedAttempt(ctx, userID, lessonID, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Completed() {
		return nil, ErrAttemptClosed
	}

	lesson, err := s.Get(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	ci, ok := lesson.CheckIn(checkInID)
	if !ok {
		return nil, ErrCheckInNotFound
	}

	if prev, ok := attempt.Answers[checkInID]; ok {
		return &SubmitResult{Correct: prev.Correct, AwardedXP: prev.AwardedXP, AlreadyAnswered: true}, nil
	}

	correct := selected == ci.CorrectOption
	ans := model.AttemptAnswer{
		SelectedOption: selected,
		Correct:        correct,
		AnsweredAt:     time.Now(),
	}
	if correct {
		ans.AwardedXP = ci.XPReward
	}

	recorded, err := s.attempts.RecordAnswer(ctx, attemptID, checkInID, ans)
	if err != nil {
		return nil, err
	}
	if !recorded {
		// Lost the race to a concurrent replay; report what got stored.
		stored, err := s.attempts.Get(ctx, attemptID)
		if err != nil {
			return nil, err
		}
		prev := stored.Answers[checkInID]
		return &SubmitResult{Correct: prev.Correct, AwardedXP: prev.AwardedXP, AlreadyAnswered: true}, nil
	}

	result := &SubmitResult{Correct: correct, AwardedXP: ans.AwardedXP}
	if correct {
		newTotal, err := s.xp.Award(ctx, userID, ci.XPReward)
		if err != nil {
			telemetry.L().Error().Err(err).
				Str("user_id", userID).
				Str("check_in", checkInID).
				Msg("checkin_award_failed")
			return nil, err
		}
		result.NewTotalXP = newTotal
	}
	return result, nil
}

// CompleteAttempt closes the attempt and folds its score into the user's
// lesson progress.
func (s *Service) CompleteAttempt(
	ctx context.Context,
	userID, lessonID, attemptID string,
	timeSpentMin int,
) (*model.Progress, error) {
	attempt, err := s.getOwnedAttempt(ctx, userID, lessonID, attemptID)
	if err != nil {
		return nil, err
	}

	closed, err := s.attempts.Complete(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if !closed {
		return nil, ErrAttemptClosed
	}

	if timeSpentMin < 0 {
		timeSpentMin = 0
	}
	p, err := s.progress.ApplyCompletion(ctx, userID, lessonID, attempt.Score(), timeSpentMin)
	if err != nil {
		return nil, err
	}

	telemetry.L().Info().
		Str("user_id", userID).
		Str("lesson_id", lessonID).
		Int("score", attempt.Score()).
		Msg("lesson_completed")
	return p, nil
}

func (s *Service) getOwnedAttempt(ctx context.Context, userID, lessonID, attemptID string) (*model.Attempt, error) {
	attempt, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, ErrNotYours
	}
	if attempt.LessonID != lessonID {
		return nil, ErrAttemptNotFound
	}
	return attempt, nil
}
