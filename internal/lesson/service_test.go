package lesson

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/sociopolis/sociopolis_service/internal/model"
	"github.com/sociopolis/sociopolis_service/internal/store"
	"github.com/sociopolis/sociopolis_service/internal/xp"
)

type fakeLessons struct {
	lessons map[string]*model.Lesson
}

func (f *fakeLessons) Get(_ context.Context, id string) (*model.Lesson, error) {
	l, ok := f.lessons[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return l, nil
}

func (f *fakeLessons) List(_ context.Context) ([]*model.Lesson, error) {
	out := make([]*model.Lesson, 0, len(f.lessons))
	for _, l := range f.lessons {
		out = append(out, l)
	}
	return out, nil
}

type fakeProgress struct {
	mu   sync.Mutex
	docs map[string]*model.Progress
}

func newFakeProgress() *fakeProgress {
	return &fakeProgress{docs: make(map[string]*model.Progress)}
}

func (f *fakeProgress) Get(_ context.Context, userID, lessonID string) (*model.Progress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.docs[model.ProgressID(userID, lessonID)]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProgress) Touch(_ context.Context, userID, lessonID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := model.ProgressID(userID, lessonID)
	p, ok := f.docs[id]
	if !ok {
		p = &model.Progress{ID: id, UserID: userID, LessonID: lessonID}
		f.docs[id] = p
	}
	p.LastAccessedAt = time.Now()
	return nil
}

func (f *fakeProgress) ApplyCompletion(
	_ context.Context,
	userID, lessonID string,
	score, timeSpentMin int,
) (*model.Progress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := model.ProgressID(userID, lessonID)
	p, ok := f.docs[id]
	if !ok {
		p = &model.Progress{ID: id, UserID: userID, LessonID: lessonID}
		f.docs[id] = p
	}
	p.Completed = true
	p.CompletionDate = time.Now()
	p.CompletionCount++
	p.TimeSpentMin += timeSpentMin
	if score > p.BestScore {
		p.BestScore = score
	}
	cp := *p
	return &cp, nil
}

type fakeAttempts struct {
	mu   sync.Mutex
	docs map[string]*model.Attempt
}

func newFakeAttempts() *fakeAttempts {
	return &fakeAttempts{docs: make(map[string]*model.Attempt)}
}

func (f *fakeAttempts) Create(_ context.Context, attempt *model.Attempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[attempt.ID]; ok {
		return store.ErrDuplicate
	}
	cp := *attempt
	cp.Answers = map[string]model.AttemptAnswer{}
	for k, v := range attempt.Answers {
		cp.Answers[k] = v
	}
	f.docs[attempt.ID] = &cp
	return nil
}

func (f *fakeAttempts) Get(_ context.Context, id string) (*model.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.docs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	cp.Answers = map[string]model.AttemptAnswer{}
	for k, v := range a.Answers {
		cp.Answers[k] = v
	}
	return &cp, nil
}

func (f *fakeAttempts) RecordAnswer(
	_ context.Context,
	attemptID, checkInID string,
	ans model.AttemptAnswer,
) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.docs[attemptID]
	if !ok || a.Completed() {
		return false, nil
	}
	if _, ok := a.Answers[checkInID]; ok {
		return false, nil
	}
	a.Answers[checkInID] = ans
	return true, nil
}

func (f *fakeAttempts) Complete(_ context.Context, attemptID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.docs[attemptID]
	if !ok || a.Completed() {
		return false, nil
	}
	a.CompletedAt = time.Now()
	return true, nil
}

type fakeUsers struct {
	store.UserRepository

	mu    sync.Mutex
	users map[string]*model.User
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) IncrementXP(_ context.Context, id string, delta int) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	u.XP += delta
	u.Level = u.XP / xp.LevelDivisor
	cp := *u
	return &cp, nil
}

type noopBoard struct{}

func (noopBoard) Enqueue() {}

func testLesson() *model.Lesson {
	return &model.Lesson{
		ID:    "unit-1-why-people-do-what-they-do",
		Title: "Why People Do What They Do",
		CheckIns: []model.CheckIn{
			{ID: "ci-1", Prompt: "q1", Options: []string{"a", "b", "c"}, CorrectOption: 1, XPReward: 10},
			{ID: "ci-2", Prompt: "q2", Options: []string{"a", "b"}, CorrectOption: 0, XPReward: 10},
		},
	}
}

func fixture(t *testing.T) (*Service, *model.User, *fakeProgress) {
	t.Helper()
	u := &model.User{ID: bson.NewObjectID()}
	users := &fakeUsers{users: map[string]*model.User{u.ID.Hex(): u}}
	progress := newFakeProgress()
	lessons := &fakeLessons{lessons: map[string]*model.Lesson{testLesson().ID: testLesson()}}
	svc := NewService(lessons, progress, newFakeAttempts(), xp.NewService(users, noopBoard{}))
	return svc, u, progress
}

func TestStartAttemptUnknownLesson(t *testing.T) {
	svc, u, _ := fixture(t)
	if _, err := svc.StartAttempt(context.Background(), u.ID.Hex(), "nope"); !errors.Is(err, ErrLessonNotFound) {
		t.Fatalf("err = %v, want ErrLessonNotFound", err)
	}
}

func TestSubmitCheckInGrades(t *testing.T) {
	svc, u, _ := fixture(t)
	uid := u.ID.Hex()
	lessonID := testLesson().ID

	attempt, err := svc.StartAttempt(context.Background(), uid, lessonID)
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}

	res, err := svc.SubmitCheckIn(context.Background(), uid, lessonID, attempt.ID, "ci-1", 1)
	if err != nil {
		t.Fatalf("SubmitCheckIn: %v", err)
	}
	if !res.Correct || res.AwardedXP != 10 || res.NewTotalXP != 10 {
		t.Fatalf("result = %+v, want correct with 10 xp", res)
	}

	res2, err := svc.SubmitCheckIn(context.Background(), uid, lessonID, attempt.ID, "ci-2", 1)
	if err != nil {
		t.Fatalf("SubmitCheckIn: %v", err)
	}
	if res2.Correct || res2.AwardedXP != 0 {
		t.Fatalf("result = %+v, want incorrect with no award", res2)
	}
}

// Replaying a check-in returns the recorded grade and never awards twice.
func TestSubmitCheckInIdempotent(t *testing.T) {
	svc, u, _ := fixture(t)
	uid := u.ID.Hex()
	lessonID := testLesson().ID

	attempt, _ := svc.StartAttempt(context.Background(), uid, lessonID)
	if _, err := svc.SubmitCheckIn(context.Background(), uid, lessonID, attempt.ID, "ci-1", 1); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	for i := 0; i < 3; i++ {
		res, err := svc.SubmitCheckIn(context.Background(), uid, lessonID, attempt.ID, "ci-1", 0)
		if err != nil {
			t.Fatalf("replay: %v", err)
		}
		if !res.AlreadyAnswered {
			t.Fatalf("replay not flagged as already answered")
		}
		if !res.Correct || res.AwardedXP != 10 {
			t.Fatalf("replay = %+v, want the originally recorded grade", res)
		}
	}

	if got := svc.xp.UserXP(context.Background(), uid); got != 10 {
		t.Fatalf("xp total = %d, want a single award of 10", got)
	}
}

func TestSubmitCheckInWrongOwner(t *testing.T) {
	svc, u, _ := fixture(t)
	lessonID := testLesson().ID
	attempt, _ := svc.StartAttempt(context.Background(), u.ID.Hex(), lessonID)

	_, err := svc.SubmitCheckIn(context.Background(), bson.NewObjectID().Hex(), lessonID, attempt.ID, "ci-1", 1)
	if !errors.Is(err, ErrNotYours) {
		t.Fatalf("err = %v, want ErrNotYours", err)
	}
}

func TestSubmitCheckInUnknownCheckIn(t *testing.T) {
	svc, u, _ := fixture(t)
	uid := u.ID.Hex()
	lessonID := testLesson().ID
	attempt, _ := svc.StartAttempt(context.Background(), uid, lessonID)

	if _, err := svc.SubmitCheckIn(context.Background(), uid, lessonID, attempt.ID, "nope", 0); !errors.Is(err, ErrCheckInNotFound) {
		t.Fatalf("err = %v, want ErrCheckInNotFound", err)
	}
}

func TestSubmitCheckInAfterCompletion(t *testing.T) {
	svc, u, _ := fixture(t)
	uid := u.ID.Hex()
	lessonID := testLesson().ID
	attempt, _ := svc.StartAttempt(context.Background(), uid, lessonID)

	if _, err := svc.CompleteAttempt(context.Background(), uid, lessonID, attempt.ID, 5); err != nil {
		t.Fatalf("CompleteAttempt: %v", err)
	}
	if _, err := svc.SubmitCheckIn(context.Background(), uid, lessonID, attempt.ID, "ci-1", 1); !errors.Is(err, ErrAttemptClosed) {
		t.Fatalf("err = %v, want ErrAttemptClosed", err)
	}
}

func TestCompleteAttemptMergesProgress(t *testing.T) {
	svc, u, progress := fixture(t)
	uid := u.ID.Hex()
	lessonID := testLesson().ID

	// first run: one correct answer, 12 minutes
	a1, _ := svc.StartAttempt(context.Background(), uid, lessonID)
	svc.SubmitCheckIn(context.Background(), uid, lessonID, a1.ID, "ci-1", 1)
	p1, err := svc.CompleteAttempt(context.Background(), uid, lessonID, a1.ID, 12)
	if err != nil {
		t.Fatalf("CompleteAttempt: %v", err)
	}
	if !p1.Completed || p1.BestScore != 10 || p1.CompletionCount != 1 || p1.TimeSpentMin != 12 {
		t.Fatalf("progress after first run = %+v", p1)
	}

	// replay with a worse score: bestScore holds, counters accumulate
	a2, _ := svc.StartAttempt(context.Background(), uid, lessonID)
	p2, err := svc.CompleteAttempt(context.Background(), uid, lessonID, a2.ID, 3)
	if err != nil {
		t.Fatalf("CompleteAttempt: %v", err)
	}
	if p2.BestScore != 10 || p2.CompletionCount != 2 || p2.TimeSpentMin != 15 {
		t.Fatalf("progress after replay = %+v", p2)
	}

	// a better replay raises bestScore
	a3, _ := svc.StartAttempt(context.Background(), uid, lessonID)
	svc.SubmitCheckIn(context.Background(), uid, lessonID, a3.ID, "ci-1", 1)
	svc.SubmitCheckIn(context.Background(), uid, lessonID, a3.ID, "ci-2", 0)
	p3, _ := svc.CompleteAttempt(context.Background(), uid, lessonID, a3.ID, 0)
	if p3.BestScore != 20 || p3.CompletionCount != 3 {
		t.Fatalf("progress after better replay = %+v", p3)
	}

	stored, err := progress.Get(context.Background(), uid, lessonID)
	if err != nil {
		t.Fatalf("stored progress: %v", err)
	}
	if stored.BestScore != 20 {
		t.Fatalf("stored bestScore = %d, want 20", stored.BestScore)
	}
}

func TestCompleteAttemptTwice(t *testing.T) {
	svc, u, _ := fixture(t)
	uid := u.ID.Hex()
	lessonID := testLesson().ID
	attempt, _ := svc.StartAttempt(context.Background(), uid, lessonID)

	if _, err := svc.CompleteAttempt(context.Background(), uid, lessonID, attempt.ID, 1); err != nil {
		t.Fatalf("first complete: %v", err)
	}
	if _, err := svc.CompleteAttempt(context.Background(), uid, lessonID, attempt.ID, 1); !errors.Is(err, ErrAttemptClosed) {
		t.Fatalf("err = %v, want ErrAttemptClosed", err)
	}
}

func TestProgressZeroValueWhenNeverOpened(t *testing.T) {
	svc, u, _ := fixture(t)
	p, err := svc.Progress(context.Background(), u.ID.Hex(), testLesson().ID)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if p.Completed || p.BestScore != 0 || p.CompletionCount != 0 {
		t.Fatalf("progress = %+v, want zeros", p)
	}
}
