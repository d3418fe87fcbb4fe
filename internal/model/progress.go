package model

import "time"

// ProgressID is the composite document id of a user's progress on one lesson.
func ProgressID(userID, lessonID string) string { return userID + "_" + lessonID }

// Progress accumulates across attempts and is merge-written on every
// completion.
type Progress struct {
	ID              string    `bson:"_id" json:"-"`
	UserID          string    `bson:"userId" json:"userId"`
	LessonID        string    `bson:"lessonId" json:"lessonId"`
	Completed       bool      `bson:"completed" json:"completed"`
	BestScore       int       `bson:"bestScore" json:"bestScore"`
	CompletionCount int       `bson:"completionCount" json:"completionCount"`
	TimeSpentMin    int       `bson:"timeSpentMin" json:"timeSpentMin"`
	CompletionDate  time.Time `bson:"completionDate,omitempty" json:"completionDate,omitempty"`
	LastAccessedAt  time.Time `bson:"lastAccessedAt" json:"lastAccessedAt"`
	UpdatedAt       time.Time `bson:"updatedAt" json:"-"`
}

// Attempt is a single play-through of a lesson. Answers are keyed by check-in
// id; a key, once present, is never overwritten.
type Attempt struct {
	ID          string                   `bson:"_id" json:"id"`
	UserID      string                   `bson:"userId" json:"userId"`
	LessonID    string                   `bson:"lessonId" json:"lessonId"`
	Answers     map[string]AttemptAnswer `bson:"answers" json:"answers"`
	StartedAt   time.Time                `bson:"startedAt" json:"startedAt"`
	CompletedAt time.Time                `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
}

type AttemptAnswer struct {
	SelectedOption int       `bson:"selectedOption" json:"selectedOption"`
	Correct        bool      `bson:"correct" json:"correct"`
	AwardedXP      int       `bson:"awardedXp" json:"awardedXp"`
	AnsweredAt     time.Time `bson:"answeredAt" json:"answeredAt"`
}

func (a *Attempt) Score() int {
	total := 0
	for _, ans := range a.Answers {
		total += ans.AwardedXP
	}
	return total
}

func (a *Attempt) Completed() bool { return !a.CompletedAt.IsZero() }
