package model

import "time"

// Lesson content is authored out of band (seed migrations) and read-only at
// runtime.
type Lesson struct {
	ID                string      `bson:"_id" json:"id"`
	Title             string      `bson:"title" json:"title"`
	Description       string      `bson:"description" json:"description"`
	Difficulty        string      `bson:"difficulty" json:"difficulty"`
	EstimatedDuration int         `bson:"estimatedDuration" json:"estimatedDuration"`
	ImageURL          string      `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	VideoURL          string      `bson:"videoUrl,omitempty" json:"videoUrl,omitempty"`
	Tags              []string    `bson:"tags" json:"tags"`
	Sections          []Section   `bson:"sections" json:"sections"`
	Vocabulary        []VocabTerm `bson:"vocabulary" json:"vocabulary"`
	CheckIns          []CheckIn   `bson:"checkIns" json:"checkIns"`
	CreatedAt         time.Time   `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time   `bson:"updatedAt" json:"updatedAt"`
}

type Section struct {
	Heading string `bson:"heading" json:"heading"`
	Body    string `bson:"body" json:"body"`
}

type VocabTerm struct {
	Term       string `bson:"term" json:"term"`
	Definition string `bson:"definition" json:"definition"`
}

// CheckIn is an inline quiz question. CorrectOption is the answer key and must
// never leave the server.
type CheckIn struct {
	ID            string   `bson:"id" json:"id"`
	Prompt        string   `bson:"prompt" json:"prompt"`
	Options       []string `bson:"options" json:"options"`
	CorrectOption int      `bson:"correctOption" json:"-"`
	XPReward      int      `bson:"xpReward" json:"xpReward"`
}

func (l *Lesson) CheckIn(id string) (CheckIn, bool) {
	for _, ci := range l.CheckIns {
		if ci.ID == id {
			return ci, true
		}
	}
	return CheckIn{}, false
}
