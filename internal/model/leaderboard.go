package model

import "time"

// SnapshotDocID is the single leaderboard document.
const SnapshotDocID = "top10"

// Snapshot is a derived cache of the top-N query over users, replaced
// wholesale on every recomputation. It may be stale relative to concurrent XP
// writes.
type Snapshot struct {
	ID         string    `bson:"_id" json:"-"`
	TopUserIDs []string  `bson:"topUserIds" json:"topUserIds"`
	UpdatedAt  time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Entry is one hydrated leaderboard row.
type Entry struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	XP          int    `json:"xp"`
	Level       int    `json:"level"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	Rank        int    `json:"rank"`
}

// Status reports where a user stands relative to the persisted snapshot.
type Status struct {
	OnLeaderboard bool `json:"onLeaderboard"`
	Rank          int  `json:"rank,omitempty"`
	XP            int  `json:"xp"`
	XPToNextRank  int  `json:"xpToNextRank,omitempty"`
}

// Eligibility is the award-time check against the current last place.
type Eligibility struct {
	Eligible bool   `json:"eligible"`
	Rank     int    `json:"rank,omitempty"`
	Message  string `json:"message"`
}
