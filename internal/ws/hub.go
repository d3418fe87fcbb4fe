package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/sociopolis/sociopolis_service/internal/telemetry"
)

var (
	mu    sync.RWMutex
	rooms = map[string]map[*websocket.Conn]struct{}{}
)

type Action string

const (
	ActionJoin  Action = "join"
	ActionLeave Action = "leave"
)

type Room string

const (
	// RoomLeaderboard receives every persisted snapshot replacement.
	RoomLeaderboard Room = "leaderboard.room"
	// RoomUser + ".<userID>" receives that user's XP changes.
	RoomUser Room = "user.room"
)

type Event string

const (
	EventLeaderboardUpdated Event = "leaderboard.event.updated"
	EventUserXP             Event = "user.event.xp"
)

type PayloadEvent struct {
	Event Event `json:"event"`
	Data  any   `json:"data,omitempty"`
}

type ClientMessage struct {
	Action Action `json:"action"`
	Room   string `json:"room"`
}

func HandleWS(c *websocket.Conn) {
	tlog := telemetry.L().With().Str("module", "ws").Logger()
	tlog.Info().Msg("ws_connected")
	defer func() {
		mu.Lock()
		for room := range rooms {
			delete(rooms[room], c)
		}
		mu.Unlock()
		_ = c.Close()
	}()

	for {
		_, msg, err := c.ReadMessage()
		if err != nil {
			break
		}

		var cm ClientMessage
		if err := json.Unmarshal(msg, &cm); err != nil {
			continue
		}

		switch cm.Action {
		case ActionJoin:
			joinRoom(c, cm.Room)
		case ActionLeave:
			leaveRoom(c, cm.Room)
		}
	}
}

func joinRoom(c *websocket.Conn, room string) {
	if room == "" {
		return
	}
	mu.Lock()
	if rooms[room] == nil {
		rooms[room] = map[*websocket.Conn]struct{}{}
	}
	rooms[room][c] = struct{}{}
	mu.Unlock()
}

func leaveRoom(c *websocket.Conn, room string) {
	if room == "" {
		return
	}
	mu.Lock()
	delete(rooms[room], c)
	mu.Unlock()
}

func broadcast(room string, pl PayloadEvent) {
	mu.RLock()
	conns := rooms[room]
	mu.RUnlock()

	for c := range conns {
		_ = c.WriteJSON(pl)
	}
}

type LeaderboardPayload struct {
	TopUserIDs []string  `json:"topUserIds"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// BroadcastLeaderboard pushes a freshly persisted snapshot to everyone
// watching the board.
func BroadcastLeaderboard(topUserIDs []string, updatedAt time.Time) {
	broadcast(string(RoomLeaderboard), PayloadEvent{
		Event: EventLeaderboardUpdated,
		Data:  LeaderboardPayload{TopUserIDs: topUserIDs, UpdatedAt: updatedAt},
	})
}

type UserXPPayload struct {
	UserID string `json:"userId"`
	XP     int    `json:"xp"`
	Level  int    `json:"level"`
}

// BroadcastUserXP notifies a user's own room after an award or reset.
func BroadcastUserXP(userID string, xp, level int) {
	broadcast(string(RoomUser)+"."+userID, PayloadEvent{
		Event: EventUserXP,
		Data:  UserXPPayload{UserID: userID, XP: xp, Level: level},
	})
}
