package domain

import "time"

// Player represents user's membership meta for a room: one row per
// (room, user) pair, carrying the persisted score total.
type Player struct {
	RoomID   RoomID    `json:"roomId"`
	UserID   UserID    `json:"userId"`
	Username string    `json:"username"`
	Score    int       `json:"score"`
	JoinedAt time.Time `json:"joinedAt"`
}
