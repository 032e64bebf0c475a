package domain

import (
	"errors"
	"time"
)

const (
	MaxRoomNameLen    = 100
	DefaultMaxPlayers = 8
)

var ErrRoomNameEmpty = errors.New("room name empty")

type (
	RoomID   int64
	RoomName string
)

type RoomStatus string

const (
	RoomWaiting RoomStatus = "waiting"
	RoomPlaying RoomStatus = "playing"
	RoomEnded   RoomStatus = "ended"
)

// Room is the durable record owned by the room directory.
type Room struct {
	ID         RoomID     `json:"id"`
	Name       RoomName   `json:"name"`
	Status     RoomStatus `json:"status"`
	MaxPlayers int        `json:"maxPlayers"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// RoomSummary is a listing row: a waiting room plus its live member count.
type RoomSummary struct {
	Room
	PlayerCount int `json:"playerCount"`
}

func NewRoomName(raw string) (RoomName, error) {
	if len(raw) == 0 {
		return "", ErrRoomNameEmpty
	}
	if len(raw) > MaxRoomNameLen {
		raw = raw[:MaxRoomNameLen]
	}
	return RoomName(raw), nil
}
