package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Sketch/internal/directory"
	"github.com/dkeye/Sketch/internal/domain"
)

// RoomStore is the directory surface the REST handlers need.
type RoomStore interface {
	EnsureUser(ctx context.Context, user *domain.User) error
	CreateRoom(ctx context.Context, name domain.RoomName, creator domain.UserID) (*domain.Room, error)
	RoomByID(ctx context.Context, roomID domain.RoomID) (*domain.Room, error)
	ListActiveRooms(ctx context.Context) ([]domain.RoomSummary, error)
	RoomPlayers(ctx context.Context, roomID domain.RoomID) ([]domain.Player, error)
	Leaderboard(ctx context.Context, limit int) ([]directory.LeaderboardRow, error)
}

// RoomsNotifier pushes a fresh room list to the lobby after mutations.
type RoomsNotifier interface {
	NotifyRoomsChanged(ctx context.Context)
}

type RoomHandlers struct {
	Store RoomStore
	Rooms RoomsNotifier
}

func identity(c *gin.Context) *domain.User {
	return c.MustGet("user").(*domain.User)
}

func (h *RoomHandlers) List(c *gin.Context) {
	rooms, err := h.Store.ListActiveRooms(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("list rooms")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}
	c.JSON(http.StatusOK, rooms)
}

func (h *RoomHandlers) Create(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room name required"})
		return
	}
	name, err := domain.NewRoomName(req.Name)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user := identity(c)
	ctx := c.Request.Context()
	if err := h.Store.EnsureUser(ctx, user); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("ensure user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}
	room, err := h.Store.CreateRoom(ctx, name, user.ID)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("create room")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}
	h.Rooms.NotifyRoomsChanged(ctx)
	c.JSON(http.StatusCreated, room)
}

func (h *RoomHandlers) Get(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}
	room, err := h.Store.RoomByID(c.Request.Context(), roomID)
	if errors.Is(err, directory.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("get room")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *RoomHandlers) Players(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}
	players, err := h.Store.RoomPlayers(c.Request.Context(), roomID)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("room players")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}
	c.JSON(http.StatusOK, players)
}

func (h *RoomHandlers) Leaderboard(c *gin.Context) {
	rows, err := h.Store.Leaderboard(c.Request.Context(), 10)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("leaderboard")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}
	c.JSON(http.StatusOK, rows)
}

func parseRoomID(c *gin.Context) (domain.RoomID, bool) {
	raw := c.Param("roomId")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return 0, false
	}
	return domain.RoomID(id), true
}
