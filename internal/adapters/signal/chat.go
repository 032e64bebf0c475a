package signal

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Sketch/internal/core"
	"github.com/dkeye/Sketch/internal/domain"
)

// handleChat relays a lobby chat line to everyone else. History is owned
// by the chat service, not here; the relay keeps nothing.
func (ctl *Controller) handleChat(sid core.SessionID, user *domain.User, data []byte) {
	type chatPayload struct {
		Type    string `json:"type"`
		Content string `json:"content"`
	}
	var p chatPayload
	if err := json.Unmarshal(data, &p); err != nil || p.Content == "" {
		log.Warn().Str("module", "signal").Msg("bad chat payload")
		return
	}

	ctl.broadcastLobby(struct {
		Type      string    `json:"type"`
		Username  string    `json:"username"`
		Content   string    `json:"content"`
		CreatedAt time.Time `json:"createdAt"`
	}{"chat", user.Username, p.Content, time.Now()}, sid)
}
