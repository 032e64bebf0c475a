package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Sketch/internal/core"
	"github.com/dkeye/Sketch/internal/domain"
)

// Out-of-turn and out-of-state game events are dropped without a reply.
// A misbehaving client must never corrupt shared room state, and erroring
// it out buys nothing.

func (ctl *Controller) handleStartGame(ctx context.Context, sid core.SessionID, user *domain.User, data []byte) {
	roomID, _, ok := ctl.Orch.Registry.RoomOf(sid)
	if !ok {
		return
	}
	type startPayload struct {
		Type    string   `json:"type"`
		Drawer  string   `json:"drawer"`
		Players []string `json:"players"`
	}
	var p startPayload
	if err := json.Unmarshal(data, &p); err != nil || len(p.Players) == 0 {
		log.Error().Err(err).Str("module", "signal").Msg("bad start-game payload")
		return
	}
	drawerListed := false
	for _, player := range p.Players {
		if player == p.Drawer {
			drawerListed = true
			break
		}
	}
	if !drawerListed {
		log.Warn().Str("module", "signal").Str("drawer", p.Drawer).Msg("start-game drawer not in players")
		return
	}

	if !ctl.Orch.Games.Start(roomID, p.Drawer, p.Players) {
		log.Warn().Str("module", "signal").Int64("room", int64(roomID)).Msg("start-game with active session")
		return
	}
	if err := ctl.Orch.Dir.SetRoomStatus(ctx, roomID, domain.RoomPlaying); err != nil {
		log.Error().Err(err).Str("module", "signal").Int64("room", int64(roomID)).Msg("set room status")
	}
	log.Info().Str("module", "signal").Int64("room", int64(roomID)).Str("by", user.Username).Str("drawer", p.Drawer).Msg("game started")

	// The initiator gets the broadcast too; its local view has not
	// transitioned yet.
	ctl.broadcastGroup(roomID, struct {
		Type    string   `json:"type"`
		Drawer  string   `json:"drawer"`
		Players []string `json:"players"`
	}{"game-started", p.Drawer, p.Players})

	ctl.broadcastRoomsList(ctx)
}

func (ctl *Controller) handleSetWord(sid core.SessionID, user *domain.User, data []byte) {
	roomID, _, ok := ctl.Orch.Registry.RoomOf(sid)
	if !ok {
		return
	}
	type wordPayload struct {
		Type string `json:"type"`
		Word string `json:"word"`
	}
	var p wordPayload
	if err := json.Unmarshal(data, &p); err != nil || !validWord(p.Word) {
		log.Warn().Str("module", "signal").Msg("invalid set-word payload")
		return
	}

	ctl.Orch.Games.Do(roomID, func(s *core.Session) {
		if s.Drawer != user.Username {
			log.Warn().Str("module", "signal").Str("user", user.Username).Msg("set-word from non-drawer")
			return
		}
		s.SetWord(p.Word)

		// The literal word stays server-side; guessers get its length and
		// the fully masked reveal state.
		ctl.broadcastGroup(roomID, struct {
			Type         string         `json:"type"`
			WordLength   int            `json:"wordLength"`
			Drawer       string         `json:"drawer"`
			RevealedWord []string       `json:"revealedWord"`
			Scores       map[string]int `json:"scores"`
		}{"word-set", len(s.Word), s.Drawer, s.RevealedChars, s.Scores})
	})
}

func validWord(word string) bool {
	if word == "" {
		return false
	}
	for i := 0; i < len(word); i++ {
		c := word[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}

// DrawSegment is relayed verbatim; the server never interprets pixels and
// keeps no stroke history.
type DrawSegment struct {
	X1        float64 `json:"x1"`
	Y1        float64 `json:"y1"`
	X2        float64 `json:"x2"`
	Y2        float64 `json:"y2"`
	Color     string  `json:"color"`
	LineWidth float64 `json:"lineWidth"`
}

func (ctl *Controller) handleDraw(sid core.SessionID, data []byte) {
	roomID, _, ok := ctl.Orch.Registry.RoomOf(sid)
	if !ok {
		return
	}
	type drawPayload struct {
		Type string `json:"type"`
		DrawSegment
	}
	var p drawPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	ctl.broadcastOthers(roomID, sid, struct {
		Type string `json:"type"`
		DrawSegment
	}{"draw", p.DrawSegment})
}

func (ctl *Controller) handleClearCanvas(sid core.SessionID) {
	roomID, _, ok := ctl.Orch.Registry.RoomOf(sid)
	if !ok {
		return
	}
	ctl.broadcastOthers(roomID, sid, map[string]any{"type": "clear-canvas"})
}

type guessResultMessage struct {
	Type            string         `json:"type"`
	Guess           string         `json:"guess"`
	Success         bool           `json:"success"`
	Kind            core.GuessKind `json:"kind"`
	Message         string         `json:"message,omitempty"`
	Username        string         `json:"username"`
	RevealedLetters []bool         `json:"revealedLetters,omitempty"`
	RevealedWord    []string       `json:"revealedWord,omitempty"`
	Points          int            `json:"points"`
	Scores          map[string]int `json:"scores"`
}

func (ctl *Controller) handleGuess(sid core.SessionID, user *domain.User, c *Conn, data []byte) {
	roomID, _, ok := ctl.Orch.Registry.RoomOf(sid)
	if !ok {
		return
	}
	type guessPayload struct {
		Type  string `json:"type"`
		Guess string `json:"guess"`
	}
	var p guessPayload
	if err := json.Unmarshal(data, &p); err != nil || p.Guess == "" {
		return
	}
	if !ctl.Guesses.Allow(user.ID) {
		log.Warn().Str("module", "signal").Str("user", user.Username).Msg("guess rate limited")
		return
	}

	var deltas map[string]int
	ctl.Orch.Games.Do(roomID, func(s *core.Session) {
		if !s.WordChosen() {
			return
		}
		res := core.ApplyGuess(s, user.Username, p.Guess)

		if res.Duplicate {
			// Submitter-only notice; nothing changed for anyone else.
			ctl.sendJSON(c, guessResultMessage{
				Type:     "guess-result",
				Guess:    res.Guess,
				Kind:     res.Kind,
				Message:  "letter already guessed",
				Username: user.Username,
				Scores:   s.Scores,
			})
			return
		}

		ctl.broadcastGroup(roomID, guessResultMessage{
			Type:            "guess-result",
			Guess:           res.Guess,
			Success:         res.Success,
			Kind:            res.Kind,
			Username:        user.Username,
			RevealedLetters: s.RevealedMask,
			RevealedWord:    s.RevealedChars,
			Points:          res.Points,
			Scores:          s.Scores,
		})

		if !s.FullyRevealed() {
			return
		}

		bonus := core.DrawerBonus(s.WrongGuesses)
		s.Scores[s.Drawer] += bonus
		deltas = s.RoundDeltas()
		s.CommitRound()

		ctl.broadcastGroup(roomID, struct {
			Type        string         `json:"type"`
			Word        string         `json:"word"`
			Winner      string         `json:"winner"`
			Scores      map[string]int `json:"scores"`
			DrawerBonus int            `json:"drawerBonus"`
		}{"word-found", s.Word, user.Username, s.Scores, bonus})
	})

	// Persistence happens outside the per-room guard, on a detached
	// context, so storage latency never stalls the room and a dropping
	// connection cannot cancel the write.
	if len(deltas) > 0 {
		go func() {
			persistCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			ctl.Orch.PersistRound(persistCtx, roomID, deltas)
		}()
	}
}

func (ctl *Controller) handleNextRound(sid core.SessionID, data []byte) {
	roomID, _, ok := ctl.Orch.Registry.RoomOf(sid)
	if !ok {
		return
	}
	type nextPayload struct {
		Type   string `json:"type"`
		Drawer string `json:"drawer"`
	}
	var p nextPayload
	if err := json.Unmarshal(data, &p); err != nil || p.Drawer == "" {
		return
	}

	// Rotation is host-driven: any member may nominate, as long as the
	// nominee actually plays.
	ctl.Orch.Games.Do(roomID, func(s *core.Session) {
		if !s.HasPlayer(p.Drawer) {
			log.Warn().Str("module", "signal").Str("drawer", p.Drawer).Msg("next-round drawer not in game")
			return
		}
		s.NextRound(p.Drawer)
		ctl.broadcastGroup(roomID, struct {
			Type   string `json:"type"`
			Drawer string `json:"drawer"`
		}{"new-round", p.Drawer})
	})
}

func (ctl *Controller) handleEndGame(ctx context.Context, sid core.SessionID) {
	roomID, _, ok := ctl.Orch.Registry.RoomOf(sid)
	if !ok {
		return
	}
	if !ctl.Orch.Games.End(roomID) {
		return
	}
	if err := ctl.Orch.Dir.SetRoomStatus(ctx, roomID, domain.RoomWaiting); err != nil {
		log.Error().Err(err).Str("module", "signal").Int64("room", int64(roomID)).Msg("set room status")
	}
	log.Info().Str("module", "signal").Int64("room", int64(roomID)).Msg("game ended")
	ctl.broadcastGroup(roomID, map[string]any{"type": "game-ended"})
	ctl.broadcastRoomsList(ctx)
}
