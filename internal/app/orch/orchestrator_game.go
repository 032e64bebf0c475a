package orch

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Sketch/internal/domain"
)

// PersistRound writes each player's round delta to the directory. The
// increment is not idempotent, so a failure is logged rather than retried;
// the round result has already been broadcast and must not be held hostage
// by storage.
func (o *Orchestrator) PersistRound(ctx context.Context, roomID domain.RoomID, deltas map[string]int) {
	for username, delta := range deltas {
		if err := o.Dir.AddRoundPoints(ctx, roomID, username, delta); err != nil {
			log.Error().Err(err).Str("module", "orch").Int64("room", int64(roomID)).Str("user", username).Int("delta", delta).Msg("persist round points")
			continue
		}
		log.Info().Str("module", "orch").Int64("room", int64(roomID)).Str("user", username).Int("delta", delta).Msg("round points saved")
	}
}
