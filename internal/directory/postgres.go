// Package directory is the durable room/player store, backed by postgres.
// It owns membership counts and persisted score totals; it never sees the
// ephemeral per-round game state.
package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Sketch/internal/domain"
)

var (
	ErrNotFound        = errors.New("room not found")
	ErrRoomFull        = errors.New("room is full")
	ErrRoomNotJoinable = errors.New("game already started or ended")
)

type DB struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return &DB{Pool: pool}, nil
}

func (d *DB) Close() { d.Pool.Close() }

// WaitReady pings until the database answers or retries run out.
func (d *DB) WaitReady(ctx context.Context, retries int, delay time.Duration) error {
	for i := 0; i < retries; i++ {
		if err := d.Pool.Ping(ctx); err == nil {
			log.Info().Str("module", "directory").Msg("database is ready")
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return errors.New("could not connect to database after multiple attempts")
}

func (d *DB) Schema(ctx context.Context) error {
	_, err := d.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(36) PRIMARY KEY,
			username VARCHAR(50) UNIQUE NOT NULL,
			total_points INT DEFAULT 0,
			created_at TIMESTAMP DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS game_rooms (
			id SERIAL PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			status VARCHAR(20) DEFAULT 'waiting',
			max_players INT DEFAULT 8,
			created_at TIMESTAMP DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS game_players (
			id SERIAL PRIMARY KEY,
			room_id INT REFERENCES game_rooms(id) ON DELETE CASCADE,
			user_id VARCHAR(36) REFERENCES users(id) ON DELETE CASCADE,
			score INT DEFAULT 0,
			joined_at TIMESTAMP DEFAULT NOW(),
			UNIQUE(room_id, user_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// EnsureUser upserts the identity so roster rows have a user to reference.
func (d *DB) EnsureUser(ctx context.Context, user *domain.User) error {
	_, err := d.Pool.Exec(ctx,
		`INSERT INTO users (id, username) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username`,
		string(user.ID), user.Username,
	)
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}

// CreateRoom inserts the room and its creator's membership in one go.
func (d *DB) CreateRoom(ctx context.Context, name domain.RoomName, creator domain.UserID) (*domain.Room, error) {
	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	defer tx.Rollback(ctx)

	var room domain.Room
	err = tx.QueryRow(ctx,
		`INSERT INTO game_rooms (name) VALUES ($1)
		 RETURNING id, name, status, max_players, created_at`,
		string(name),
	).Scan(&room.ID, &room.Name, &room.Status, &room.MaxPlayers, &room.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO game_players (room_id, user_id) VALUES ($1, $2)`,
		int64(room.ID), string(creator),
	)
	if err != nil {
		return nil, fmt.Errorf("create room creator: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	return &room, nil
}

func (d *DB) RoomByID(ctx context.Context, roomID domain.RoomID) (*domain.Room, error) {
	var room domain.Room
	err := d.Pool.QueryRow(ctx,
		`SELECT id, name, status, max_players, created_at FROM game_rooms WHERE id = $1`,
		int64(roomID),
	).Scan(&room.ID, &room.Name, &room.Status, &room.MaxPlayers, &room.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	return &room, nil
}

// ListActiveRooms returns the waiting rooms with their member counts,
// fullest first.
func (d *DB) ListActiveRooms(ctx context.Context) ([]domain.RoomSummary, error) {
	rows, err := d.Pool.Query(ctx,
		`SELECT r.id, r.name, r.status, r.max_players, r.created_at, COUNT(p.id) AS player_count
		 FROM game_rooms r
		 LEFT JOIN game_players p ON r.id = p.room_id
		 WHERE r.status = 'waiting'
		 GROUP BY r.id
		 ORDER BY player_count DESC, r.created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	out := []domain.RoomSummary{}
	for rows.Next() {
		var s domain.RoomSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Status, &s.MaxPlayers, &s.CreatedAt, &s.PlayerCount); err != nil {
			return nil, fmt.Errorf("list rooms: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// AddPlayer joins a user to a room. The capacity and status checks happen
// inside the insert itself, so concurrent joins cannot oversubscribe the
// room. Joining a room twice is a no-op.
func (d *DB) AddPlayer(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	tag, err := d.Pool.Exec(ctx,
		`INSERT INTO game_players (room_id, user_id)
		 SELECT $1, $2
		 WHERE (SELECT COUNT(*) FROM game_players WHERE room_id = $1)
		       < (SELECT max_players FROM game_rooms WHERE id = $1)
		   AND (SELECT status FROM game_rooms WHERE id = $1) = 'waiting'
		 ON CONFLICT (room_id, user_id) DO NOTHING`,
		int64(roomID), string(userID),
	)
	if err != nil {
		return fmt.Errorf("add player: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	return d.classifyJoinRejection(ctx, roomID, userID)
}

// classifyJoinRejection only names the reason; the insert above already
// made the authoritative decision.
func (d *DB) classifyJoinRejection(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	room, err := d.RoomByID(ctx, roomID)
	if err != nil {
		return err
	}

	var member bool
	err = d.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM game_players WHERE room_id = $1 AND user_id = $2)`,
		int64(roomID), string(userID),
	).Scan(&member)
	if err != nil {
		return fmt.Errorf("add player: %w", err)
	}
	if member {
		return nil
	}
	if room.Status != domain.RoomWaiting {
		return ErrRoomNotJoinable
	}
	return ErrRoomFull
}

// RemovePlayer deletes the membership row and, when it was the last one,
// the room record itself in the same transaction.
func (d *DB) RemovePlayer(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error) {
	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("remove player: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`DELETE FROM game_players WHERE room_id = $1 AND user_id = $2`,
		int64(roomID), string(userID),
	)
	if err != nil {
		return false, fmt.Errorf("remove player: %w", err)
	}

	var remaining int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM game_players WHERE room_id = $1`,
		int64(roomID),
	).Scan(&remaining)
	if err != nil {
		return false, fmt.Errorf("remove player: %w", err)
	}

	deleted := false
	if remaining == 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM game_rooms WHERE id = $1`, int64(roomID)); err != nil {
			return false, fmt.Errorf("remove empty room: %w", err)
		}
		deleted = true
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("remove player: %w", err)
	}
	return deleted, nil
}

// RoomPlayers lists the roster with persisted scores, best first.
func (d *DB) RoomPlayers(ctx context.Context, roomID domain.RoomID) ([]domain.Player, error) {
	rows, err := d.Pool.Query(ctx,
		`SELECT gp.room_id, gp.user_id, u.username, gp.score, gp.joined_at
		 FROM game_players gp
		 JOIN users u ON gp.user_id = u.id
		 WHERE gp.room_id = $1
		 ORDER BY gp.score DESC`,
		int64(roomID),
	)
	if err != nil {
		return nil, fmt.Errorf("room players: %w", err)
	}
	defer rows.Close()

	out := []domain.Player{}
	for rows.Next() {
		var p domain.Player
		if err := rows.Scan(&p.RoomID, &p.UserID, &p.Username, &p.Score, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("room players: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AddRoundPoints credits a round's delta to both the roster row and the
// player's lifetime total.
func (d *DB) AddRoundPoints(ctx context.Context, roomID domain.RoomID, username string, delta int) error {
	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("add round points: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`UPDATE game_players gp SET score = gp.score + $1
		 FROM users u
		 WHERE gp.user_id = u.id AND gp.room_id = $2 AND u.username = $3`,
		delta, int64(roomID), username,
	)
	if err != nil {
		return fmt.Errorf("add round points: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE users SET total_points = COALESCE(total_points, 0) + $1 WHERE username = $2`,
		delta, username,
	)
	if err != nil {
		return fmt.Errorf("add lifetime points: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("add round points: %w", err)
	}
	return nil
}

// SetRoomStatus flips the durable room state, e.g. waiting → playing when
// a game starts.
func (d *DB) SetRoomStatus(ctx context.Context, roomID domain.RoomID, status domain.RoomStatus) error {
	_, err := d.Pool.Exec(ctx,
		`UPDATE game_rooms SET status = $1 WHERE id = $2`,
		string(status), int64(roomID),
	)
	if err != nil {
		return fmt.Errorf("set room status: %w", err)
	}
	return nil
}

// LeaderboardRow is one line of the lifetime points ranking.
type LeaderboardRow struct {
	UserID      domain.UserID `json:"userId"`
	Username    string        `json:"username"`
	TotalPoints int           `json:"totalPoints"`
}

func (d *DB) Leaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error) {
	rows, err := d.Pool.Query(ctx,
		`SELECT id, username, COALESCE(total_points, 0)
		 FROM users
		 ORDER BY total_points DESC NULLS LAST
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	out := []LeaderboardRow{}
	for rows.Next() {
		var r LeaderboardRow
		if err := rows.Scan(&r.UserID, &r.Username, &r.TotalPoints); err != nil {
			return nil, fmt.Errorf("leaderboard: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
