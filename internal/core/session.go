package core

import "strings"

// Placeholder marks a letter position not yet revealed to guessers.
const Placeholder = "_"

// Session is the ephemeral per-room game state. It is never persisted;
// only score deltas leave it at round boundaries. All access goes through
// the per-room guard in the app layer, so the struct itself holds no lock.
type Session struct {
	Drawer             string
	Players            []string
	CurrentPlayerIndex int

	// Word is empty between round start and the drawer's word choice.
	// All reveal and guess operations are no-ops while it is empty.
	Word           string
	RevealedMask   []bool
	RevealedChars  []string
	GuessedLetters []string
	WrongGuesses   int

	Scores           map[string]int
	RoundStartScores map[string]int
}

// NewSession fixes the turn order and zeroes the scores for a fresh game.
// The drawer must be one of players; callers verify that first.
func NewSession(drawer string, players []string) *Session {
	scores := make(map[string]int, len(players))
	start := make(map[string]int, len(players))
	for _, p := range players {
		scores[p] = 0
		start[p] = 0
	}
	s := &Session{
		Drawer:           drawer,
		Players:          append([]string(nil), players...),
		Scores:           scores,
		RoundStartScores: start,
	}
	s.CurrentPlayerIndex = s.indexOf(drawer)
	return s
}

func (s *Session) indexOf(player string) int {
	for i, p := range s.Players {
		if p == player {
			return i
		}
	}
	return 0
}

func (s *Session) HasPlayer(player string) bool {
	for _, p := range s.Players {
		if p == player {
			return true
		}
	}
	return false
}

// WordChosen reports whether the round is active (word set, guessing open).
func (s *Session) WordChosen() bool { return s.Word != "" }

// SetWord normalizes the word, sizes the reveal state to its length and
// opens the round. Previous guesses and the wrong-guess counter reset.
func (s *Session) SetWord(word string) {
	w := strings.ToLower(word)
	s.Word = w
	s.RevealedMask = make([]bool, len(w))
	s.RevealedChars = make([]string, len(w))
	for i := range s.RevealedChars {
		s.RevealedChars[i] = Placeholder
	}
	s.GuessedLetters = nil
	s.WrongGuesses = 0
}

func (s *Session) LetterGuessed(letter string) bool {
	for _, l := range s.GuessedLetters {
		if l == letter {
			return true
		}
	}
	return false
}

// FullyRevealed reports whether every position of the word is visible.
func (s *Session) FullyRevealed() bool {
	if s.Word == "" {
		return false
	}
	for _, r := range s.RevealedMask {
		if !r {
			return false
		}
	}
	return true
}

func (s *Session) revealAll() {
	for i := range s.RevealedMask {
		s.RevealedMask[i] = true
	}
	s.RevealedChars = strings.Split(s.Word, "")
}

// RoundDeltas is the per-player score earned since the round baseline;
// this is exactly what gets persisted to the directory at word-found.
func (s *Session) RoundDeltas() map[string]int {
	deltas := make(map[string]int)
	for player, score := range s.Scores {
		if d := score - s.RoundStartScores[player]; d != 0 {
			deltas[player] = d
		}
	}
	return deltas
}

// CommitRound moves the baseline up to the current scores.
func (s *Session) CommitRound() {
	for player, score := range s.Scores {
		s.RoundStartScores[player] = score
	}
}

// NextRound clears the round state and hands the pencil to newDrawer.
// Turn order is host-driven: any member may nominate the next drawer.
func (s *Session) NextRound(newDrawer string) {
	s.Word = ""
	s.RevealedMask = nil
	s.RevealedChars = nil
	s.GuessedLetters = nil
	s.WrongGuesses = 0
	s.Drawer = newDrawer
	s.CurrentPlayerIndex = s.indexOf(newDrawer)
}

// StateSnapshot is the late-join view of an active session. The literal
// word is only filled in for the drawer.
type StateSnapshot struct {
	IsPlaying       bool           `json:"isPlaying"`
	Drawer          string         `json:"drawer"`
	WordLength      int            `json:"wordLength"`
	Word            string         `json:"word,omitempty"`
	RevealedLetters []bool         `json:"revealedLetters"`
	RevealedWord    []string       `json:"revealedWord"`
	GuessedLetters  []string       `json:"guessedLetters"`
	Players         []string       `json:"players"`
	Scores          map[string]int `json:"scores"`
}

// Snapshot serializes the session for a single recipient. Sending it twice
// to the same client is harmless: it carries no deltas, only current state.
func (s *Session) Snapshot(forUser string) StateSnapshot {
	snap := StateSnapshot{
		IsPlaying:       true,
		Drawer:          s.Drawer,
		WordLength:      len(s.Word),
		RevealedLetters: append([]bool(nil), s.RevealedMask...),
		RevealedWord:    append([]string(nil), s.RevealedChars...),
		GuessedLetters:  append([]string(nil), s.GuessedLetters...),
		Players:         append([]string(nil), s.Players...),
		Scores:          copyScores(s.Scores),
	}
	if forUser == s.Drawer {
		snap.Word = s.Word
	}
	return snap
}

func copyScores(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
