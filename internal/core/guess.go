package core

import "strings"

// Scoring constants, per observed game rules.
const (
	pointsPerLetter   = 10
	wrongLetterPoints = -5
	wordBasePoints    = 50
	pointsPerHidden   = 5
	wrongWordPoints   = -10
	drawerBonusBase   = 30
	drawerBonusStep   = 5
)

type GuessKind string

const (
	GuessLetter GuessKind = "letter"
	GuessWord   GuessKind = "word"
)

// GuessResult is the pure outcome of one submission applied to a session.
type GuessResult struct {
	Guess     string
	Kind      GuessKind
	Duplicate bool
	Success   bool
	Matches   int
	Points    int
}

// ClassifyGuess: a single character is a letter guess, anything longer a
// full-word guess.
func ClassifyGuess(submission string) GuessKind {
	if len(submission) == 1 {
		return GuessLetter
	}
	return GuessWord
}

// ApplyGuess normalizes the submission, applies it to the session and
// credits the guesser. The caller holds the per-room guard and decides
// what to broadcast from the result.
func ApplyGuess(s *Session, guesser, submission string) GuessResult {
	guess := strings.ToLower(submission)
	if ClassifyGuess(guess) == GuessLetter {
		return applyLetterGuess(s, guesser, guess)
	}
	return applyWordGuess(s, guesser, guess)
}

func applyLetterGuess(s *Session, guesser, letter string) GuessResult {
	res := GuessResult{Guess: letter, Kind: GuessLetter}
	if s.LetterGuessed(letter) {
		res.Duplicate = true
		return res
	}
	s.GuessedLetters = append(s.GuessedLetters, letter)

	for i := 0; i < len(s.Word); i++ {
		if string(s.Word[i]) == letter {
			s.RevealedMask[i] = true
			s.RevealedChars[i] = letter
			res.Matches++
		}
	}

	if res.Matches > 0 {
		res.Success = true
		res.Points = res.Matches * pointsPerLetter
	} else {
		res.Points = wrongLetterPoints
		s.WrongGuesses++
	}
	s.Scores[guesser] += res.Points
	return res
}

func applyWordGuess(s *Session, guesser, word string) GuessResult {
	res := GuessResult{Guess: word, Kind: GuessWord}
	if word == s.Word {
		hidden := 0
		for _, r := range s.RevealedMask {
			if !r {
				hidden++
			}
		}
		s.revealAll()
		res.Success = true
		res.Points = wordBasePoints + hidden*pointsPerHidden
	} else {
		res.Points = wrongWordPoints
		s.WrongGuesses++
	}
	s.Scores[guesser] += res.Points
	return res
}

// DrawerBonus rewards the drawer when the word falls: full bonus for a
// clean round, shrinking with every wrong guess, never negative.
func DrawerBonus(wrongGuesses int) int {
	bonus := drawerBonusBase - wrongGuesses*drawerBonusStep
	if bonus < 0 {
		return 0
	}
	return bonus
}
