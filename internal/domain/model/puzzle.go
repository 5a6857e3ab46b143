package model

import "time"

type PuzzleType string

const (
	PuzzleLogic  PuzzleType = "logic"  // arithmetic word problem
	PuzzleCode   PuzzleType = "code"   // predict the program output
	PuzzleBlock  PuzzleType = "block"  // spatial label sequence
	PuzzleCipher PuzzleType = "cipher" // Caesar substitution
	PuzzleMCQ    PuzzleType = "mcq"
)

// AllPuzzleTypes is the fixed set every bundle covers exactly once.
var AllPuzzleTypes = []PuzzleType{PuzzleLogic, PuzzleCode, PuzzleBlock, PuzzleCipher, PuzzleMCQ}

const (
	BundleSize             = 5
	DefaultEstimateSeconds = 120
	FallbackTotalSeconds   = 600
)

type Bundle struct {
	ID         string       `json:"id"`
	TeamID     string       `json:"team_id"`
	Locks      []PuzzleSpec `json:"locks"`
	Difficulty int          `json:"difficulty"`
	CreatedAt  time.Time    `json:"created_at"`
}

type PuzzleSpec struct {
	LockIndex       int           `json:"lock_index"`
	Type            PuzzleType    `json:"type"`
	Prompt          string        `json:"prompt,omitempty"`
	Code            string        `json:"code,omitempty"`
	Block           *BlockGame    `json:"block,omitempty"`
	Cipher          *CipherText   `json:"cipher,omitempty"`
	Questions       []MCQQuestion `json:"questions,omitempty"`
	Expected        string        `json:"expected,omitempty"` // canonical text form; numbers use strconv 'g' format
	EstimateSeconds int           `json:"estimate_seconds"`
	Difficulty      int           `json:"difficulty"`
}

type GridSize struct {
	W int `json:"w"`
	H int `json:"h"`
}

type Block struct {
	Label string `json:"label"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
}

type BlockGame struct {
	Grid   GridSize `json:"grid"`
	Blocks []Block  `json:"blocks"`
}

type CipherText struct {
	Plain     string `json:"plain,omitempty"`
	Cipher    string `json:"cipher"`
	ShiftHint string `json:"shift_hint"`
}

type MCQQuestion struct {
	Question     string   `json:"q"`
	Options      []string `json:"opts"`
	CorrectIndex *int     `json:"correct_index,omitempty"`
}

// LockAt returns the puzzle at lockIndex, or false when the index is outside the bundle.
func (b *Bundle) LockAt(lockIndex int) (PuzzleSpec, bool) {
	if lockIndex < 0 || lockIndex >= len(b.Locks) {
		return PuzzleSpec{}, false
	}
	return b.Locks[lockIndex], true
}

// TotalEstimateSeconds sums lock estimates, counting unset ones as DefaultEstimateSeconds.
func (b *Bundle) TotalEstimateSeconds() int {
	total := 0
	for _, l := range b.Locks {
		if l.EstimateSeconds > 0 {
			total += l.EstimateSeconds
		} else {
			total += DefaultEstimateSeconds
		}
	}
	return total
}

// Redacted returns a copy of the bundle with all grading truth removed.
func (b *Bundle) Redacted() *Bundle {
	out := *b
	out.Locks = make([]PuzzleSpec, len(b.Locks))
	for i, l := range b.Locks {
		l.Expected = ""
		if l.Cipher != nil {
			c := *l.Cipher
			c.Plain = ""
			l.Cipher = &c
		}
		if len(l.Questions) > 0 {
			qs := make([]MCQQuestion, len(l.Questions))
			for j, q := range l.Questions {
				q.CorrectIndex = nil
				qs[j] = q
			}
			l.Questions = qs
		}
		out.Locks[i] = l
	}
	return &out
}
