package generator

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"csi_locks/internal/domain/model"

	"github.com/google/uuid"
)

// RandSource is the subset of *rand.Rand the generator needs. Tests pass a
// seeded *rand.Rand to get reproducible bundles.
type RandSource interface {
	IntN(n int) int
}

type IDSource func() string

type Generator struct {
	mu      sync.Mutex // guards rng; *rand.Rand is not safe for concurrent use
	rng     RandSource
	newID   IDSource
	now     func() time.Time
	catalog *Catalog
}

func New(catalog *Catalog, rng RandSource, newID IDSource, now func() time.Time) *Generator {
	return &Generator{catalog: catalog, rng: rng, newID: newID, now: now}
}

// NewDefault uses the embedded catalog, a time-seeded PCG source and UUIDv4 ids.
func NewDefault() *Generator {
	seed := uint64(time.Now().UnixNano())
	return New(DefaultCatalog(), rand.New(rand.NewPCG(seed, seed>>1|1)), uuid.NewString, time.Now)
}

// Generate builds a bundle with one puzzle of every type in a random lock order.
func (g *Generator) Generate(teamID string) *model.Bundle {
	g.mu.Lock()
	defer g.mu.Unlock()

	locks := []model.PuzzleSpec{
		g.logic(),
		g.code(),
		g.block(),
		g.cipher(),
		g.mcq(),
	}

	difficulty := 0
	for _, l := range locks {
		difficulty += l.Difficulty
	}

	shuffle(g.rng, len(locks), func(i, j int) { locks[i], locks[j] = locks[j], locks[i] })
	for i := range locks {
		locks[i].LockIndex = i
	}

	return &model.Bundle{
		ID:         g.newID(),
		TeamID:     teamID,
		Locks:      locks,
		Difficulty: difficulty,
		CreatedAt:  g.now().UTC(),
	}
}

func (g *Generator) logic() model.PuzzleSpec {
	sec := g.catalog.Logic
	t := sec.Templates[g.rng.IntN(len(sec.Templates))]
	x, y, z := g.between(sec.X), g.between(sec.Y), g.between(sec.Z)

	var answer float64
	switch t.Formula {
	case "xz_over_y":
		answer = float64(x*z) / float64(y)
	default:
		answer = float64(x*y) / float64(z)
	}

	prompt := strings.NewReplacer(
		"{X}", strconv.Itoa(x),
		"{Y}", strconv.Itoa(y),
		"{Z}", strconv.Itoa(z),
	).Replace(t.Prompt)

	return model.PuzzleSpec{
		Type:            model.PuzzleLogic,
		Prompt:          prompt,
		Expected:        formatNumber(answer),
		EstimateSeconds: sec.EstimateSeconds,
		Difficulty:      1,
	}
}

func (g *Generator) code() model.PuzzleSpec {
	sec := g.catalog.Code
	t := sec.Templates[g.rng.IntN(len(sec.Templates))]

	// Two distinct names so "let a = 1; let a = 2" never appears.
	ai := g.rng.IntN(len(sec.VarNames))
	bi := g.rng.IntN(len(sec.VarNames) - 1)
	if bi >= ai {
		bi++
	}
	va, vb := g.between(sec.Values), g.between(sec.Values)

	answer := va + vb
	if t.Op == "mul" {
		answer = va * vb
	}

	code := strings.NewReplacer(
		"{a}", sec.VarNames[ai],
		"{b}", sec.VarNames[bi],
		"{va}", strconv.Itoa(va),
		"{vb}", strconv.Itoa(vb),
	).Replace(t.Code)

	return model.PuzzleSpec{
		Type:            model.PuzzleCode,
		Prompt:          "What does this program print?",
		Code:            code,
		Expected:        strconv.Itoa(answer),
		EstimateSeconds: sec.EstimateSeconds,
		Difficulty:      1,
	}
}

func (g *Generator) block() model.PuzzleSpec {
	sec := g.catalog.Block
	blocks := make([]model.Block, sec.Count)
	labels := make([]string, sec.Count)
	for i := 0; i < sec.Count; i++ {
		labels[i] = sec.Labels[i]
		blocks[i] = model.Block{
			Label: sec.Labels[i],
			X:     g.rng.IntN(sec.Grid.W),
			Y:     g.rng.IntN(sec.Grid.H),
		}
	}

	return model.PuzzleSpec{
		Type:   model.PuzzleBlock,
		Prompt: "Visit the blocks in order and enter the labels separated by dashes.",
		Block: &model.BlockGame{
			Grid:   model.GridSize{W: sec.Grid.W, H: sec.Grid.H},
			Blocks: blocks,
		},
		Expected:        strings.Join(labels, "-"),
		EstimateSeconds: sec.EstimateSeconds,
		Difficulty:      1,
	}
}

func (g *Generator) cipher() model.PuzzleSpec {
	sec := g.catalog.Cipher
	plain := strings.ToUpper(sec.Plaintexts[g.rng.IntN(len(sec.Plaintexts))])
	shift := g.between(sec.Shift)

	return model.PuzzleSpec{
		Type:   model.PuzzleCipher,
		Prompt: "Decode the message.",
		Cipher: &model.CipherText{
			Plain:     plain,
			Cipher:    caesar(plain, shift),
			ShiftHint: "A Caesar shift around " + strconv.Itoa(shift),
		},
		Expected:        plain,
		EstimateSeconds: sec.EstimateSeconds,
		Difficulty:      1,
	}
}

func (g *Generator) mcq() model.PuzzleSpec {
	sec := g.catalog.MCQ
	order := g.perm(len(sec.Questions))

	questions := make([]model.MCQQuestion, 0, len(order))
	for _, qi := range order {
		tmpl := sec.Questions[qi]
		correctText := tmpl.Options[tmpl.Answer]

		opts := append([]string(nil), tmpl.Options...)
		shuffle(g.rng, len(opts), func(i, j int) { opts[i], opts[j] = opts[j], opts[i] })

		correct := 0
		for i, o := range opts {
			if o == correctText {
				correct = i
				break
			}
		}
		questions = append(questions, model.MCQQuestion{
			Question:     tmpl.Question,
			Options:      opts,
			CorrectIndex: &correct,
		})
	}

	return model.PuzzleSpec{
		Type:            model.PuzzleMCQ,
		Prompt:          "Answer every question.",
		Questions:       questions,
		EstimateSeconds: sec.EstimateSeconds,
		Difficulty:      1,
	}
}

func (g *Generator) between(r Range) int {
	return r[0] + g.rng.IntN(r[1]-r[0]+1)
}

func (g *Generator) perm(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	shuffle(g.rng, n, func(i, j int) { p[i], p[j] = p[j], p[i] })
	return p
}

// shuffle is Fisher-Yates over an abstract source.
func shuffle(rng RandSource, n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		swap(i, rng.IntN(i+1))
	}
}

func caesar(plain string, shift int) string {
	var b strings.Builder
	for _, ch := range plain {
		if ch >= 'A' && ch <= 'Z' {
			b.WriteRune('A' + (ch-'A'+rune(shift))%26)
		} else {
			b.WriteRune(ch)
		}
	}
	return b.String()
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
