package generator

import (
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"csi_locks/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC)

func seeded(seed uint64) *Generator {
	n := 0
	newID := func() string {
		n++
		return "bundle-" + strconv.Itoa(n)
	}
	return New(DefaultCatalog(), rand.New(rand.NewPCG(seed, seed+1)), newID, func() time.Time { return fixedNow })
}

func TestGenerate_BundleShape(t *testing.T) {
	g := seeded(1)

	for i := 0; i < 50; i++ {
		b := g.Generate("team-a")

		require.Len(t, b.Locks, model.BundleSize)
		assert.Equal(t, "team-a", b.TeamID)
		assert.Equal(t, 5, b.Difficulty)
		assert.Equal(t, fixedNow, b.CreatedAt)

		seen := map[model.PuzzleType]bool{}
		for idx, l := range b.Locks {
			assert.Equal(t, idx, l.LockIndex)
			assert.Equal(t, 1, l.Difficulty)
			assert.Positive(t, l.EstimateSeconds)
			seen[l.Type] = true
		}
		for _, typ := range model.AllPuzzleTypes {
			assert.True(t, seen[typ], "missing %s", typ)
		}
	}
}

func TestGenerate_OrderIsRandomized(t *testing.T) {
	g := seeded(7)

	orders := map[string]bool{}
	for i := 0; i < 40; i++ {
		b := g.Generate("team")
		var sb strings.Builder
		for _, l := range b.Locks {
			sb.WriteString(string(l.Type) + ",")
		}
		orders[sb.String()] = true
	}
	assert.Greater(t, len(orders), 1)
}

func TestGenerate_SeededIsReproducible(t *testing.T) {
	a := seeded(99).Generate("team")
	b := seeded(99).Generate("team")
	assert.Equal(t, a, b)
}

func TestGenerate_ExpectedAnswersMatchPrompts(t *testing.T) {
	g := seeded(3)
	numbers := regexp.MustCompile(`\d+`)

	for i := 0; i < 100; i++ {
		b := g.Generate("team")
		for _, l := range b.Locks {
			switch l.Type {
			case model.PuzzleLogic:
				_, err := strconv.ParseFloat(l.Expected, 64)
				assert.NoError(t, err)
				assert.Len(t, numbers.FindAllString(l.Prompt, -1), 3)

			case model.PuzzleCode:
				got, err := strconv.Atoi(l.Expected)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, got, 4)
				assert.NotContains(t, l.Code, "{")
				if strings.HasPrefix(l.Code, "let ") {
					// two declarations must use different names
					decl := regexp.MustCompile(`let (\w+) =`).FindAllStringSubmatch(l.Code, -1)
					require.Len(t, decl, 2)
					assert.NotEqual(t, decl[0][1], decl[1][1])
				}

			case model.PuzzleBlock:
				require.NotNil(t, l.Block)
				assert.Equal(t, "A-B-C-D", l.Expected)
				assert.Len(t, l.Block.Blocks, 4)
				for _, blk := range l.Block.Blocks {
					assert.GreaterOrEqual(t, blk.X, 0)
					assert.Less(t, blk.X, l.Block.Grid.W)
					assert.GreaterOrEqual(t, blk.Y, 0)
					assert.Less(t, blk.Y, l.Block.Grid.H)
				}

			case model.PuzzleCipher:
				require.NotNil(t, l.Cipher)
				assert.Contains(t, []string{"SECRET", "PUZZLE", "CIPHER", "LOCK"}, l.Expected)
				assert.Equal(t, l.Expected, l.Cipher.Plain)
				assert.NotEqual(t, l.Cipher.Plain, l.Cipher.Cipher)
				shift, err := strconv.Atoi(strings.TrimPrefix(l.Cipher.ShiftHint, "A Caesar shift around "))
				require.NoError(t, err)
				assert.Equal(t, l.Cipher.Cipher, caesar(l.Cipher.Plain, shift))

			case model.PuzzleMCQ:
				require.Len(t, l.Questions, 2)
				for _, q := range l.Questions {
					require.NotNil(t, q.CorrectIndex)
					assert.Len(t, q.Options, 3)
					assert.Contains(t, []string{"HyperText Transfer Protocol", "CSS"}, q.Options[*q.CorrectIndex])
				}
			}
		}
	}
}

func TestCaesar(t *testing.T) {
	tests := []struct {
		plain string
		shift int
		want  string
	}{
		{"LOCK", 1, "MPDL"},
		{"XYZ", 3, "ABC"},
		{"SECRET", 25, "RDBQDS"},
		{"A-B", 1, "B-C"},
	}
	for _, tt := range tests {
		t.Run(tt.plain, func(t *testing.T) {
			assert.Equal(t, tt.want, caesar(tt.plain, tt.shift))
		})
	}
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "6", formatNumber(6))
	assert.Equal(t, "2.5", formatNumber(2.5))
}
