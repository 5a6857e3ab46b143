package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()

	assert.Equal(t, 120, c.Logic.EstimateSeconds)
	assert.Equal(t, 90, c.Code.EstimateSeconds)
	assert.Equal(t, 150, c.Block.EstimateSeconds)
	assert.Equal(t, 60, c.Cipher.EstimateSeconds)
	assert.Equal(t, 60, c.MCQ.EstimateSeconds)
	assert.Equal(t, Range{1, 25}, c.Cipher.Shift)
	assert.Equal(t, GridSpec{W: 4, H: 4}, c.Block.Grid)
}

func TestParseCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"not yaml", "logic: [", "parse catalog"},
		{"empty", "{}", "logic: no templates"},
		{
			name: "bad mcq answer",
			yaml: `
logic: {x: [1,2], y: [1,2], z: [1,2], templates: [{prompt: p, formula: xy_over_z}]}
code: {var_names: [a, b], values: [1,2], templates: [{code: c, op: add}]}
block: {grid: {w: 2, h: 2}, labels: [A], count: 1}
cipher: {plaintexts: [LOCK], shift: [1, 3]}
mcq: {questions: [{q: q, opts: [x], answer: 3}]}
`,
			wantErr: "answer out of range",
		},
		{
			name: "inverted range",
			yaml: `
logic: {x: [5,2], y: [1,2], z: [1,2], templates: [{prompt: p, formula: xy_over_z}]}
code: {var_names: [a, b], values: [1,2], templates: [{code: c, op: add}]}
block: {grid: {w: 2, h: 2}, labels: [A], count: 1}
cipher: {plaintexts: [LOCK], shift: [1, 3]}
mcq: {questions: [{q: q, opts: [x], answer: 0}]}
`,
			wantErr: "inverted",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
