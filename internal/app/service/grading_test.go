package service

import (
	"encoding/json"
	"testing"

	"csi_locks/internal/domain/model"

	"github.com/stretchr/testify/assert"
)

func intPtr(i int) *int { return &i }

func TestGrade(t *testing.T) {
	logic := model.PuzzleSpec{Type: model.PuzzleLogic, Expected: "7.5"}
	code := model.PuzzleSpec{Type: model.PuzzleCode, Expected: "12"}
	cipher := model.PuzzleSpec{Type: model.PuzzleCipher, Expected: "SECRET"}
	block := model.PuzzleSpec{Type: model.PuzzleBlock, Expected: "A-B-C-D"}
	mcq := model.PuzzleSpec{Type: model.PuzzleMCQ, Questions: []model.MCQQuestion{
		{Question: "q1", Options: []string{"a", "b", "c"}, CorrectIndex: intPtr(2)},
		{Question: "q2", Options: []string{"a", "b", "c"}, CorrectIndex: intPtr(0)},
	}}

	tests := []struct {
		name   string
		lock   model.PuzzleSpec
		answer string
		want   bool
	}{
		{"logic number", logic, `7.5`, true},
		{"logic numeric string", logic, `" 7.5 "`, true},
		{"logic wrong", logic, `7`, false},
		{"logic not a number", logic, `"seven"`, false},
		{"code integer", code, `12`, true},
		{"code float form", code, `12.0`, true},
		{"code wrong", code, `13`, false},
		{"code object", code, `{"v":12}`, false},
		{"cipher exact", cipher, `"SECRET"`, true},
		{"cipher lower case", cipher, `"secret"`, true},
		{"cipher wrong", cipher, `"SECRETS"`, false},
		{"block exact", block, `"A-B-C-D"`, true},
		{"block lower case", block, `"a-b-c-d"`, false},
		{"block spaces", block, `"A - B - C - D"`, false},
		{"mcq all correct", mcq, `[2, 0]`, true},
		{"mcq one wrong", mcq, `[2, 1]`, false},
		{"mcq too short", mcq, `[2]`, false},
		{"mcq too long", mcq, `[2, 0, 1]`, false},
		{"mcq single number first question", mcq, `2`, true},
		{"mcq single number wrong", mcq, `0`, false},
		{"mcq string entries", mcq, `["2", "0"]`, false},
		{"null", logic, `null`, false},
		{"invalid json", logic, `{`, false},
		{"unknown type", model.PuzzleSpec{Type: "maze", Expected: "1"}, `1`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Grade(tt.lock, json.RawMessage(tt.answer)))
		})
	}
}

func TestGrade_MCQWithoutTruth(t *testing.T) {
	lock := model.PuzzleSpec{Type: model.PuzzleMCQ, Questions: []model.MCQQuestion{{Question: "q", Options: []string{"a"}}}}
	assert.False(t, Grade(lock, json.RawMessage(`[0]`)))
	assert.False(t, Grade(lock, json.RawMessage(`0`)))
}
