package service

import (
	"encoding/json"
	"strconv"
	"strings"

	"csi_locks/internal/domain/model"
)

// Grade checks answer against the lock's embedded truth. answer is the raw
// JSON the client submitted; anything of the wrong shape grades as incorrect.
func Grade(lock model.PuzzleSpec, answer json.RawMessage) bool {
	var v any
	if err := json.Unmarshal(answer, &v); err != nil {
		return false
	}

	switch lock.Type {
	case model.PuzzleLogic, model.PuzzleCode:
		got, ok := toNumber(v)
		if !ok {
			return false
		}
		want, err := strconv.ParseFloat(lock.Expected, 64)
		return err == nil && got == want

	case model.PuzzleCipher:
		got, ok := toText(v)
		return ok && strings.ToUpper(got) == strings.ToUpper(lock.Expected)

	case model.PuzzleBlock:
		got, ok := toText(v)
		return ok && got == lock.Expected

	case model.PuzzleMCQ:
		return gradeMCQ(lock.Questions, v)
	}
	return false
}

// gradeMCQ accepts either the full index list or, for single-question
// polls, one bare index compared with the first question.
func gradeMCQ(questions []model.MCQQuestion, v any) bool {
	switch ans := v.(type) {
	case []any:
		if len(ans) != len(questions) {
			return false
		}
		for i, q := range questions {
			n, ok := ans[i].(float64)
			if !ok || q.CorrectIndex == nil || n != float64(*q.CorrectIndex) {
				return false
			}
		}
		return true
	case float64:
		return len(questions) > 0 && questions[0].CorrectIndex != nil && ans == float64(*questions[0].CorrectIndex)
	}
	return false
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func toText(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		return strconv.FormatFloat(s, 'g', -1, 64), true
	}
	return "", false
}
