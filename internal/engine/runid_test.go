package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewRunID_Format(t *testing.T) {
	at := time.Date(2026, 8, 31, 9, 30, 15, 0, Timezone)
	id := NewRunID(at)

	assert.Regexp(t, `^20260831_093015_[0-9a-f]{4}$`, id)
}

func TestNewRunID_ConvertsToEngineZone(t *testing.T) {
	// 2026-08-31 00:30 UTC is 09:30 in the engine zone.
	at := time.Date(2026, 8, 31, 0, 30, 0, 0, time.UTC)
	id := NewRunID(at)

	assert.Regexp(t, `^20260831_093000_`, id)
}

func TestNewRunID_SuffixVaries(t *testing.T) {
	at := time.Now()
	assert.NotEqual(t, NewRunID(at), NewRunID(at))
}
