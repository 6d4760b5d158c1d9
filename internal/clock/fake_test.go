package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClockAdvance(t *testing.T) {
	start := time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)
	c := NewFakeClock(start)
	c.Advance(90 * time.Minute)
	assert.Equal(t, start.Add(90*time.Minute), c.Now())
}

func TestSystemClockIsUTC(t *testing.T) {
	assert.Equal(t, time.UTC, System{}.Now().Location())
}
