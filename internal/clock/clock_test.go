package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSystemClockIsUTC(t *testing.T) {
	assert.Equal(t, time.UTC, SystemClock{}.Now().Location())
}

func TestFakeClock(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)
	c := NewFakeClock(time.Date(2024, 1, 1, 6, 0, 0, 0, loc))
	assert.Equal(t, time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC), c.Now())

	c.Advance(2 * time.Hour)
	assert.Equal(t, time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC), c.Now())

	c.SetDate(2024, time.March, 15)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), c.Now())
}
