package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectDaysSpreadsAcrossLeastLoaded(t *testing.T) {
	var load dayLoad

	assert.Equal(t, []int{0, 1, 2}, selectDays(3, &load))
	assert.Equal(t, dayLoad{1, 1, 1, 0, 0, 0}, load)

	assert.Equal(t, []int{3, 4}, selectDays(2, &load))
	assert.Equal(t, dayLoad{1, 1, 1, 1, 1, 0}, load)
}

func TestSelectDaysTiesGoToEarlierDay(t *testing.T) {
	load := dayLoad{2, 1, 1, 0, 0, 3}
	assert.Equal(t, []int{3, 4}, selectDays(2, &load))
}

func TestSelectDaysDistinctUpToSix(t *testing.T) {
	var load dayLoad
	days := selectDays(6, &load)

	seen := make(map[int]bool)
	for _, d := range days {
		assert.False(t, seen[d], "day %d picked twice", d)
		seen[d] = true
	}
	assert.Len(t, seen, 6)
}

func TestSelectDaysRepeatsBeyondSix(t *testing.T) {
	var load dayLoad
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 0, 1}, selectDays(8, &load))
	assert.Equal(t, dayLoad{2, 2, 1, 1, 1, 1}, load)
}

func TestSelectDaysZeroFrequency(t *testing.T) {
	var load dayLoad
	assert.Empty(t, selectDays(0, &load))
	assert.Equal(t, dayLoad{}, load)
}
