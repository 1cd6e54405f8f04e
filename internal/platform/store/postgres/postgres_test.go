package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWhere(t *testing.T) {
	w, args := where("", "")
	assert.Empty(t, w)
	assert.Empty(t, args)

	w, args = where("u1", "")
	assert.Equal(t, " WHERE user_id=$1", w)
	assert.Equal(t, []any{"u1"}, args)

	w, args = where("u1", "pending")
	assert.Equal(t, " WHERE user_id=$1 AND status=$2", w)
	assert.Equal(t, []any{"u1", "pending"}, args)

	w, args = where("", "open")
	assert.Equal(t, " WHERE status=$1", w)
	assert.Equal(t, []any{"open"}, args)
}

func TestLimitClause(t *testing.T) {
	assert.Empty(t, limitClause(0))
	assert.Empty(t, limitClause(-3))
	assert.Equal(t, " LIMIT 50", limitClause(50))
}

func TestNullTimeRoundTrip(t *testing.T) {
	assert.False(t, nullTime(nil).Valid)
	assert.Nil(t, timePtr(nullTime(nil)))

	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	got := timePtr(nullTime(&now))
	if assert.NotNil(t, got) {
		assert.True(t, now.Equal(*got))
	}
}
