package id

import (
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsSortable(t *testing.T) {
	ids := make([]string, 100)
	for i := range ids {
		ids[i] = New()
	}
	assert.True(t, sort.StringsAreSorted(ids))

	seen := map[string]bool{}
	for _, s := range ids {
		assert.False(t, seen[s], "duplicate %s", s)
		seen[s] = true
	}
}

func TestAtCarriesTimestamp(t *testing.T) {
	ts := time.Date(2000, 1, 3, 0, 0, 0, 0, time.UTC)
	u, err := ulid.Parse(At(ts))
	require.NoError(t, err)
	assert.Equal(t, ts, ulid.Time(u.Time()).UTC())
}

func TestRun(t *testing.T) {
	r := Run("turtle")
	assert.True(t, strings.HasPrefix(r, "turtle-"))
	_, err := ulid.Parse(strings.TrimPrefix(r, "turtle-"))
	assert.NoError(t, err)

	assert.True(t, strings.HasPrefix(Run(""), "run-"))
}
