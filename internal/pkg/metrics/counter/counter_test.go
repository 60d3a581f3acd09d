package counter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIncrementsSkipsInvalidEntries(t *testing.T) {
	pairs := parseIncrements(map[string]string{
		"12":  "3",
		"4":   "1",
		"abc": "2",
		"7":   "x",
		"9":   "0",
	})

	require.Len(t, pairs, 2)
	assert.Equal(t, increment{id: 4, inc: 1}, pairs[0])
	assert.Equal(t, increment{id: 12, inc: 3}, pairs[1])
}

func TestBuildIncrementSQL(t *testing.T) {
	sql, args := buildIncrementSQL("calendar_accounts", "fetch_count", []increment{{id: 1, inc: 2}, {id: 5, inc: 1}})

	assert.Equal(t, "UPDATE calendar_accounts SET fetch_count = fetch_count + CASE id WHEN ? THEN ? WHEN ? THEN ? END WHERE id IN (?,?)", sql)
	assert.Equal(t, []interface{}{uint64(1), int64(2), uint64(5), int64(1), uint64(1), uint64(5)}, args)
}

func TestRecorderSwallowsCacheErrors(t *testing.T) {
	assert.NotPanics(t, func() {
		Recorder{}.RecordFetch(3, errors.New("boom"))
	})
}
