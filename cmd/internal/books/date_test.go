package books

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate_JSON(t *testing.T) {
	b := Book{ID: 1, Title: "T", PublishedDate: NewDate(2001, time.September, 9)}
	raw, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"published_date":"2001-09-09"`)

	var back Book
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, b, back)
}

func TestDate_RejectsBadInput(t *testing.T) {
	var d Date
	assert.Error(t, json.Unmarshal([]byte(`"09/09/2001"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`20010909`), &d))
	assert.True(t, d.IsZero())
}

func TestDateOf_DropsClock(t *testing.T) {
	d := DateOf(time.Date(1999, time.December, 31, 23, 59, 0, 0, time.UTC))
	assert.Equal(t, "1999-12-31", d.String())
	assert.Equal(t, NewDate(1999, time.December, 31), d)
}
