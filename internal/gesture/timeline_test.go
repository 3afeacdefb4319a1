package gesture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimelineEviction(t *testing.T) {
	tl := NewTimeline(0)
	require.Equal(t, DefaultTimelineCapacity, tl.Capacity())

	base := time.Unix(0, 0)
	for i := 0; i < 51; i++ {
		tl.Push(Entry{Timestamp: base.Add(time.Duration(i) * time.Millisecond), Key: i})
	}

	assert.Equal(t, 50, tl.Len())
	entries := tl.Entries()
	require.Len(t, entries, 50)
	for i, e := range entries {
		assert.Equal(t, 50-i, e.Key, "entry %d", i)
	}

	_, ok := tl.MostRecentMatching(0, nil)
	assert.False(t, ok, "oldest entry should be evicted")
}

func TestTimelineMostRecentMatching(t *testing.T) {
	tl := NewTimeline(10)
	base := time.Unix(100, 0)

	tl.Push(Entry{Timestamp: base, Key: 1, Pressed: true})
	tl.Push(Entry{Timestamp: base.Add(time.Second), Key: 1, Pressed: false})
	tl.Push(Entry{Timestamp: base.Add(2 * time.Second), Key: 2, Pressed: true})

	e, ok := tl.MostRecentMatching(1, nil)
	require.True(t, ok)
	assert.False(t, e.Pressed)

	e, ok = tl.MostRecentMatching(1, isPress)
	require.True(t, ok)
	assert.Equal(t, base, e.Timestamp)

	_, ok = tl.MostRecentMatching(0, nil)
	assert.False(t, ok)
}

func TestTimelineEntriesIsCopy(t *testing.T) {
	tl := NewTimeline(3)
	tl.Push(Entry{Key: 1})

	entries := tl.Entries()
	entries[0].Key = 99

	e, ok := tl.MostRecentMatching(1, nil)
	require.True(t, ok)
	assert.Equal(t, 1, e.Key)
}
