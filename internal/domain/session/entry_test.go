package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/networknext/portal/pkg/errors"
)

func entryAt(id ID, start time.Time) Entry {
	return Entry{SessionID: id, UserHash: 1, StartTime: start, LastUpdate: start}
}

func TestEntry_Validate(t *testing.T) {
	now := time.Now()
	valid := entryAt(1, now)
	assert.NoError(t, valid.Validate())

	cases := map[string]Entry{
		"zero id":        entryAt(0, now),
		"zero start":     entryAt(1, time.Time{}),
		"bad platform":   {SessionID: 1, StartTime: now, Platform: 11},
		"bad connection": {SessionID: 1, StartTime: now, Connection: 4},
	}
	for name, e := range cases {
		err := e.Validate()
		assert.True(t, errors.IsCode(err, errors.ErrCodeSessionMalformed), name)
	}
}

func TestEntry_Improvement(t *testing.T) {
	assert.Equal(t, float32(0), (&Entry{DirectRTT: 80, NextRTT: 50}).Improvement())
	assert.Equal(t, float32(30), (&Entry{DirectRTT: 80, NextRTT: 50, Next: true}).Improvement())
}

func TestMerge(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	a := entryAt(1, base)
	b := entryAt(2, base.Add(time.Minute))
	c := entryAt(3, base.Add(2*time.Minute))
	staleB := b
	staleB.LastUpdate = base
	freshB := b
	freshB.LastUpdate = base.Add(time.Hour)
	freshB.Datacenter = "iad"

	got := Merge(0, []Entry{a, staleB}, []Entry{freshB, c})
	assert.Len(t, got, 3)
	assert.Equal(t, []ID{3, 2, 1}, []ID{got[0].SessionID, got[1].SessionID, got[2].SessionID})
	assert.Equal(t, "iad", got[1].Datacenter)

	assert.Len(t, Merge(2, []Entry{a, b, c}), 2)
	assert.Empty(t, Merge(10))
}

func TestSortByStartDesc_TieBreak(t *testing.T) {
	ts := time.Now()
	entries := []Entry{entryAt(5, ts), entryAt(9, ts), entryAt(7, ts)}
	SortByStartDesc(entries)
	assert.Equal(t, ID(9), entries[0].SessionID)
	assert.Equal(t, ID(5), entries[2].SessionID)
}
