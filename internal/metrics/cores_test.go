package metrics

import (
	"testing"

	"github.com/rileyhilliard/pstop/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoreTracker_FirstSampleIsBaseline(t *testing.T) {
	tr := NewCoreTracker()

	updated := tr.Update([]wire.CoreSample{{No: 0, User: 10, Idle: 90}})
	assert.Empty(t, updated)
	assert.Empty(t, tr.Usage())
	assert.Equal(t, 1, tr.Count())
}

func TestCoreTracker_Delta(t *testing.T) {
	tr := NewCoreTracker()
	tr.Update([]wire.CoreSample{
		{No: 1, User: 0, Idle: 100},
		{No: 0, User: 10, System: 0, Idle: 90},
	})

	updated := tr.Update([]wire.CoreSample{
		{No: 0, User: 40, System: 10, Idle: 150},
		{No: 1, User: 0, Idle: 200},
	})
	require.Len(t, updated, 2)

	usage := tr.Usage()
	require.Len(t, usage, 2)
	assert.Equal(t, 0, usage[0].No)
	// 100 ticks elapsed: 30 user, 10 system, 60 idle.
	assert.InDelta(t, 30.0, usage[0].UserPct, 1e-9)
	assert.InDelta(t, 40.0, usage[0].BusyPct, 1e-9)
	assert.Equal(t, 1, usage[1].No)
	assert.Zero(t, usage[1].UserPct)
}

func TestCoreTracker_StaleSampleIgnored(t *testing.T) {
	tr := NewCoreTracker()
	tr.Update([]wire.CoreSample{{No: 0, User: 10, Idle: 90}})
	tr.Update([]wire.CoreSample{{No: 0, User: 60, Idle: 140}})

	// A late response carrying older counters must not move the baseline.
	updated := tr.Update([]wire.CoreSample{{No: 0, User: 30, Idle: 120}})
	assert.Empty(t, updated)

	tr.Update([]wire.CoreSample{{No: 0, User: 110, Idle: 190}})
	usage := tr.Usage()
	require.Len(t, usage, 1)
	assert.InDelta(t, 50.0, usage[0].UserPct, 1e-9)
}

func TestCoreTracker_NoElapsedTicks(t *testing.T) {
	tr := NewCoreTracker()
	s := wire.CoreSample{No: 0, User: 10, Idle: 90}
	tr.Update([]wire.CoreSample{s})

	updated := tr.Update([]wire.CoreSample{s})
	require.Len(t, updated, 1)
	assert.Zero(t, updated[0].UserPct)
	assert.Zero(t, updated[0].BusyPct)
}
