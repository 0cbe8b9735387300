package pstree

import (
	"testing"

	"github.com/rileyhilliard/pstop/internal/metrics"
	"github.com/rileyhilliard/pstop/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pids(rows []Row) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = r.PID
	}
	return out
}

func sampleTree(t *testing.T) *Tree {
	t.Helper()
	tr := New()
	_, err := tr.Reconcile([]wire.Process{
		{PID: 1, Name: "init", User: "root", Threads: 1},
		{PID: 20, PPID: 1, Name: "sshd", User: "root", Threads: 2},
		{PID: 21, PPID: 20, Name: "bash", User: "alice", Threads: 1, RSS: 300},
		{PID: 5, PPID: 1, Name: "Cron", User: "root", Threads: 4, RSS: 100},
	}, metrics.Cycle{MemTotal: 1000})
	require.NoError(t, err)
	return tr
}

func TestRows_TreeOrder(t *testing.T) {
	tr := sampleTree(t)

	rows := tr.Rows(SortSpec{})
	assert.Equal(t, []int{1, 20, 21, 5}, pids(rows))
	assert.Equal(t, []int{0, 1, 2, 1}, []int{rows[0].Indent, rows[1].Indent, rows[2].Indent, rows[3].Indent})
	assert.True(t, rows[1].HasChildren)
	assert.False(t, rows[2].HasChildren)
}

func TestRows_CollapsedHidesDescendants(t *testing.T) {
	tr := sampleTree(t)
	require.True(t, tr.SetExpanded(20, false))

	assert.Equal(t, []int{1, 20, 5}, pids(tr.Rows(SortSpec{})))
	assert.Len(t, tr.Snapshot(), 4, "snapshot ignores collapsed state")

	assert.True(t, tr.Toggle(20))
	assert.Equal(t, []int{1, 20, 21, 5}, pids(tr.Rows(SortSpec{})))
	assert.False(t, tr.SetExpanded(404, true))
}

func TestRows_Sorted(t *testing.T) {
	tr := sampleTree(t)

	tests := []struct {
		name  string
		order SortSpec
		want  []int
	}{
		{"pid", SortSpec{Field: SortPID}, []int{1, 5, 20, 21}},
		{"pid reversed", SortSpec{Field: SortPID, Reverse: true}, []int{21, 20, 5, 1}},
		{"name is case-insensitive", SortSpec{Field: SortName}, []int{21, 5, 1, 20}},
		{"threads descending", SortSpec{Field: SortThreads}, []int{5, 20, 1, 21}},
		{"mem descending, ties by pid", SortSpec{Field: SortMem}, []int{21, 5, 1, 20}},
		{"user", SortSpec{Field: SortUser}, []int{21, 1, 5, 20}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := tr.Rows(tt.order)
			assert.Equal(t, tt.want, pids(rows))
			for _, r := range rows {
				assert.Zero(t, r.Indent)
			}
		})
	}
}

func TestSortField_Cycle(t *testing.T) {
	f := SortNone
	seen := map[SortField]bool{}
	for i := 0; i < 6; i++ {
		f = f.Next()
		assert.NotEqual(t, SortNone, f)
		assert.NotEmpty(t, f.Label())
		seen[f] = true
	}
	assert.Len(t, seen, 6)
	assert.Equal(t, SortCPU, f.Next())
	assert.Equal(t, "tree", SortNone.Label())
}

func TestSelection(t *testing.T) {
	tr := sampleTree(t)

	_, ok := tr.Selected()
	assert.False(t, ok)
	assert.False(t, tr.Select(404))

	require.True(t, tr.Select(21))
	r, ok := tr.Selected()
	require.True(t, ok)
	assert.Equal(t, "bash", r.Name)

	tr.ClearSelection()
	_, ok = tr.Selected()
	assert.False(t, ok)
}

func TestGet_ReturnsCopy(t *testing.T) {
	tr := sampleTree(t)
	p, ok := tr.Get(1)
	require.True(t, ok)
	p.Children[0] = 999
	p.Name = "changed"

	again, _ := tr.Get(1)
	assert.Equal(t, "init", again.Name)
	assert.Equal(t, []int{20, 5}, again.Children)
}
