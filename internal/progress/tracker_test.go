package progress

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerAdvanceAndPercent(t *testing.T) {
	reg := NewRegistry(time.Hour, nil)
	tr := reg.Start("import", "Memproses...", 3, nil)

	tr.Advance("Memproses Ahmad (1/3)", false)
	snap := tr.Snapshot()
	assert.Equal(t, "import", snap.Kind)
	assert.Equal(t, 1, snap.Processed)
	assert.Equal(t, 33, snap.Percent)
	assert.False(t, snap.Complete)

	tr.Advance("Memproses Budi (2/3)", true)
	snap = tr.Snapshot()
	assert.Equal(t, 67, snap.Percent)
	assert.Equal(t, 1, snap.Successes)
	assert.Equal(t, 1, snap.Errors)

	tr.Advance("", false)
	snap = tr.Snapshot()
	assert.Equal(t, 100, snap.Percent)
	assert.True(t, snap.Complete)
	assert.Equal(t, "Completed", snap.Label)
}

func TestTrackerProcessedDoesNotExceedTotal(t *testing.T) {
	reg := NewRegistry(time.Hour, nil)
	tr := reg.Start("import", "start", 1, nil)

	tr.Advance("", false)
	tr.Advance("", false)
	snap := tr.Snapshot()
	assert.Equal(t, 1, snap.Processed)
	assert.Equal(t, 100, snap.Percent)
}

func TestTrackerAutoDismissFiresOnceAndRemoves(t *testing.T) {
	var closed atomic.Int32
	reg := NewRegistry(20*time.Millisecond, nil)
	tr := reg.Start("import", "start", 1, func() { closed.Add(1) })
	id := tr.Snapshot().OperationID

	tr.Advance("", false)

	require.Eventually(t, func() bool {
		_, ok := reg.Get(id)
		return !ok
	}, time.Second, 5*time.Millisecond)

	// Manual close after auto-dismiss must not fire the callback again.
	tr.Close()
	assert.Equal(t, int32(1), closed.Load())
}

func TestTrackerManualCloseBeforeTimer(t *testing.T) {
	var closed atomic.Int32
	reg := NewRegistry(time.Hour, nil)
	tr := reg.Start("import", "start", 1, func() { closed.Add(1) })
	id := tr.Snapshot().OperationID

	tr.Advance("", false)
	tr.Close()
	tr.Close()

	assert.Equal(t, int32(1), closed.Load())
	_, ok := reg.Get(id)
	assert.False(t, ok)
	assert.True(t, tr.Snapshot().Dismissed)
}

func TestRegistryCloseDismissesAll(t *testing.T) {
	var closed atomic.Int32
	reg := NewRegistry(time.Hour, nil)
	a := reg.Start("import", "start", 1, func() { closed.Add(1) })
	b := reg.Start("delete", "start", 1, func() { closed.Add(1) })

	reg.Close()

	assert.Equal(t, int32(2), closed.Load())
	assert.True(t, a.Snapshot().Dismissed)
	assert.True(t, b.Snapshot().Dismissed)
}

func TestTrackerCompleteAborts(t *testing.T) {
	reg := NewRegistry(time.Hour, nil)
	tr := reg.Start("import", "start", 10, nil)

	tr.Advance("", false)
	tr.AddErrors(9)
	tr.Complete()

	snap := tr.Snapshot()
	assert.True(t, snap.Complete)
	assert.Equal(t, 9, snap.Errors)
	assert.Zero(t, snap.Successes)
	assert.Equal(t, "Completed", snap.Label)
}
