package geolocate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stuartshay/gobebop/internal/calculator"
)

type pending struct {
	d  time.Duration
	fn func()
}

type recordingScheduler struct {
	calls []pending
}

func (r *recordingScheduler) After(d time.Duration, fn func()) {
	r.calls = append(r.calls, pending{d, fn})
}

func (r *recordingScheduler) runAll() {
	calls := r.calls
	r.calls = nil
	for _, c := range calls {
		c.fn()
	}
}

func TestToggle(t *testing.T) {
	sched := &recordingScheduler{}

	tr := NewTracker(sched, true)
	assert.True(t, tr.Toggle())
	assert.True(t, tr.State().Clicked)

	unsupported := NewTracker(sched, false)
	assert.False(t, unsupported.Toggle())
	assert.False(t, unsupported.State().Clicked)
	assert.Equal(t, PermissionDenied, unsupported.State().Permission)
}

func TestFoundAndEnded(t *testing.T) {
	tr := NewTracker(&recordingScheduler{}, true)
	_, ok := tr.LastKnown()
	assert.False(t, ok)
	assert.Nil(t, tr.LastKnownPtr())

	tr.Found(calculator.NewPoint(52.37, 4.90))
	assert.True(t, tr.State().Tracking)
	pos, ok := tr.LastKnown()
	require.True(t, ok)
	assert.InDelta(t, 52.37, pos.Lat(), 1e-9)
	assert.InDelta(t, 4.90, pos.Lon(), 1e-9)

	tr.Ended()
	assert.False(t, tr.State().Tracking)
	_, ok = tr.LastKnown()
	assert.True(t, ok, "last position survives the end of tracking")
}

func TestFailed(t *testing.T) {
	tests := []struct {
		name          string
		code          int
		wantAvailable bool
		wantFlash     time.Duration
	}{
		{"permission denied", CodePermissionDenied, false, 2 * time.Second},
		{"position unavailable", CodePositionUnavailable, true, 3 * time.Second},
		{"timeout", CodeTimeout, true, 3 * time.Second},
		{"unknown", 99, true, 3 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched := &recordingScheduler{}
			tr := NewTracker(sched, true)
			tr.Found(calculator.NewPoint(52.37, 4.90))

			tr.Failed(tt.code, "boom")
			st := tr.State()
			assert.False(t, st.Tracking)
			assert.True(t, st.Error)
			assert.Equal(t, tt.wantAvailable, st.Available)
			require.Len(t, sched.calls, 1)
			assert.Equal(t, tt.wantFlash, sched.calls[0].d)

			sched.runAll()
			assert.False(t, tr.State().Error)
			assert.Equal(t, tt.wantAvailable, tr.State().Available, "denial is permanent")
		})
	}
}

func TestFailed_LaterErrorExtendsFlash(t *testing.T) {
	sched := &recordingScheduler{}
	tr := NewTracker(sched, true)

	tr.Failed(CodeTimeout, "slow")
	first := sched.calls[0]
	tr.Failed(CodePositionUnavailable, "gone")

	first.fn()
	assert.True(t, tr.State().Error, "stale timer must not clear the newer flash")
	sched.calls[1].fn()
	assert.False(t, tr.State().Error)
}

func TestPermissionChanged(t *testing.T) {
	tr := NewTracker(&recordingScheduler{}, true)
	tr.Found(calculator.NewPoint(0, 0))

	tr.PermissionChanged(PermissionDenied)
	assert.False(t, tr.State().Available)
	assert.False(t, tr.State().Tracking)
	assert.False(t, tr.Toggle())

	tr.PermissionChanged(PermissionGranted)
	assert.True(t, tr.State().Available)
	assert.Equal(t, PermissionGranted, tr.State().Permission)
	assert.True(t, tr.Toggle())
}

func TestPermissionChanged_Unsupported(t *testing.T) {
	tr := NewTracker(&recordingScheduler{}, false)

	tr.PermissionChanged(PermissionGranted)
	assert.False(t, tr.State().Available)
	assert.Equal(t, PermissionDenied, tr.State().Permission)
	assert.False(t, tr.Toggle())
}
