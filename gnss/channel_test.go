package gnss

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// shortFirstSource returns fewer samples than requested on its first call
// (simulating transient upstream starvation, §7), then satisfies requests
// in full from the remainder of data.
type shortFirstSource struct {
	data  []complex64
	pos   int
	calls int
}

func (s *shortFirstSource) Next(n int) ([]complex64, error) {
	s.calls++
	avail := len(s.data) - s.pos
	if avail <= 0 {
		return nil, nil
	}
	want := n
	if s.calls == 1 {
		want = n / 2
		if want == 0 {
			want = 1
		}
	}
	if want > avail {
		want = avail
	}
	out := s.data[s.pos : s.pos+want]
	s.pos += want
	return out, nil
}

func TestChannelAcquiresThenTransitionsToTracking(t *testing.T) {
	codeMap := NewCodePhaseMap()
	ch, err := NewChannel(1, 1, s1Params(), trkParams(), codeMap)
	require.NoError(t, err)

	ch.Activate()
	require.Equal(t, StageAcquiring, ch.Stage())
	require.Equal(t, 2048, ch.RequiredBlockLen())

	signal := buildAcqSignal(1, s1Params(), 317, 1500, 1.0)
	consumed, recs, msgs, err := ch.Process(signal)
	require.NoError(t, err)
	require.Equal(t, len(signal), consumed)
	require.Nil(t, recs)
	require.Len(t, msgs, 1)
	require.Equal(t, AcqSuccess, msgs[0].Kind)
	require.Equal(t, 1, msgs[0].Channel)

	require.Equal(t, StageTracking, ch.Stage())

	entry, ok := codeMap.Get(1)
	require.True(t, ok)
	require.Equal(t, 317.0, entry.CodePhase)
}

func TestChannelAcquisitionFailureStaysAcquiring(t *testing.T) {
	codeMap := NewCodePhaseMap()
	params := s1Params()
	params.Threshold = 1e6 // unreachable, forces NEGATIVE
	ch, err := NewChannel(2, 5, params, trkParams(), codeMap)
	require.NoError(t, err)
	ch.Activate()

	signal := buildAcqSignal(5, params, 100, 0, 1.0)
	_, _, msgs, err := ch.Process(signal)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, AcqFail, msgs[0].Kind)
	require.Equal(t, StageAcquiring, ch.Stage())
}

func TestChannelStopTransitionsToStopped(t *testing.T) {
	codeMap := NewCodePhaseMap()
	ch, err := NewChannel(3, 1, s1Params(), trkParams(), codeMap)
	require.NoError(t, err)
	ch.Activate()
	ch.Stop()
	require.Equal(t, StageStopped, ch.Stage())
	require.Equal(t, 0, ch.RequiredBlockLen())
}

// TestChannelRunBuffersPartialReads exercises §7's "consume whatever is
// available and wait" starvation handling: a source that returns a short
// first read must still be combined into one full block for Dwell, not
// rejected as ErrFFTSizeMismatch.
func TestChannelRunBuffersPartialReads(t *testing.T) {
	codeMap := NewCodePhaseMap()
	ch, err := NewChannel(1, 1, s1Params(), trkParams(), codeMap)
	require.NoError(t, err)
	ch.Activate()

	signal := buildAcqSignal(1, s1Params(), 317, 1500, 1.0)
	src := &shortFirstSource{data: signal}

	recs := make(chan SyncRecord, 8)
	msgs := make(chan ControlMsg, 8)
	done := make(chan struct{})
	go func() {
		ch.Run(src, recs, msgs)
		close(done)
	}()

	select {
	case m := <-msgs:
		require.Equal(t, AcqSuccess, m.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for AcqSuccess")
	}
	require.GreaterOrEqual(t, src.calls, 2, "expected the short first read to force a second Next call")

	ch.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Run to observe StageStopped")
	}
}

func TestCodePhaseMapGetMissingReturnsFalse(t *testing.T) {
	m := NewCodePhaseMap()
	_, ok := m.Get(99)
	require.False(t, ok)
	m.Set(99, 42.0, 7)
	entry, ok := m.Get(99)
	require.True(t, ok)
	require.Equal(t, 42.0, entry.CodePhase)
	require.Equal(t, uint64(7), entry.SampleStamp)
}
