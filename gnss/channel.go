/*------------------------------------------------------------------------------
* channel.go : per-channel state machine and controller (design component 4.H)
*
* sequences ACQ -> TRK -> loss-of-lock -> re-ACQ via an internal message
* queue and the shared synchronization record. Modeled on gnssgo/rtksvr.go's
* worker-goroutine shape (go rtksvrthread(svr), svr.Lock, svr.Wg) and the
* "Global mutable map" redesign flag: CodePhaseMap replaces a package-level
* global with an explicitly-owned, mutex-guarded map threaded through the
* controller. Each channel carries a github.com/google/uuid session id, the
* way madpsy-ka9q_ubersdr tags sessions; the code-phase map and dump paths
* do not include it.
*-----------------------------------------------------------------------------*/
package gnss

import (
	"sync"

	"github.com/google/uuid"

	"gnsscore/internal/trace"
)

// CodePhaseEntry is one diagnostics entry in the process-wide code-phase map.
type CodePhaseEntry struct {
	CodePhase   float64
	SampleStamp uint64
}

// CodePhaseMap is the explicitly-owned, mutex-guarded PRN -> code-phase
// map of the Design Notes' "Global mutable map" redesign: written only
// from control-message dispatchers (never the hot correlation loop, §5).
type CodePhaseMap struct {
	mu sync.Mutex
	m  map[int]CodePhaseEntry
}

// NewCodePhaseMap returns an empty code-phase map.
func NewCodePhaseMap() *CodePhaseMap {
	return &CodePhaseMap{m: make(map[int]CodePhaseEntry)}
}

// Set records the latest acquired code phase for prn.
func (c *CodePhaseMap) Set(prn int, codePhase float64, sampleStamp uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[prn] = CodePhaseEntry{CodePhase: codePhase, SampleStamp: sampleStamp}
}

// Get returns the last recorded code phase for prn, if any.
func (c *CodePhaseMap) Get(prn int) (CodePhaseEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[prn]
	return e, ok
}

// ChannelStage is the channel controller's high-level stage, distinct from
// AcqState (which only describes the acquisition engine's own dwell state).
type ChannelStage int

const (
	StageAcquiring ChannelStage = iota
	StageTracking
	StageStopped
)

// SampleSource supplies n complex baseband samples per call. Implementations
// may return fewer than n if the upstream source is momentarily starved
// (spec §7: "transient sample starvation causes the engine to consume
// whatever is available and wait") but must not return zero samples and a
// nil error together.
type SampleSource interface {
	Next(n int) ([]complex64, error)
}

// Channel is the per-PRN state machine of spec §4.H: it owns one
// acquisition engine and one tracking engine, sharing one SyncRecord and
// an internal message queue.
type Channel struct {
	ID      int
	PRN     int
	Session string /* per-channel uuid tag, set once at construction */

	stage ChannelStage

	acq *AcquisitionEngine
	trk *TrackingEngine

	sync SyncRecord

	codeMap *CodePhaseMap

	sampleCounter   uint64
	pullInRemaining int

	pending []complex64 /* partial block accumulated across short Next() reads, §7 */
}

// NewChannel builds a channel for one PRN with fresh acquisition and
// tracking engines. Allocation failure here is fatal per §7.
func NewChannel(id, prn int, acqParams AcquisitionParams, trkParams TrackingParams, codeMap *CodePhaseMap) (*Channel, error) {
	acq, err := NewAcquisitionEngine(prn, acqParams)
	if err != nil {
		return nil, err
	}
	trk, err := NewTrackingEngine(prn, trkParams)
	if err != nil {
		return nil, err
	}
	return &Channel{
		ID:      id,
		PRN:     prn,
		Session: uuid.NewString(),
		stage:   StageAcquiring,
		acq:     acq,
		trk:     trk,
		codeMap: codeMap,
		sync:    SyncRecord{System: "GPS", Signal: "1C", PRN: prn},
	}, nil
}

// Stage returns the channel's current high-level stage.
func (c *Channel) Stage() ChannelStage { return c.stage }

// SetDumper attaches (or detaches, with nil) this channel's dump writer,
// covering both the tracking diagnostics stream and the acquisition |IFFT|^2
// grid dump (spec §6).
func (c *Channel) SetDumper(d *Dumper) {
	c.trk.SetDumper(d)
	c.acq.SetDumper(d)
}

// RequiredBlockLen returns how many samples the caller must supply to the
// next Process call.
func (c *Channel) RequiredBlockLen() int {
	switch c.stage {
	case StageAcquiring:
		return c.acq.fft.Size()
	case StageTracking:
		if c.pullInRemaining > 0 {
			return c.pullInRemaining
		}
		return c.trk.BlockLength()
	default:
		return 0
	}
}

// Activate starts (or restarts) acquisition for this channel's PRN,
// transitioning IDLE -> DWELL (spec §4.F).
func (c *Channel) Activate() {
	c.acq.Start()
	c.stage = StageAcquiring
}

// Process runs one cooperative step of this channel's current stage over
// in (spec Design Notes: "process(in_block) -> (consumed, out_records,
// control_msgs)"). The returned consumed count is len(in), including when
// an error is returned, except during tracking pull-in (at most the
// remaining pull-in samples) and once stopped (0).
func (c *Channel) Process(in []complex64) (consumed int, recs []SyncRecord, msgs []ControlMsg, err error) {
	switch c.stage {
	case StageAcquiring:
		return c.processAcquiring(in)
	case StageTracking:
		return c.processTracking(in)
	default:
		return 0, nil, nil, nil
	}
}

func (c *Channel) processAcquiring(in []complex64) (int, []SyncRecord, []ControlMsg, error) {
	if c.acq.State() != AcqDwell {
		c.acq.Start()
	}
	result, done, err := c.acq.Dwell(in, c.sampleCounter)
	c.sampleCounter += uint64(len(in))
	if err != nil {
		return len(in), nil, nil, err
	}
	if !done {
		return len(in), nil, nil, nil
	}

	var msgs []ControlMsg
	if result.Positive {
		c.codeMap.Set(c.PRN, result.DelaySamples, result.SampleStampSamples)
		c.sync.AcqDelaySamples = result.DelaySamples
		c.sync.AcqDopplerHz = result.DopplerHz
		c.sync.AcqSampleStampSamples = result.SampleStampSamples
		msgs = append(msgs, ControlMsg{Kind: AcqSuccess, Channel: c.ID})

		c.acq.Reset()
		c.pullInRemaining = c.trk.StartTracking(result.DelaySamples, result.DopplerHz, result.SampleStampSamples, c.sampleCounter)
		c.stage = StageTracking
	} else {
		msgs = append(msgs, ControlMsg{Kind: AcqFail, Channel: c.ID})
		c.acq.Reset()
	}
	return len(in), nil, msgs, nil
}

func (c *Channel) processTracking(in []complex64) (int, []SyncRecord, []ControlMsg, error) {
	if c.pullInRemaining > 0 {
		n := c.pullInRemaining
		if n > len(in) {
			n = len(in)
		}
		c.pullInRemaining -= n
		c.sampleCounter += uint64(n)
		return n, nil, nil, nil
	}

	rec, msgs, err := c.trk.Step(in, c.ID)
	c.sampleCounter += uint64(len(in))
	if err != nil {
		return len(in), nil, nil, err
	}
	rec.AcqDelaySamples = c.sync.AcqDelaySamples
	rec.AcqDopplerHz = c.sync.AcqDopplerHz
	rec.AcqSampleStampSamples = c.sync.AcqSampleStampSamples
	c.sync = rec

	for _, m := range msgs {
		if m.Kind == LossOfLock {
			c.stage = StageAcquiring
			trace.Tracef(2, "gnss: channel %d prn=%d: loss of lock, returning to acquisition\n", c.ID, c.PRN)
		}
	}
	return len(in), []SyncRecord{rec}, msgs, nil
}

// Stop disables tracking and moves the channel to StageStopped at once
// (spec §5 "Cancellation & timeouts"): safe to call from any goroutine.
// No control message is posted; later Process calls do nothing and Run
// returns at its next loop check.
func (c *Channel) Stop() {
	c.trk.Stop()
	c.stage = StageStopped
}

// SyncSnapshot returns a copy of the channel's shared synchronization record.
func (c *Channel) SyncSnapshot() SyncRecord { return c.sync }

// Run drives this channel to completion against src, delivering
// synchronization records to recs and control messages to msgs, until the
// channel reaches StageStopped or src returns an error. Intended to be
// launched with `go ch.Run(...)`, one goroutine per channel, mirroring
// gnssgo/rtksvr.go's `go rtksvrthread(svr)` worker-per-server pattern
// (spec §5: "Multiple channels run on independent worker threads").
func (c *Channel) Run(src SampleSource, recs chan<- SyncRecord, msgs chan<- ControlMsg) {
	for c.stage != StageStopped {
		n := c.RequiredBlockLen()
		if n == 0 {
			return
		}
		need := n - len(c.pending)
		block, err := src.Next(need)
		if err != nil {
			trace.Warnf("gnss: channel %d prn=%d: sample source error: %v\n", c.ID, c.PRN, err)
			return
		}
		if len(block) == 0 {
			continue // transient starvation: wait for the next block (§7)
		}
		c.pending = append(c.pending, block...)
		if len(c.pending) < n {
			// short read: buffer what arrived and ask for the rest next
			// time, rather than handing Process/Dwell/Step a partial block
			// (§7 distinguishes transient starvation from a fatal size
			// mismatch).
			continue
		}
		full := c.pending
		c.pending = nil
		_, rs, ms, err := c.Process(full)
		deliver(recs, msgs, rs, ms)
		if err != nil {
			trace.Warnf("gnss: channel %d prn=%d: %v\n", c.ID, c.PRN, err)
		}
	}
}

func deliver(recs chan<- SyncRecord, msgs chan<- ControlMsg, rs []SyncRecord, ms []ControlMsg) {
	for _, r := range rs {
		if recs != nil {
			recs <- r
		}
	}
	for _, m := range ms {
		if msgs != nil {
			msgs <- m
		}
	}
}
