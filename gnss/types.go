/*------------------------------------------------------------------------------
* types.go : GPS L1 C/A acquisition/tracking data model
*
* the synchronization record, acquisition state and tracking state of the
* design's section 3 ("DATA MODEL"); owned jointly by the acquisition
* engine, the tracking engine and the channel controller.
*-----------------------------------------------------------------------------*/
package gnss

import "math"

// GPS L1 C/A constants (ICD-GPS-200).
const (
	GPSL1FreqHz         = 1575.42e6 /* L1 carrier frequency (Hz) */
	GPSL1CACodeRateHz    = 1.023e6   /* C/A chipping rate (chips/s) */
	GPSL1CACodeLenChips  = 1023.0    /* C/A code period (chips) */
	CACodeLength         = 1023      /* C/A code length (chips), integer */
)

// CN0/lock-detector tuning constants (spec §4.E).
const (
	CN0EstimationSamples   = 20   /* N, ring buffer length for CN0/lock test */
	MinimumValidCN0        = 25.0 /* dB-Hz, below this tracking is declared lost */
	CarrierLockThreshold   = 0.85 /* squared-cosine lock test threshold */
	MaximumLockFailCounter = 50   /* consecutive bad evaluations before loss of lock */
	AmplitudeLoopBWHz      = 10.0 /* ALL_BW, amplitude loop filter bandwidth */
)

// Acquisition dwell states (spec §4.F "State machine").
type AcqState int

const (
	AcqIdle AcqState = iota
	AcqDwell
	AcqPositive
	AcqNegative
)

func (s AcqState) String() string {
	switch s {
	case AcqIdle:
		return "IDLE"
	case AcqDwell:
		return "DWELL"
	case AcqPositive:
		return "POSITIVE"
	case AcqNegative:
		return "NEGATIVE"
	default:
		return "UNKNOWN"
	}
}

// ControlMsg is the typed replacement for the integer control codes of §6,
// per the Design Notes' "Message queues" redesign flag: a small tagged
// variant instead of an untyped int. Code() recovers the wire-level integer
// for dump/log lines at the external-interface boundary.
type ControlMsg struct {
	Kind    ControlKind
	Channel int
}

type ControlKind int

const (
	StopChannel ControlKind = iota
	AcqSuccess
	AcqFail
	LossOfLock
)

// Code returns the §6 wire-level integer code for this message kind.
func (k ControlKind) Code() int {
	switch k {
	case StopChannel:
		return 0
	case AcqSuccess:
		return 1
	case AcqFail, LossOfLock:
		return 2
	default:
		return -1
	}
}

// SyncRecord is the synchronization record shared between acquisition and
// tracking (spec §3). Acquisition writes the Acq* fields; tracking writes
// the rest on every emitted PRN period.
type SyncRecord struct {
	System string /* constellation, e.g. "GPS" */
	Signal string /* signal id, e.g. "1C" */
	PRN    int

	AcqDelaySamples      float64
	AcqDopplerHz         float64
	AcqSampleStampSamples uint64

	PromptI, PromptQ       float64
	TrackingTimestampSecs  float64
	CarrierPhaseRad        float64
	CarrierDopplerHz       float64
	CodePhaseSecs          float64
	CN0dBHz                float64
	FlagValidTracking      bool
}

// CodeNCOState is one code-phase NCO (spec §3: "two parallel code-NCO
// states (primary and secondary)").
type CodeNCOState struct {
	RemCodePhaseSamples     float64
	CurrentPRNLengthSamples int
	AccCodePhaseSecs        float64
	SampleCounter           uint64
}

// CarrierNCOState is the single shared carrier NCO (spec §3).
type CarrierNCOState struct {
	RemCarrierPhaseRad float64
	AccCarrierPhaseRad float64
	CarrierDopplerHz   float64
	CodeFreqChips      float64
}

// Correlator is one complex correlator output (E, P, L, or their _m
// secondary-loop counterparts).
type Correlator = complex64

// clampPhaseRad wraps a phase accumulator into (-pi, pi], the way NCO
// accumulators must to avoid unbounded float growth over long runs.
func clampPhaseRad(phase float64) float64 {
	const twoPi = 2 * math.Pi
	for phase > math.Pi {
		phase -= twoPi
	}
	for phase <= -math.Pi {
		phase += twoPi
	}
	return phase
}
