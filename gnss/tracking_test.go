package gnss

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// syntheticTrackingSignal generates n continuous baseband samples of a clean
// PRN carrier at a fixed code delay (samples, in the same rem_code_phase_samples
// basis correlateTriple uses) and Doppler, starting at absolute sample index
// startSample, for exercising tracking convergence (spec §8 property 5).
func syntheticTrackingSignal(prn int, fsHz, dopplerHz, delaySamples float64, n int, startSample uint64) []complex64 {
	table, err := CACodeTable(prn)
	if err != nil {
		panic(err)
	}
	codeFreqChips := GPSL1CACodeRateHz * (1 + dopplerHz/GPSL1FreqHz)
	codeStepChips := codeFreqChips / fsHz
	out := make([]complex64, n)
	for i := 0; i < n; i++ {
		sampleIdx := float64(startSample) + float64(i)
		phase := (delaySamples + sampleIdx) * codeStepChips
		chipVal := float64(codeValueInterp(table, phase))
		carrierPhase := 2 * math.Pi * dopplerHz * sampleIdx / fsHz
		s, c := math.Sincos(carrierPhase)
		out[i] = complex64(complex(chipVal*c, chipVal*s))
	}
	return out
}

// twoPathSyntheticSignal is syntheticTrackingSignal plus a second, attenuated
// copy of the same code+carrier delayed by deltaSamples -- s(t) + alpha*s(t-delta),
// the multipath channel of spec §8 property 6.
func twoPathSyntheticSignal(prn int, fsHz, dopplerHz, delaySamples, deltaSamples, alpha float64, n int, startSample uint64) []complex64 {
	table, err := CACodeTable(prn)
	if err != nil {
		panic(err)
	}
	codeFreqChips := GPSL1CACodeRateHz * (1 + dopplerHz/GPSL1FreqHz)
	codeStepChips := codeFreqChips / fsHz
	out := make([]complex64, n)
	for i := 0; i < n; i++ {
		sampleIdx := float64(startSample) + float64(i)
		phase1 := (delaySamples + sampleIdx) * codeStepChips
		phase2 := (delaySamples + sampleIdx - deltaSamples) * codeStepChips
		chip1 := float64(codeValueInterp(table, phase1))
		chip2 := float64(codeValueInterp(table, phase2))
		combined := chip1 + alpha*chip2
		carrierPhase := 2 * math.Pi * dopplerHz * sampleIdx / fsHz
		s, c := math.Sincos(carrierPhase)
		out[i] = complex64(complex(combined*c, combined*s))
	}
	return out
}

func trkParams() TrackingParams {
	return TrackingParams{
		SampleRateHz:           2.048e6,
		PLLBandwidthHz:         25,
		DLLBandwidthHz:         2,
		EarlyLateSpaceChips:    0.5,
		CADLLSeedOffsetSamples: 27,
	}
}

func TestTrackingStartTrackingInitializesSymmetricState(t *testing.T) {
	eng, err := NewTrackingEngine(1, trkParams())
	require.NoError(t, err)

	pullIn := eng.StartTracking(317, 1500, 0, 0)
	require.GreaterOrEqual(t, pullIn, 0)
	require.Equal(t, eng.primary, eng.secondary)
	require.True(t, eng.cadllInit)
	require.True(t, eng.pullIn)
	require.True(t, eng.enableTracking)
	require.Equal(t, 2048, eng.BlockLength())
}

func TestTrackingStepRejectsWrongBlockLength(t *testing.T) {
	eng, err := NewTrackingEngine(1, trkParams())
	require.NoError(t, err)
	eng.StartTracking(0, 0, 0, 0)

	_, _, err = eng.Step(make([]complex64, eng.BlockLength()+1), 0)
	require.ErrorIs(t, err, ErrFFTSizeMismatch)
}

// TestTrackingCADLLSeedOffsetAppliedAfterOneSecond reproduces the one-shot
// CADLL promotion of spec §4.G step 8: after tracking_timestamp_secs
// crosses 1.0, cadll_init clears and the secondary loop's
// rem_code_phase_samples is reseeded the configured offset (in samples)
// behind the primary's.
func TestTrackingCADLLSeedOffsetAppliedAfterOneSecond(t *testing.T) {
	eng, err := NewTrackingEngine(1, trkParams())
	require.NoError(t, err)
	eng.StartTracking(0, 0, 0, 0)

	const maxSteps = 1100
	promoted := false
	for i := 0; i < maxSteps; i++ {
		in := make([]complex64, eng.BlockLength())
		_, _, err := eng.Step(in, 0)
		require.NoError(t, err)
		if !eng.cadllInit {
			promoted = true
			break
		}
	}
	require.True(t, promoted, "expected CADLL promotion within %d PRN periods", maxSteps)
	require.InDelta(t, eng.primary.RemCodePhaseSamples-trkParams().CADLLSeedOffsetSamples, eng.secondary.RemCodePhaseSamples, 1e-6)
}

// TestTrackingLossOfLockIsDeterministic reproduces scenario S6: feeding the
// engine nothing but noise must eventually trip the lock detector and emit
// exactly one LossOfLock control message, after which enable_tracking stays
// false.
func TestTrackingLossOfLockIsDeterministic(t *testing.T) {
	eng, err := NewTrackingEngine(2, trkParams())
	require.NoError(t, err)
	eng.StartTracking(0, 0, 0, 0)

	rngState := uint64(99)
	nextRand := func() float32 {
		rngState = rngState*6364136223846793005 + 1
		return float32(rngState>>40)/float32(1<<24) - 0.5
	}

	lost := false
	for i := 0; i < CN0EstimationSamples+MaximumLockFailCounter+5 && eng.Enabled(); i++ {
		in := make([]complex64, eng.BlockLength())
		for j := range in {
			in[j] = complex(nextRand(), nextRand())
		}
		_, msgs, err := eng.Step(in, 5)
		require.NoError(t, err)
		for _, m := range msgs {
			require.Equal(t, LossOfLock, m.Kind)
			require.Equal(t, 5, m.Channel)
			lost = true
		}
	}
	require.True(t, lost)
	require.False(t, eng.Enabled())
}

// TestTrackingConvergesFromPerturbedAcquisitionEstimate reproduces spec §8
// property 5: seeding tracking from a (code-phase, Doppler) estimate
// perturbed off the true signal's by (0.5 sample, 50 Hz), the DLL/PLL must
// drive the residual error below (0.1 sample, 10 Hz) within 200 PRN periods.
func TestTrackingConvergesFromPerturbedAcquisitionEstimate(t *testing.T) {
	const prn = 7
	const trueDelay = 317.3
	const trueDoppler = 1500.2

	params := trkParams()
	eng, err := NewTrackingEngine(prn, params)
	require.NoError(t, err)

	seedDelay := trueDelay + 0.5
	seedDoppler := trueDoppler + 50.0
	pullIn := eng.StartTracking(seedDelay, seedDoppler, 0, 0)
	require.GreaterOrEqual(t, pullIn, 0)

	cursor := uint64(pullIn)
	for period := 0; period < 200; period++ {
		n := eng.BlockLength()
		block := syntheticTrackingSignal(prn, params.SampleRateHz, trueDoppler, trueDelay, n, cursor)
		_, _, err := eng.Step(block, 1)
		require.NoError(t, err)
		cursor += uint64(n)
	}

	require.InDelta(t, 0, eng.primary.RemCodePhaseSamples, 0.1)
	require.InDelta(t, trueDoppler, eng.carrier.CarrierDopplerHz, 10)
}

// TestTrackingCADLLResolvesTwoPathSeparation reproduces spec §8 property 6:
// tracking a two-path channel s(t) + alpha*s(t-delta), after CADLL promotion
// the secondary loop's code phase must settle delta samples behind the
// primary's, within +-2 samples.
func TestTrackingCADLLResolvesTwoPathSeparation(t *testing.T) {
	const prn = 9
	const trueDelay = 317.3
	const trueDoppler = 1500.2
	const delta = 27.0
	const alpha = 0.78

	params := trkParams()
	eng, err := NewTrackingEngine(prn, params)
	require.NoError(t, err)

	pullIn := eng.StartTracking(trueDelay, trueDoppler, 0, 0)
	cursor := uint64(pullIn)

	// Run past the 1s one-shot CADLL promotion boundary (~1000 one-ms PRN
	// periods) plus settling time for the secondary DLL.
	const periods = 1300
	for period := 0; period < periods; period++ {
		n := eng.BlockLength()
		block := twoPathSyntheticSignal(prn, params.SampleRateHz, trueDoppler, trueDelay, delta, alpha, n, cursor)
		_, _, err := eng.Step(block, 1)
		require.NoError(t, err)
		cursor += uint64(n)
	}

	require.False(t, eng.cadllInit, "expected CADLL promotion to have occurred by %d periods", periods)
	separation := eng.primary.RemCodePhaseSamples - eng.secondary.RemCodePhaseSamples
	require.InDelta(t, delta, separation, 2.0)
}
