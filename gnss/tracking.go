/*------------------------------------------------------------------------------
* tracking.go : coupled-amplitude DLL tracking engine (design component 4.G)
*
* two parallel code replicas (primary, secondary) with independent DLLs,
* one shared carrier PLL, and two amplitude loops that resolve a multipath
* component once the primary loop has converged (CADLL). Modeled on
* gnssgo/rtksvr.go's per-cycle "compute, update state, emit" worker shape.
*-----------------------------------------------------------------------------*/
package gnss

import (
	"math"

	"gnsscore/internal/trace"
)

// TrackingParams holds the tracking tuning parameters of spec §6, plus the
// CADLL seed offset parameterized per Open Question (i).
type TrackingParams struct {
	SampleRateHz            float64
	PLLBandwidthHz          float64
	DLLBandwidthHz          float64
	EarlyLateSpaceChips     float64
	CADLLSeedOffsetSamples  float64
}

// TrackingEngine is the per-channel CADLL tracking state of spec §3
// "Tracking state (per channel)".
type TrackingEngine struct {
	params TrackingParams
	prn    int
	caCode []float32 /* guard-padded, length CACodeLength+2 */

	primary   CodeNCOState
	secondary CodeNCOState
	carrier   CarrierNCOState

	e, p, l    complex64
	em, pm, lm complex64
	a1, a2     float64

	pllFilter       *LoopFilter
	dllFilter       *LoopFilter
	dllFilterSecond *LoopFilter
	ampFilter       *AmplitudeLoopFilter
	ampFilterSecond *AmplitudeLoopFilter
	lock            *LockDetector

	cadllInit      bool
	pullIn         bool
	enableTracking bool

	acqDopplerHz   float64
	sampleCounter  uint64

	trackingTimestampSecs float64

	dumper *Dumper /* optional, nil disables dumping */
}

// NewTrackingEngine allocates tracking state for one PRN. Allocation
// failure here is fatal per §7.
func NewTrackingEngine(prn int, params TrackingParams) (*TrackingEngine, error) {
	table, err := CACodeTable(prn)
	if err != nil {
		return nil, err
	}
	t := &TrackingEngine{
		params:          params,
		prn:             prn,
		caCode:          table,
		pllFilter:       NewLoopFilter(SecondOrder, params.PLLBandwidthHz),
		dllFilter:       NewLoopFilter(SecondOrder, params.DLLBandwidthHz),
		dllFilterSecond: NewLoopFilter(SecondOrder, params.DLLBandwidthHz),
		ampFilter:       NewAmplitudeLoopFilter(AmplitudeLoopBWHz),
		ampFilterSecond: NewAmplitudeLoopFilter(AmplitudeLoopBWHz),
		lock:            NewLockDetector(),
	}
	return t, nil
}

// SetDumper attaches (or detaches, with nil) a per-PRN dump writer.
func (t *TrackingEngine) SetDumper(d *Dumper) { t.dumper = d }

// StartTracking initializes the tracking engine from an acquisition result
// (spec §4.G "Start-up"), returning the number of raw samples the caller
// must skip (the pull-in offset) before the first steady-state Step call.
func (t *TrackingEngine) StartTracking(acqDelaySamples, acqDopplerHz float64, acqSampleStamp, sampleCounter uint64) (pullInSamples int) {
	fsIn := t.params.SampleRateHz

	acqTrkDiffSamples := float64(sampleCounter - acqSampleStamp)
	acqTrkDiffSeconds := acqTrkDiffSamples / fsIn

	codeFreqChips := (1 + acqDopplerHz/GPSL1FreqHz) * GPSL1CACodeRateHz
	tPrnModSeconds := GPSL1CACodeLenChips / codeFreqChips
	tPrnModSamples := tPrnModSeconds * fsIn

	nPrnDiff := acqTrkDiffSeconds / tPrnModSeconds
	_ = nPrnDiff // recorded for fidelity with spec's derivation; equals acqTrkDiffSeconds/tPrnModSeconds by construction

	projected := math.Mod(acqDelaySamples+acqTrkDiffSamples, tPrnModSamples)
	if projected < 0 {
		projected += tPrnModSamples
	}
	if projected < 0 {
		projected = 0
	}
	if projected >= tPrnModSamples {
		projected = tPrnModSamples - 1e-9
	}

	currentLen := int(math.Round(tPrnModSamples))

	t.primary = CodeNCOState{RemCodePhaseSamples: projected, CurrentPRNLengthSamples: currentLen, SampleCounter: sampleCounter}
	t.secondary = t.primary
	t.carrier = CarrierNCOState{CarrierDopplerHz: acqDopplerHz, CodeFreqChips: codeFreqChips}

	t.pllFilter.Initialize()
	t.dllFilter.Initialize()
	t.dllFilterSecond.Initialize()
	t.ampFilter.Initialize()
	t.ampFilterSecond.Initialize()
	t.lock.Reset()

	t.pullIn = true
	t.enableTracking = true
	t.cadllInit = true
	t.acqDopplerHz = acqDopplerHz
	t.sampleCounter = sampleCounter

	samplesOffset := acqDelaySamples + floatMod(float64(currentLen)-acqTrkDiffSamples, float64(currentLen))
	return int(math.Round(samplesOffset))
}

// floatMod is math.Mod normalized into [0, m).
func floatMod(x, m float64) float64 {
	r := math.Mod(x, m)
	if r < 0 {
		r += m
	}
	return r
}

// Enabled reports whether the channel controller should keep feeding this
// engine samples.
func (t *TrackingEngine) Enabled() bool { return t.enableTracking }

// Stop clears enable_tracking cooperatively (spec §5 "Cancellation &
// timeouts"): the next PRN-boundary Step call will be this engine's last.
func (t *TrackingEngine) Stop() { t.enableTracking = false }

// BlockLength returns the number of samples the caller must supply to the
// next Step call (current_prn_length_samples, primary loop).
func (t *TrackingEngine) BlockLength() int { return t.primary.CurrentPRNLengthSamples }

// Step processes one PRN period of samples (spec §4.G "Per-PRN step"),
// returning the emitted synchronization record and any control messages
// (loss-of-lock). in must hold exactly BlockLength() samples.
func (t *TrackingEngine) Step(in []complex64, channel int) (SyncRecord, []ControlMsg, error) {
	var msgs []ControlMsg
	n := len(in)
	if n != t.primary.CurrentPRNLengthSamples {
		return SyncRecord{}, nil, ErrFFTSizeMismatch
	}
	for _, v := range in {
		if math.IsNaN(float64(real(v))) || math.IsNaN(float64(imag(v))) {
			trace.Warnf("gnss: tracking prn=%d: NaN sample, PRN period skipped\n", t.prn)
			return SyncRecord{}, nil, nil
		}
	}

	fsIn := t.params.SampleRateHz

	// 1. Doppler wipeoff carrier.
	carrSign := make([]complex64, n)
	endPhase := ComplexExpGenConj(carrSign, t.carrier.CarrierDopplerHz, fsIn, t.carrier.RemCarrierPhaseRad)

	// 2+3. Generate E/P/L replicas and correlate, primary and secondary.
	t.e, t.p, t.l = correlateTriple(in, carrSign, t.caCode, t.primary.RemCodePhaseSamples, t.carrier.CodeFreqChips, fsIn, t.params.EarlyLateSpaceChips)
	t.em, t.pm, t.lm = correlateTriple(in, carrSign, t.caCode, t.secondary.RemCodePhaseSamples, t.carrier.CodeFreqChips, fsIn, t.params.EarlyLateSpaceChips)

	inputPower := meanSquaredMagnitude(in)
	dt := float64(n) / fsIn

	// 4. PLL.
	carrErrorHz := PLLCloopTwoQuadrantAtan(t.p)
	carrErrorFiltHz := t.pllFilter.Update(carrErrorHz, dt)
	t.carrier.CarrierDopplerHz = t.acqDopplerHz + carrErrorFiltHz
	t.carrier.CodeFreqChips = GPSL1CACodeRateHz * (1 + t.carrier.CarrierDopplerHz/GPSL1FreqHz)
	t.carrier.AccCarrierPhaseRad += 2 * math.Pi * t.carrier.CarrierDopplerHz * dt
	t.carrier.RemCarrierPhaseRad = clampPhaseRad(endPhase)

	// 5. DLL.
	codeErrorChips := DLLNCEarlyMinusLateNormalized(t.e, t.l)
	codeErrorFiltChips := t.dllFilter.Update(codeErrorChips, dt)

	var codeErrorFiltChipsSecond float64
	if !t.cadllInit {
		codeErrorChipsSecond := DLLNCEarlyMinusLateNormalized(t.em, t.lm)
		codeErrorFiltChipsSecond = t.dllFilterSecond.Update(codeErrorChipsSecond, dt)
	}

	// 6. Amplitude loops (CADLL).
	if t.cadllInit {
		t.a1 = t.ampFilter.Update(inputPower/0.99, dt)
		t.a2 = t.a1 / 1.284025416687741
	} else {
		sumReal := float64(real(t.p)) + float64(real(t.pm))
		if sumReal == 0 {
			sumReal = 1e-12
		}
		d := inputPower / sumReal
		t.a1 = t.ampFilter.Update(d*float64(real(t.p))/0.99, dt)
		t.a2 = t.ampFilterSecond.Update(d*float64(real(t.pm))/0.99, dt)
	}

	// 7. Buffer-length update, primary then secondary.
	tPrnSamples := (GPSL1CACodeLenChips / t.carrier.CodeFreqChips) * fsIn
	codeErrorFiltSecs := codeErrorFiltChips / t.carrier.CodeFreqChips
	kBlk := tPrnSamples + t.primary.RemCodePhaseSamples + codeErrorFiltSecs*fsIn
	t.primary.CurrentPRNLengthSamples = int(math.Round(kBlk))
	t.primary.RemCodePhaseSamples = kBlk - float64(t.primary.CurrentPRNLengthSamples)
	t.primary.SampleCounter = t.sampleCounter + uint64(n)
	t.primary.AccCodePhaseSecs += dt

	if t.cadllInit {
		t.secondary = t.primary
	} else {
		codeErrorFiltSecsM := codeErrorFiltChipsSecond / t.carrier.CodeFreqChips
		kBlkM := tPrnSamples + t.secondary.RemCodePhaseSamples + codeErrorFiltSecsM*fsIn
		t.secondary.CurrentPRNLengthSamples = int(math.Round(kBlkM))
		t.secondary.RemCodePhaseSamples = kBlkM - float64(t.secondary.CurrentPRNLengthSamples)
		t.secondary.SampleCounter = t.sampleCounter + uint64(n)
		t.secondary.AccCodePhaseSecs += dt
	}

	t.sampleCounter += uint64(n)
	t.trackingTimestampSecs = (float64(t.sampleCounter) + t.primary.RemCodePhaseSamples) / fsIn

	// 8. One-shot CADLL promotion.
	if t.cadllInit && t.trackingTimestampSecs > 1.0 {
		t.cadllInit = false
		t.secondary.RemCodePhaseSamples = t.primary.RemCodePhaseSamples - t.params.CADLLSeedOffsetSamples
	}

	// 9. CN0 / lock detector and emitted record.
	t.lock.Push(t.p)
	cn0, lockTest, lost := t.lock.Evaluate(dt)

	rec := SyncRecord{
		System:                "GPS",
		Signal:                "1C",
		PRN:                   t.prn,
		PromptI:               float64(real(t.p)),
		PromptQ:               float64(imag(t.p)),
		TrackingTimestampSecs: t.trackingTimestampSecs,
		CarrierPhaseRad:       t.carrier.AccCarrierPhaseRad,
		CarrierDopplerHz:      t.carrier.CarrierDopplerHz,
		CodePhaseSecs:         t.primary.RemCodePhaseSamples / fsIn,
		CN0dBHz:               cn0,
		FlagValidTracking:     t.enableTracking && !lost,
	}

	if t.dumper != nil {
		if err := t.dumper.WriteTrackingRecord(TrackingDumpRecord{
			Early: t.e, Prompt: t.p, Late: t.l,
			SampleCounter:        t.sampleCounter,
			AccCarrierPhaseRad:   t.carrier.AccCarrierPhaseRad,
			CarrierDopplerHz:     t.carrier.CarrierDopplerHz,
			CodeFreqChips:        t.carrier.CodeFreqChips,
			CarrierErrorHz:       carrErrorHz,
			CarrierErrorFiltHz:   carrErrorFiltHz,
			CodeErrorChips:       codeErrorChips,
			CodeErrorFiltChips:   codeErrorFiltChips,
			CN0dBHz:              cn0,
			CarrierLockTest:      lockTest,
			RemCodePhaseSamples:  t.primary.RemCodePhaseSamples,
			NextBlockEndSamples:  float64(t.sampleCounter) + float64(t.primary.CurrentPRNLengthSamples),
			Raw:                  in,
		}); err != nil {
			trace.Warnf("gnss: tracking prn=%d: dump write failed, dumping disabled: %v\n", t.prn, err)
			t.dumper = nil
		}
	}

	if lost {
		t.enableTracking = false
		msgs = append(msgs, ControlMsg{Kind: LossOfLock, Channel: channel})
	}
	return rec, msgs, nil
}

// correlateTriple multiplies in by the carrier wipeoff and dot-products
// the result against the early/prompt/late code replicas generated from
// remCodePhaseSamples, returning the three complex correlators.
func correlateTriple(in, carrSign []complex64, caCode []float32, remCodePhaseSamples, codeFreqChips, fsIn, spacingChips float64) (e, p, l complex64) {
	codeStepChips := codeFreqChips / fsIn
	baseChips := remCodePhaseSamples * codeStepChips

	var esum, psum, lsum complex64
	for i, v := range in {
		wiped := v * carrSign[i]
		phase := baseChips + float64(i)*codeStepChips
		esum += wiped * complex(codeValueInterp(caCode, phase+spacingChips), 0)
		psum += wiped * complex(codeValueInterp(caCode, phase), 0)
		lsum += wiped * complex(codeValueInterp(caCode, phase-spacingChips), 0)
	}
	return esum, psum, lsum
}

// codeValueInterp linearly interpolates the guard-padded CA code table at
// a fractional chip phase, wrapping modulo the code period. Relies on the
// one-chip guard on each side of the table (spec §4.A) so floor+1 never
// addresses out of range.
func codeValueInterp(table []float32, phaseChips float64) float32 {
	m := floatMod(phaseChips, GPSL1CACodeLenChips)
	idx := int(m)
	frac := m - float64(idx)
	a := float64(table[idx+1])
	b := float64(table[idx+2])
	return float32(a*(1-frac) + b*frac)
}
