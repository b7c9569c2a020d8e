/*------------------------------------------------------------------------------
* acquisition.go : FFT-based parallel code-phase search (design component 4.F)
*
* per-satellite acquisition: a Doppler grid of conjugated carrier replicas,
* one correlation FFT triple per bin per dwell, CFAR-style threshold,
* optional auxiliary-peak resolution for multipath/multi-satellite
* disambiguation (S4). State machine per §4.F: IDLE -> DWELL ->
* POSITIVE/NEGATIVE -> IDLE.
*-----------------------------------------------------------------------------*/
package gnss

import (
	"math"
	"sort"

	"gnsscore/internal/trace"
)

// AcquisitionParams holds the acquisition tuning parameters of spec §6.
type AcquisitionParams struct {
	SampledMs           int
	MaxDwells           int
	DopplerMaxHz        float64
	DopplerStepHz       float64
	IntermediateFreqHz  float64
	SampleRateHz        float64
	SamplesPerMs        int
	SamplesPerCode      int
	BitTransitionFlag   bool
	Peak                int
	Threshold           float64
}

// FFTSize is fft_size = sampled_ms * samples_per_ms (spec §3).
func (p AcquisitionParams) FFTSize() int { return p.SampledMs * p.SamplesPerMs }

// NumDopplerBins is 2*doppler_max/doppler_step + 1 (spec §3 invariant).
func (p AcquisitionParams) NumDopplerBins() int {
	return int(2*p.DopplerMaxHz/p.DopplerStepHz) + 1
}

// DopplerAt maps a grid index k to its frequency, -doppler_max + k*doppler_step.
func (p AcquisitionParams) DopplerAt(k int) float64 {
	return -p.DopplerMaxHz + float64(k)*p.DopplerStepHz
}

// acqPeak is one candidate (code_phase, doppler) detection used by the
// auxiliary-peak ranking pass.
type acqPeak struct {
	codePhase int
	dopplerHz float64
	magnitude float64
}

// AcquisitionResult is the outcome of a completed acquisition attempt.
type AcquisitionResult struct {
	Positive             bool
	DelaySamples         float64
	DopplerHz            float64
	SampleStampSamples   uint64
	AuxiliaryPeaks       []acqPeak /* additional disjoint peaks beyond the primary, when Peak > 1 */
}

// AcquisitionEngine is the per-(channel,PRN) acquisition search state of
// spec §3 "Acquisition state".
type AcquisitionEngine struct {
	params AcquisitionParams
	prn    int

	fft      *FFT
	fftCodes []complex64 /* conjugate(FFT(local code, zero-padded)) */

	dopplerFreqs []float64
	wipeoffs     [][]complex64 /* grid_doppler_wipeoffs[k] */

	state     AcqState
	wellCount int

	mag            float64
	mag2ndHighest  float64
	inputPower     float64
	testStatistics float64

	codePhase     float64
	dopplerHz     float64
	sampleCounter uint64

	peakSet []acqPeak

	dumper *Dumper /* optional, nil disables the acquisition grid dump */

	// reused scratch, never reallocated on the hot path
	wiped []complex64
	xbuf  []complex64
	ybuf  []complex64
	rbuf  []complex64
	magsq []float64
}

// SetDumper attaches (or detaches, with nil) this engine's |IFFT|^2 grid
// dump writer (spec §6). When set, every Doppler bin's magnitude-squared
// grid is appended to the same writer as it is computed during Dwell,
// rather than opening one file per bin per dwell.
func (e *AcquisitionEngine) SetDumper(d *Dumper) { e.dumper = d }

// NewAcquisitionEngine builds (and precomputes) an acquisition search for
// one PRN. Allocation failure here is fatal per §7.
func NewAcquisitionEngine(prn int, params AcquisitionParams) (*AcquisitionEngine, error) {
	fftSize := params.FFTSize()

	codeSamples, err := resampleCACode(prn, params.SamplesPerCode)
	if err != nil {
		return nil, err
	}
	// Zero-padded to fft_size (§4.C): tile whole code periods and leave any
	// remainder zero, rather than wrapping mid-period into a partial chip.
	padded := make([]complex64, fftSize)
	for i := 0; i+len(codeSamples) <= fftSize; i += len(codeSamples) {
		copy(padded[i:i+len(codeSamples)], codeSamples)
	}

	f := NewFFT(fftSize)
	fftCodes := make([]complex64, fftSize)
	if err := f.Forward(fftCodes, padded); err != nil {
		return nil, err
	}
	for i, v := range fftCodes {
		fftCodes[i] = complex64(complex(real(v), -imag(v))) // conjugate
	}

	e := &AcquisitionEngine{
		params:   params,
		prn:      prn,
		fft:      f,
		fftCodes: fftCodes,
		wiped:    make([]complex64, fftSize),
		xbuf:     make([]complex64, fftSize),
		ybuf:     make([]complex64, fftSize),
		rbuf:     make([]complex64, fftSize),
		magsq:    make([]float64, fftSize),
		state:    AcqIdle,
	}

	n := params.NumDopplerBins()
	e.dopplerFreqs = make([]float64, n)
	e.wipeoffs = make([][]complex64, n)
	for k := 0; k < n; k++ {
		freq := params.DopplerAt(k)
		e.dopplerFreqs[k] = freq
		rep := make([]complex64, fftSize)
		ComplexExpGenConj(rep, params.IntermediateFreqHz+freq, params.SampleRateHz, 0)
		e.wipeoffs[k] = rep
	}
	return e, nil
}

// Start transitions IDLE -> DWELL, clearing decision-variable state, per
// spec §4.F's "IDLE -> DWELL on active=true".
func (e *AcquisitionEngine) Start() {
	e.state = AcqDwell
	e.wellCount = 0
	e.mag = 0
	e.mag2ndHighest = 0
	e.testStatistics = 0
	e.peakSet = e.peakSet[:0]
}

// State returns the engine's current dwell state.
func (e *AcquisitionEngine) State() AcqState { return e.state }

// Dwell runs one FFT-based parallel code-phase search over in (length
// FFTSize) at sampleCounter, updating the state machine and returning the
// decision for this attempt when the state machine reaches a terminal
// state this call. ok is false while still mid-dwell (bit-transition mode
// consuming its first of two dwells).
func (e *AcquisitionEngine) Dwell(in []complex64, sampleCounter uint64) (AcquisitionResult, bool, error) {
	fftSize := e.params.FFTSize()
	if len(in) != fftSize {
		return AcquisitionResult{}, false, ErrFFTSizeMismatch
	}
	for _, v := range in {
		if math.IsNaN(float64(real(v))) || math.IsNaN(float64(imag(v))) {
			trace.Warnf("gnss: acquisition prn=%d: NaN sample, dwell skipped\n", e.prn)
			return AcquisitionResult{}, false, nil
		}
	}
	if e.state != AcqDwell {
		e.Start()
	}

	e.sampleCounter = sampleCounter
	e.inputPower = meanSquaredMagnitude(in)
	// Each unnormalized Forward/Inverse round trip through the correlation
	// FFT pair contributes a factor of fft_size beyond the textbook
	// single-normalized-inverse circular-correlation identity (spec §4.C's
	// "neither direction scales" convention), so the raw |IFFT|^2 peak for
	// a fft_size-sample correlation carries fft_size^4 of scale. Dividing by
	// fft_size^3 rather than fft_size^2 leaves exactly the fft_size
	// (coherent integration / processing gain) factor the CFAR ratio is
	// meant to see, so the noise floor's mean tracks input_power directly
	// instead of growing without bound as fft_size grows.
	thresholdSpoofing := e.params.Threshold * e.inputPower * math.Pow(float64(fftSize), 3)

	n := len(e.dopplerFreqs)
	normFactor := 1.0 / (float64(fftSize) * float64(fftSize) * float64(fftSize))

	for k := 0; k < n; k++ {
		for i, v := range in {
			e.wiped[i] = v * e.wipeoffs[k][i]
		}
		if err := e.fft.Forward(e.xbuf, e.wiped); err != nil {
			return AcquisitionResult{}, false, err
		}
		for i := range e.ybuf {
			e.ybuf[i] = e.xbuf[i] * e.fftCodes[i]
		}
		if err := e.fft.Inverse(e.rbuf, e.ybuf); err != nil {
			return AcquisitionResult{}, false, err
		}
		for i, v := range e.rbuf {
			re := float64(real(v))
			im := float64(imag(v))
			e.magsq[i] = re*re + im*im
		}

		if e.dumper != nil {
			if err := e.dumper.WriteAcquisitionGrid(e.magsq); err != nil {
				trace.Warnf("gnss: acquisition prn=%d: grid dump write failed, dumping disabled: %v\n", e.prn, err)
				e.dumper = nil
			}
		}

		if e.params.Peak > 1 {
			for i, m := range e.magsq {
				if m > thresholdSpoofing {
					e.peakSet = append(e.peakSet, acqPeak{
						codePhase: i % e.params.SamplesPerCode,
						dopplerHz: e.dopplerFreqs[k],
						magnitude: m * normFactor,
					})
				}
			}
		}

		idx, peakVal := argmax(e.magsq)
		peakVal *= normFactor
		if peakVal > e.mag {
			e.mag2ndHighest = e.mag
			e.mag = peakVal
			e.codePhase = float64(idx % e.params.SamplesPerCode)
			e.dopplerHz = e.dopplerFreqs[k]
		} else if peakVal > e.mag2ndHighest {
			e.mag2ndHighest = peakVal
		}
	}

	e.testStatistics = e.mag / e.inputPower
	e.wellCount++

	positive := e.testStatistics > e.params.Threshold
	var decided bool
	if !e.params.BitTransitionFlag {
		decided = positive || e.wellCount == e.params.MaxDwells
	} else {
		decided = e.wellCount >= 2
		if decided {
			positive = e.testStatistics > e.params.Threshold
		} else {
			positive = false
		}
	}
	if !decided {
		return AcquisitionResult{}, false, nil
	}

	result := AcquisitionResult{
		Positive:           positive,
		DelaySamples:       e.codePhase,
		DopplerHz:          e.dopplerHz,
		SampleStampSamples: e.sampleCounter,
	}
	if positive && e.params.Peak > 1 {
		result.AuxiliaryPeaks = e.resolveAuxiliaryPeaks()
		if len(result.AuxiliaryPeaks) < e.params.Peak-1 {
			result.Positive = false
		}
	}

	if result.Positive {
		e.state = AcqPositive
	} else {
		e.state = AcqNegative
	}
	return result, true, nil
}

// resolveAuxiliaryPeaks ranks the collected peak set by descending
// normalized magnitude and greedily selects disjoint peaks (spec §4.F
// "Auxiliary-peak mode"), skipping the primary peak itself.
func (e *AcquisitionEngine) resolveAuxiliaryPeaks() []acqPeak {
	sorted := append([]acqPeak(nil), e.peakSet...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].magnitude > sorted[j].magnitude })

	primary := acqPeak{codePhase: int(e.codePhase), dopplerHz: e.dopplerHz}
	selected := []acqPeak{primary}

	var aux []acqPeak
	for _, p := range sorted {
		if len(aux) >= e.params.Peak-1 {
			break
		}
		disjointFromAll := true
		for _, s := range selected {
			if !peaksDisjoint(p, s, e.params.SamplesPerCode) {
				disjointFromAll = false
				break
			}
		}
		if disjointFromAll {
			aux = append(aux, p)
			selected = append(selected, p)
		}
	}
	return aux
}

// peaksDisjoint reports whether two candidate peaks are distinct detections:
// more than 2*samplesPerCode apart in code phase, or differing in Doppler.
func peaksDisjoint(a, b acqPeak, samplesPerCode int) bool {
	diff := a.codePhase - b.codePhase
	if diff < 0 {
		diff = -diff
	}
	return diff > 2*samplesPerCode || a.dopplerHz != b.dopplerHz
}

// Reset returns the engine to IDLE, e.g. after the state machine emits its
// control message and the channel controller moves on.
func (e *AcquisitionEngine) Reset() { e.state = AcqIdle }

func meanSquaredMagnitude(in []complex64) float64 {
	var sum float64
	for _, v := range in {
		re := float64(real(v))
		im := float64(imag(v))
		sum += re*re + im*im
	}
	return sum / float64(len(in))
}

func argmax(xs []float64) (int, float64) {
	idx := 0
	best := xs[0]
	for i, v := range xs {
		if v > best {
			best = v
			idx = i
		}
	}
	return idx, best
}

// resampleCACode resamples the 1023-chip CA code for prn onto n samples
// (nearest-chip sampling), used to build the FFT'd local-code replica.
func resampleCACode(prn, n int) ([]complex64, error) {
	chips := make([]int8, CACodeLength)
	if err := GenerateCACode(prn, chips); err != nil {
		return nil, err
	}
	out := make([]complex64, n)
	for i := 0; i < n; i++ {
		chipIdx := (i * CACodeLength) / n
		out[i] = complex(float32(chips[chipIdx]), 0)
	}
	return out, nil
}
