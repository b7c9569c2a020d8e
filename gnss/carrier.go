/*------------------------------------------------------------------------------
* carrier.go : complex carrier (NCO) generator
*
* component 4.B of the design: produces exp(+-j*2*pi*freq*i/fs) for a
* programmable frequency, sample rate and length, using a float64 phase
* accumulator wrapped into (-pi, pi] after every sample so that long runs
* don't let the phase grow without bound. Used both
* for Doppler wipeoff in acquisition and carrier wipeoff in tracking.
*-----------------------------------------------------------------------------*/
package gnss

import (
	"math"
	"math/cmplx"
)

// PhaseAccumulator is a per-channel NCO phase accumulator, generalized from
// the instantaneous-phase bookkeeping in the frequency-detector idiom
// (prevPhase/unwrapOffset) seen in the pack's dsp detectors package: it
// tracks an f64 running phase and advances it by a per-sample increment,
// wrapping into (-pi, pi] each step so the accumulator never grows without
// bound across long tracking runs.
type PhaseAccumulator struct {
	phase float64 /* current phase, radians, wrapped to (-pi, pi] */
}

// Phase returns the accumulator's current phase in radians.
func (p *PhaseAccumulator) Phase() float64 { return p.phase }

// SetPhase forces the accumulator to a specific phase (radians).
func (p *PhaseAccumulator) SetPhase(rad float64) { p.phase = clampPhaseRad(rad) }

// Advance steps the accumulator by n samples of frequency freqHz at sample
// rate fsHz and returns the phase at each sample into out (len(out) == n),
// leaving the accumulator positioned one sample past the last one written.
func (p *PhaseAccumulator) Advance(out []float64, freqHz, fsHz float64) {
	step := 2 * math.Pi * freqHz / fsHz
	ph := p.phase
	for i := range out {
		out[i] = ph
		ph = clampPhaseRad(ph + step)
	}
	p.phase = ph
}

// ComplexExpGen fills out[i] = exp(+j*2*pi*freq*i/fs) for i in
// [0, len(out)), starting from startPhase. It returns the phase one sample
// past the end of the generated block so callers can chain successive
// blocks without phase discontinuity.
func ComplexExpGen(out []complex64, freqHz, fsHz, startPhase float64) float64 {
	step := 2 * math.Pi * freqHz / fsHz
	ph := startPhase
	for i := range out {
		s, c := math.Sincos(ph)
		out[i] = complex64(complex(c, s))
		ph = clampPhaseRad(ph + step)
	}
	return ph
}

// ComplexExpGenConj fills out[i] = exp(-j*2*pi*freq*i/fs), the conjugate
// variant used for carrier/Doppler wipeoff (multiplying the incoming signal
// down to baseband removes the positive-frequency carrier).
func ComplexExpGenConj(out []complex64, freqHz, fsHz, startPhase float64) float64 {
	step := 2 * math.Pi * freqHz / fsHz
	ph := startPhase
	for i := range out {
		s, c := math.Sincos(ph)
		out[i] = complex64(complex(c, -s))
		ph = clampPhaseRad(ph + step)
	}
	return ph
}

// unitMagnitudeError reports max_i(||out[i]|-1|), used by the carrier
// roundtrip test property (spec §8 property 1).
func unitMagnitudeError(out []complex64) float64 {
	var maxErr float64
	for _, v := range out {
		m := cmplx.Abs(complex128(v))
		if e := math.Abs(m - 1); e > maxErr {
			maxErr = e
		}
	}
	return maxErr
}
