/*------------------------------------------------------------------------------
* loopfilter.go : PLL/DLL/amplitude loop filters (design component 4.D)
*
* first/second-order IIR loop filters whose state survives across PRN
* periods. Modeled on the explicit-state-struct + stateful Update idiom
* gnssgo/rtkpos.go uses for its filters, generalized to the classic
* natural-frequency/damping loop-filter form (Kaplan & Hegarty,
* "Understanding GPS/GNSS") rather than any framework-specific code.
*-----------------------------------------------------------------------------*/
package gnss

import "math"

// LoopOrder selects a first- or second-order loop filter.
type LoopOrder int

const (
	FirstOrder LoopOrder = iota
	SecondOrder
)

// LoopFilter is a second-order-capable PLL/DLL loop filter: a proportional
// term plus an accumulating integrator term, both scaled from the
// requested noise bandwidth assuming a damping ratio of 1/sqrt(2).
// First-order mode drops the proportional term and uses only the
// integrator, giving a pure rate loop.
type LoopFilter struct {
	order LoopOrder
	bwHz  float64

	wn          float64
	proportional float64
	accel        float64
	integrator   float64
}

// NewLoopFilter builds a loop filter for the given order and noise
// bandwidth (Hz). Call Initialize before first use (and again after a
// re-acquisition, to clear integrator history).
func NewLoopFilter(order LoopOrder, bwHz float64) *LoopFilter {
	f := &LoopFilter{order: order, bwHz: bwHz}
	f.Initialize()
	return f
}

// Initialize (re)derives the filter's gains from its bandwidth and clears
// the integrator. Must be called before the first Update and whenever the
// loop restarts (start_tracking, spec §4.G).
func (f *LoopFilter) Initialize() {
	// damping ratio 1/sqrt(2) folded into the 0.53 / 1.414 constants below
	f.wn = f.bwHz / 0.53
	f.proportional = 1.414 * f.wn
	f.accel = f.wn * f.wn
	f.integrator = 0
}

// Update filters one discriminator output x, sampled at an interval of
// dtSecs (the current PRN period), and returns the filtered correction.
func (f *LoopFilter) Update(x, dtSecs float64) float64 {
	f.integrator += x * f.accel * dtSecs
	if f.order == FirstOrder {
		return f.integrator
	}
	return x*f.proportional + f.integrator
}

// AmplitudeLoopFilter is the first-order IIR amplitude estimator of spec
// §4.D (bandwidth ALL_BW=10), an exponential moving average whose pole is
// re-derived from the current PRN period each update since the period is
// not fixed (tracking's PRN length varies with Doppler).
type AmplitudeLoopFilter struct {
	bwHz    float64
	value   float64
	primed  bool
}

// NewAmplitudeLoopFilter builds an amplitude loop filter with the given
// bandwidth (Hz), used as passed; the tracking engine passes
// AmplitudeLoopBWHz (spec §4.D).
func NewAmplitudeLoopFilter(bwHz float64) *AmplitudeLoopFilter {
	f := &AmplitudeLoopFilter{bwHz: bwHz}
	f.Initialize()
	return f
}

// Initialize clears the filter so the next Update seeds it directly with
// its input rather than blending against stale state.
func (f *AmplitudeLoopFilter) Initialize() {
	f.value = 0
	f.primed = false
}

// Update filters one amplitude sample x at PRN-period interval dtSecs.
func (f *AmplitudeLoopFilter) Update(x, dtSecs float64) float64 {
	if !f.primed {
		f.value = x
		f.primed = true
		return f.value
	}
	alpha := 1 - math.Exp(-2*math.Pi*f.bwHz*dtSecs)
	f.value += alpha * (x - f.value)
	return f.value
}
