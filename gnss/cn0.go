/*------------------------------------------------------------------------------
* cn0.go : CN0 and carrier lock detectors (design component 4.E)
*
* ring buffer of the last CN0_ESTIMATION_SAMPLES prompt correlator outputs,
* feeding the SNV CN0 estimator and the squared-cosine carrier lock test.
* Ring-buffer-of-values idiom generalized from jbrzusto-ogdar/buffer's
* wraparound scanline ring.
*-----------------------------------------------------------------------------*/
package gnss

import "math"

// LockDetector maintains the rolling prompt-correlator window used for
// CN0 estimation and carrier lock detection (spec §4.E).
type LockDetector struct {
	buf   [CN0EstimationSamples]complex64
	n     int
	next  int

	lockFailCounter int
}

// NewLockDetector returns a zeroed lock detector, ready for use.
func NewLockDetector() *LockDetector { return &LockDetector{} }

// Reset clears the window and the consecutive-failure counter, called on
// (re-)acquisition.
func (d *LockDetector) Reset() {
	d.n = 0
	d.next = 0
	d.lockFailCounter = 0
}

// Push appends one prompt correlator output to the window.
func (d *LockDetector) Push(prompt complex64) {
	d.buf[d.next] = prompt
	d.next = (d.next + 1) % CN0EstimationSamples
	if d.n < CN0EstimationSamples {
		d.n++
	}
}

// Ready reports whether the window is full enough to produce an estimate.
func (d *LockDetector) Ready() bool { return d.n == CN0EstimationSamples }

// CN0dBHz computes the carrier-to-noise density estimate (dB-Hz) from the
// current window using the SNV (signal-to-noise variance) estimator, given
// the coherent integration time (the PRN period, seconds).
func (d *LockDetector) CN0dBHz(integrationSecs float64) float64 {
	if !d.Ready() {
		return 0
	}
	var sumAbs, sumAbs2 float64
	for _, p := range d.buf {
		a := complexAbs(p)
		sumAbs += a
		sumAbs2 += a * a
	}
	n := float64(CN0EstimationSamples)
	meanAbs := sumAbs / n
	meanPow := sumAbs2 / n
	m2 := meanAbs * meanAbs
	nvr := (meanPow - m2) / m2 // normalized variance ratio
	if nvr <= 0 {
		nvr = 1e-12
	}
	snr := 1 / nvr
	cn0 := 10*math.Log10(snr) - 10*math.Log10(integrationSecs)
	return cn0
}

// CarrierLockTest computes the squared-cosine carrier lock test of spec
// §4.E over the current window, measured against the window's own mean
// phase (see the NBD note below).
func (d *LockDetector) CarrierLockTest() float64 {
	if !d.Ready() {
		return 0
	}
	var sumI, sumQ2MinusI2 float64
	var sumAbs2 float64
	for _, p := range d.buf {
		i := float64(real(p))
		q := float64(imag(p))
		sumI += i*i - q*q
		sumQ2MinusI2 += 2 * i * q
		sumAbs2 += i*i + q*q
	}
	if sumAbs2 == 0 {
		return 0
	}
	// NBD: narrowband power ratio lock test; the result is the power-weighted
	// mean of cos^2 of each prompt's phase deviation from the window's mean
	// (doubled-angle) phase, so a constant phase gives 1 whatever its value.
	nbd := math.Hypot(sumI, sumQ2MinusI2) / sumAbs2
	return 0.5 + 0.5*nbd
}

// Evaluate consumes the current prompt window and returns the CN0 estimate
// and whether loss-of-lock should be declared this update, maintaining the
// consecutive-failure counter of spec §4.E
// (MAXIMUM_LOCK_FAIL_COUNTER=50 evaluations).
func (d *LockDetector) Evaluate(integrationSecs float64) (cn0 float64, lockTest float64, lost bool) {
	if !d.Ready() {
		return 0, 0, false
	}
	cn0 = d.CN0dBHz(integrationSecs)
	lockTest = d.CarrierLockTest()

	if cn0 < MinimumValidCN0 || lockTest < CarrierLockThreshold {
		d.lockFailCounter++
	} else {
		d.lockFailCounter = 0
	}
	lost = d.lockFailCounter >= MaximumLockFailCounter
	return cn0, lockTest, lost
}
