/*------------------------------------------------------------------------------
* discriminator.go : stateless nonlinear discriminators (design component 4.D)
*-----------------------------------------------------------------------------*/
package gnss

import "math"

// PLLCloopTwoQuadrantAtan is the two-quadrant arctangent carrier phase
// discriminator: atan2(P.imag, P.real) normalized to cycles (Hz-normalized
// residual carrier phase), spec §4.D.
func PLLCloopTwoQuadrantAtan(prompt complex64) float64 {
	return math.Atan2(float64(imag(prompt)), float64(real(prompt))) / (2 * math.Pi)
}

// DLLNCEarlyMinusLateNormalized is the non-coherent normalized
// early-minus-late code discriminator, spec §4.D:
// (|E| - |L|) / (|E| + |L|).
func DLLNCEarlyMinusLateNormalized(early, late complex64) float64 {
	e := complexAbs(early)
	l := complexAbs(late)
	denom := e + l
	if denom == 0 {
		return 0
	}
	return (e - l) / denom
}

func complexAbs(c complex64) float64 {
	return math.Hypot(float64(real(c)), float64(imag(c)))
}
