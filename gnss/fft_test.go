package gnss

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFFTIdempotence(t *testing.T) {
	sizes := []int{8, 16, 64, 256, 2048}
	for _, n := range sizes {
		f := NewFFT(n)
		x := make([]complex64, n)
		r := rand.New(rand.NewSource(int64(n)))
		for i := range x {
			x[i] = complex64(complex(r.NormFloat64(), r.NormFloat64()))
		}

		coeffs := make([]complex64, n)
		assert.NoError(t, f.Forward(coeffs, x))

		back := make([]complex64, n)
		assert.NoError(t, f.Inverse(back, coeffs))

		for i := range x {
			// Inverse(Forward(x)) should equal n*x under the "neither
			// direction scales" convention (§4.C); divide by n to compare
			// against the idempotence property's IFFT(FFT(x))/N == x.
			gotRe := float64(real(back[i])) / float64(n)
			gotIm := float64(imag(back[i])) / float64(n)
			assert.InDelta(t, float64(real(x[i])), gotRe, 1e-5)
			assert.InDelta(t, float64(imag(x[i])), gotIm, 1e-5)
		}
	}
}

func TestFFTSizeMismatch(t *testing.T) {
	f := NewFFT(64)
	in := make([]complex64, 32)
	out := make([]complex64, 64)
	err := f.Forward(out, in)
	assert.ErrorIs(t, err, ErrFFTSizeMismatch)
}

func TestFFTDCBin(t *testing.T) {
	const n = 32
	f := NewFFT(n)
	x := make([]complex64, n)
	for i := range x {
		x[i] = complex(1, 0)
	}
	out := make([]complex64, n)
	assert.NoError(t, f.Forward(out, x))
	// unnormalized forward DFT of an all-ones sequence concentrates all
	// energy in bin 0.
	assert.InDelta(t, float64(n), float64(real(out[0])), 1e-4)
	for i := 1; i < n; i++ {
		assert.InDelta(t, 0, math.Hypot(float64(real(out[i])), float64(imag(out[i]))), 1e-3)
	}
}
