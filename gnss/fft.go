/*------------------------------------------------------------------------------
* fft.go : FFT kernel
*
* component 4.C of the design: forward and inverse complex FFT over
* fft_size complex samples, wrapping gonum.org/v1/gonum/dsp/fourier the way
* madpsy-ka9q_ubersdr/audio_extensions/sstv/fft.go wraps it for audio
* spectral analysis.
*
* Normalization convention (design note "Numeric semantics" + §4.C):
* neither Forward nor Inverse scales its output. gonum's CmplxFFT
* Coefficients and Sequence are both unnormalized already, so Forward and
* Inverse pass their results through unchanged and Inverse(Forward(x)) is
* n*x, the un-normalized convention the acquisition engine's threshold math
* assumes.
*-----------------------------------------------------------------------------*/
package gnss

import (
	"fmt"

	"gonum.org/v1/gonum/dsp/fourier"
)

// FFT owns one forward/inverse complex FFT plan plus aligned scratch
// buffers for a fixed size, reused across dwells/PRN periods by whichever
// channel allocated it — never reallocated on the hot path (Design Notes,
// "FFT ownership").
type FFT struct {
	size    int
	plan    *fourier.CmplxFFT
	scratch []complex128 /* reused complex128 staging buffer */
}

// NewFFT allocates an FFT plan and its scratch buffer for the given size.
// Allocation failure here is fatal per spec §7 and is left to panic/OOM
// the same way a slice allocation failure would.
func NewFFT(size int) *FFT {
	return &FFT{
		size:    size,
		plan:    fourier.NewCmplxFFT(size),
		scratch: make([]complex128, size),
	}
}

// Size returns the fixed transform length this FFT was built for.
func (f *FFT) Size() int { return f.size }

// checkSize returns ErrFFTSizeMismatch (fatal, configuration bug, §7) if in
// or out don't match the plan's fixed size.
func (f *FFT) checkSize(in, out []complex64) error {
	if len(in) != f.size || len(out) != f.size {
		return fmt.Errorf("%w: plan size %d, in %d, out %d", ErrFFTSizeMismatch, f.size, len(in), len(out))
	}
	return nil
}

// Forward computes the unnormalized forward DFT of in into out.
func (f *FFT) Forward(out, in []complex64) error {
	if err := f.checkSize(in, out); err != nil {
		return err
	}
	for i, v := range in {
		f.scratch[i] = complex128(v)
	}
	f.plan.Coefficients(f.scratch, f.scratch)
	for i, v := range f.scratch {
		out[i] = complex64(v)
	}
	return nil
}

// Inverse computes the unnormalized inverse DFT of in into out via gonum's
// unnormalized Sequence(), so that neither direction scales (§4.C).
func (f *FFT) Inverse(out, in []complex64) error {
	if err := f.checkSize(in, out); err != nil {
		return err
	}
	for i, v := range in {
		f.scratch[i] = complex128(v)
	}
	f.plan.Sequence(f.scratch, f.scratch)
	for i, v := range f.scratch {
		out[i] = complex64(v)
	}
	return nil
}
