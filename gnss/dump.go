/*------------------------------------------------------------------------------
* dump.go : optional binary dump files (spec §6 "Dump files")
*
* little-endian, float32-unless-noted binary records, written with
* encoding/binary.Write the way gnssgo/stream.go tags its raw observation
* files -- generalized here to little-endian per the external-interface
* contract and wired through a soft-failure path (dump I/O failure disables
* dumping for the channel and continues, §7).
*-----------------------------------------------------------------------------*/
package gnss

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// TrackingDumpRecord is one PRN period's worth of tracking diagnostics,
// matching the field order of spec §6.
type TrackingDumpRecord struct {
	Early, Prompt, Late complex64
	SampleCounter       uint64
	AccCarrierPhaseRad  float64
	CarrierDopplerHz    float64
	CodeFreqChips       float64
	CarrierErrorHz      float64
	CarrierErrorFiltHz  float64
	CodeErrorChips      float64
	CodeErrorFiltChips  float64
	CN0dBHz             float64
	CarrierLockTest     float64
	RemCodePhaseSamples float64
	NextBlockEndSamples float64
	Raw                 []complex64
}

// Dumper writes per-channel binary diagnostics. A Dumper keeps no failure
// state of its own: its write methods return an ErrDumpIO-wrapped error and
// the acquisition and tracking engines then drop their reference to it
// (per §7, dump I/O failure is soft and disables dumping for the channel,
// not the process).
type Dumper struct {
	w io.Writer
	c io.Closer
}

// NewFileDumper opens path for the tracking dump stream described in §6.
func NewFileDumper(path string) (*Dumper, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDumpIO, err)
	}
	return &Dumper{w: f, c: f}, nil
}

// Close releases the underlying file, if any.
func (d *Dumper) Close() error {
	if d.c != nil {
		return d.c.Close()
	}
	return nil
}

// WriteTrackingRecord appends one tracking diagnostics record in the exact
// field order of spec §6: {|E|,|P|,|L|, P_I, P_Q, sample_counter:u64,
// acc_carrier_phase_rad, carrier_doppler_hz, code_freq_chips, carr_error_hz,
// carr_error_filt_hz, code_error_chips, code_error_filt_chips, CN0_dB_Hz,
// carrier_lock_test, rem_code_phase_samples,
// (sample_counter+current_prn_length_samples):f64, then raw I/Q samples}.
func (d *Dumper) WriteTrackingRecord(r TrackingDumpRecord) error {
	fields := []interface{}{
		float32(complexAbs(r.Early)),
		float32(complexAbs(r.Prompt)),
		float32(complexAbs(r.Late)),
		float32(real(r.Prompt)),
		float32(imag(r.Prompt)),
		r.SampleCounter,
		float32(r.AccCarrierPhaseRad),
		float32(r.CarrierDopplerHz),
		float32(r.CodeFreqChips),
		float32(r.CarrierErrorHz),
		float32(r.CarrierErrorFiltHz),
		float32(r.CodeErrorChips),
		float32(r.CodeErrorFiltChips),
		float32(r.CN0dBHz),
		float32(r.CarrierLockTest),
		float32(r.RemCodePhaseSamples),
		r.NextBlockEndSamples,
	}
	for _, f := range fields {
		if err := binary.Write(d.w, binary.LittleEndian, f); err != nil {
			return fmt.Errorf("%w: %v", ErrDumpIO, err)
		}
	}
	for _, s := range r.Raw {
		if err := binary.Write(d.w, binary.LittleEndian, real(s)); err != nil {
			return fmt.Errorf("%w: %v", ErrDumpIO, err)
		}
		if err := binary.Write(d.w, binary.LittleEndian, imag(s)); err != nil {
			return fmt.Errorf("%w: %v", ErrDumpIO, err)
		}
	}
	return nil
}

// AcquisitionGridPath returns the file path for one Doppler bin's |IFFT|^2
// grid dump under dir, following the naming convention
// "test_statistics_<system>_<signal>_sat_<PRN>_doppler_<d>.dat" (§6).
func AcquisitionGridPath(dir, system, signal string, prn int, dopplerHz float64) string {
	return fmt.Sprintf("%s/test_statistics_%s_%s_sat_%d_doppler_%d.dat",
		dir, system, signal, prn, int(math.Round(dopplerHz)))
}

// WriteAcquisitionGrid writes one Doppler bin's magnitude-squared grid as
// little-endian float32 values.
func (d *Dumper) WriteAcquisitionGrid(magSquared []float64) error {
	for _, m := range magSquared {
		if err := binary.Write(d.w, binary.LittleEndian, float32(m)); err != nil {
			return fmt.Errorf("%w: %v", ErrDumpIO, err)
		}
	}
	return nil
}
