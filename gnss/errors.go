/*------------------------------------------------------------------------------
* errors.go : error kinds (spec §7 "ERROR HANDLING DESIGN")
*
* allocation failure and FFT size mismatch are fatal; NaN sample and dump
* I/O failure are soft. Loss of lock and negative acquisition are never
* errors -- they are control messages (ControlMsg), checked by the channel
* controller, not by error returns.
*-----------------------------------------------------------------------------*/
package gnss

import "errors"

var (
	// ErrAllocation signals a fatal allocation failure; the channel that
	// raised it must abort (§7).
	ErrAllocation = errors.New("gnss: allocation failure")

	// ErrNaNSample signals a NaN value was found in an input sample
	// block; soft -- the block is skipped and a warning traced (§7).
	ErrNaNSample = errors.New("gnss: NaN sample in input block")

	// ErrFFTSizeMismatch signals an input/output buffer does not match
	// the FFT plan's fixed size; fatal, indicates a configuration bug (§7).
	ErrFFTSizeMismatch = errors.New("gnss: FFT size mismatch")

	// ErrDumpIO signals a dump-file write failed; soft -- dumping is
	// disabled for the channel and processing continues (§7).
	ErrDumpIO = errors.New("gnss: dump I/O failure")
)
