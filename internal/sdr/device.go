// Package sdr declares the SDR driver collaborator interface consumed by
// device workers, per spec.md §6. The core never talks to hardware
// directly; it only needs open/tune/read-block/cancel/close.
package sdr

import "context"

// Device is the acquisition primitive a worker drives. Implementations
// must make ReadBlock safe to unblock via Cancel from another goroutine,
// since the worker's watchdog and cooperative-cancellation path both
// rely on that.
type Device interface {
	// Open acquires the device, by index or serial as resolved at
	// construction time.
	Open(ctx context.Context) error

	// SetSampleRate, SetCenterFreq, and SetGain configure the RF
	// front-end. Implementations may require Open to have been called
	// first.
	SetSampleRate(hz float64) error
	SetCenterFreq(hz float64) error
	SetGain(gain float64) error

	// ReadBlock blocks until exactly blockLen complex samples are
	// available, or ctx is done, or Cancel is called from another
	// goroutine.
	ReadBlock(ctx context.Context, blockLen int) ([]complex128, error)

	// Cancel unblocks any in-flight ReadBlock call.
	Cancel()

	// Close releases the device. After Close, no other method may be
	// called.
	Close() error
}
