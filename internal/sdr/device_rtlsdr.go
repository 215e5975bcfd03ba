//go:build rtlsdr

// Package sdr's rtlsdr-backed Device implementation is out of scope for
// this spec (spec.md §6 declares the SDR driver a consumed collaborator,
// not something the core implements) and no cgo rtl-sdr driver ships in
// the retrieval pack for this repo to adapt. This stub documents the
// intended wiring point for an operator who links in a real driver
// (e.g. a cgo binding over librtlsdr) behind the `rtlsdr` build tag.
package sdr

import (
	"context"
	"errors"
)

// RTLSDR would wrap a real librtlsdr handle. It is unimplemented: every
// method that can fail returns a "driver not linked" error. Nothing in
// this module constructs an RTLSDR; cmd/radiotracking builds a Simulator
// for every device whatever the build tags.
type RTLSDR struct {
	DeviceIndex int
}

func (r *RTLSDR) Open(ctx context.Context) error { return errors.New("sdr: rtlsdr driver not linked") }
func (r *RTLSDR) SetSampleRate(hz float64) error { return errors.New("sdr: rtlsdr driver not linked") }
func (r *RTLSDR) SetCenterFreq(hz float64) error { return errors.New("sdr: rtlsdr driver not linked") }
func (r *RTLSDR) SetGain(gain float64) error     { return errors.New("sdr: rtlsdr driver not linked") }
func (r *RTLSDR) Cancel()                        {}
func (r *RTLSDR) Close() error                   { return nil }

func (r *RTLSDR) ReadBlock(ctx context.Context, blockLen int) ([]complex128, error) {
	return nil, errors.New("sdr: rtlsdr driver not linked")
}
