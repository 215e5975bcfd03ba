package signal

import (
	"fmt"
	"reflect"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// DurationTag is the CBOR tag number carrying a time.Duration encoded as
// a floating-point number of seconds, per spec.md §6.
const DurationTag = 1337

var (
	tagSet  = cbor.NewTagSet()
	encMode cbor.EncMode
	decMode cbor.DecMode
)

// cborDuration is the tagged wire representation of a time.Duration.
type cborDuration float64

func init() {
	if err := tagSet.Add(
		cbor.TagOptions{EncTag: cbor.EncTagRequired, DecTag: cbor.DecTagRequired},
		reflect.TypeOf(cborDuration(0)),
		DurationTag,
	); err != nil {
		panic(fmt.Sprintf("signal: registering cbor duration tag: %v", err))
	}

	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncModeWithTags(tagSet)
	if err != nil {
		panic(fmt.Sprintf("signal: building cbor encode mode: %v", err))
	}
	encMode = em

	dm, err := cbor.DecOptions{}.DecModeWithTags(tagSet)
	if err != nil {
		panic(fmt.Sprintf("signal: building cbor decode mode: %v", err))
	}
	decMode = dm
}

// wireSignal is the CBOR-serializable shadow of Signal: durations are
// carried through cborDuration so the tag-1337 encoding applies, instead
// of the plain integer nanosecond encoding time.Duration would otherwise
// get.
type wireSignal struct {
	Device    string       `cbor:"device"`
	TS        time.Time    `cbor:"ts"`
	Frequency float64      `cbor:"frequency"`
	Duration  cborDuration `cbor:"duration"`
	MaxDBW    float64      `cbor:"max_dbw"`
	AvgDBW    float64      `cbor:"avg_dbw"`
	StdDB     float64      `cbor:"std_db"`
	NoiseDBW  float64      `cbor:"noise_dbw"`
	SNRdB     float64      `cbor:"snr_db"`
}

// MarshalCBOR encodes s using the self-describing record format of
// spec.md §6, with duration carried under tag 1337 as seconds.
func (s Signal) MarshalCBOR() ([]byte, error) {
	w := wireSignal{
		Device:    s.Device.String(),
		TS:        s.TS,
		Frequency: s.Frequency,
		Duration:  cborDuration(s.Duration.Seconds()),
		MaxDBW:    s.MaxDBW,
		AvgDBW:    s.AvgDBW,
		StdDB:     s.StdDB,
		NoiseDBW:  s.NoiseDBW,
		SNRdB:     s.SNRdB,
	}
	return encMode.Marshal(w)
}

// UnmarshalCBOR decodes s from the wire format produced by MarshalCBOR.
// The wire payload carries only the device's string representation, so
// the device is always decoded as a serial-form DeviceID holding that
// string; an index-form device comes back with the same String() but
// does not Equal the original.
func (s *Signal) UnmarshalCBOR(data []byte) error {
	var w wireSignal
	if err := decMode.Unmarshal(data, &w); err != nil {
		return err
	}
	s.Device = SerialDeviceID(w.Device)
	s.TS = w.TS
	s.Frequency = w.Frequency
	s.Duration = time.Duration(float64(w.Duration) * float64(time.Second))
	s.MaxDBW = w.MaxDBW
	s.AvgDBW = w.AvgDBW
	s.StdDB = w.StdDB
	s.NoiseDBW = w.NoiseDBW
	s.SNRdB = w.SNRdB
	return nil
}

// wireAvg carries one slot of MatchedSignal's per-device Avg values,
// since CBOR has no native "optional float" — Present distinguishes a
// real (possibly zero) average from an absent device.
type wireAvg struct {
	Present bool    `cbor:"present"`
	AvgDBW  float64 `cbor:"avg_dbw,omitempty"`
}

type wireMatchedSignal struct {
	Devices   []string     `cbor:"devices"`
	TS        time.Time    `cbor:"ts"`
	Duration  cborDuration `cbor:"duration"`
	Frequency float64      `cbor:"frequency"`
	Avgs      []wireAvg    `cbor:"avgs"`
}

// MarshalCBOR encodes m as a self-describing record per spec.md §6.
func (m MatchedSignal) MarshalCBOR() ([]byte, error) {
	devices := make([]string, len(m.Devices))
	avgs := make([]wireAvg, len(m.Devices))
	for i, d := range m.Devices {
		devices[i] = d.String()
		if v, ok := m.Avg(i); ok {
			avgs[i] = wireAvg{Present: true, AvgDBW: v}
		}
	}
	w := wireMatchedSignal{
		Devices:   devices,
		TS:        m.TS,
		Duration:  cborDuration(m.Duration.Seconds()),
		Frequency: m.Frequency,
		Avgs:      avgs,
	}
	return encMode.Marshal(w)
}

// UnmarshalCBOR decodes m from the wire format produced by MarshalCBOR.
func (m *MatchedSignal) UnmarshalCBOR(data []byte) error {
	var w wireMatchedSignal
	if err := decMode.Unmarshal(data, &w); err != nil {
		return err
	}
	devices := make([]DeviceID, len(w.Devices))
	for i, d := range w.Devices {
		devices[i] = SerialDeviceID(d)
	}
	m.Devices = devices
	m.TS = w.TS
	m.Duration = time.Duration(float64(w.Duration) * float64(time.Second))
	m.Frequency = w.Frequency
	m.members = make([]Signal, len(devices))
	m.present = make([]bool, len(devices))
	for i, a := range w.Avgs {
		if !a.Present {
			continue
		}
		m.present[i] = true
		m.members[i] = Signal{Device: devices[i], TS: m.TS, AvgDBW: a.AvgDBW, Frequency: m.Frequency}
	}
	return nil
}
