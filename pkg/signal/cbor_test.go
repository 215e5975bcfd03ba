package signal

import (
	"testing"
	"time"
)

func TestSignalCBORRoundTrip(t *testing.T) {
	orig := Signal{
		Device:    SerialDeviceID("00000001"),
		TS:        time.Date(2026, 3, 4, 10, 11, 12, 0, time.UTC),
		Frequency: 150100000,
		Duration:  123 * time.Millisecond,
		MaxDBW:    -30.5,
		AvgDBW:    -35.25,
		StdDB:     1.5,
		NoiseDBW:  -70,
		SNRdB:     34.75,
	}

	data, err := orig.MarshalCBOR()
	if err != nil {
		t.Fatalf("MarshalCBOR: %v", err)
	}

	var got Signal
	if err := got.UnmarshalCBOR(data); err != nil {
		t.Fatalf("UnmarshalCBOR: %v", err)
	}

	if got.Device.String() != orig.Device.String() {
		t.Errorf("device: got %v, want %v", got.Device, orig.Device)
	}
	if !got.TS.Equal(orig.TS) {
		t.Errorf("ts: got %v, want %v", got.TS, orig.TS)
	}
	if got.Duration != orig.Duration {
		t.Errorf("duration: got %v, want %v", got.Duration, orig.Duration)
	}
	if got.Frequency != orig.Frequency || got.MaxDBW != orig.MaxDBW || got.AvgDBW != orig.AvgDBW {
		t.Errorf("numeric fields mismatch: got %+v, want %+v", got, orig)
	}
}

func TestMatchedSignalCBORRoundTrip(t *testing.T) {
	devices := []DeviceID{IndexDeviceID(0), IndexDeviceID(1)}
	base := time.Date(2026, 3, 4, 10, 11, 12, 0, time.UTC)

	orig := NewMatchedSignal(devices, devices[0], Signal{
		Device: devices[0], TS: base, Duration: time.Second, Frequency: 150000000, AvgDBW: -40,
	})
	orig.AddMember(devices[1], Signal{
		Device: devices[1], TS: base.Add(50 * time.Millisecond), Duration: 900 * time.Millisecond, Frequency: 150000200, AvgDBW: -45,
	})

	data, err := orig.MarshalCBOR()
	if err != nil {
		t.Fatalf("MarshalCBOR: %v", err)
	}

	var got MatchedSignal
	if err := got.UnmarshalCBOR(data); err != nil {
		t.Fatalf("UnmarshalCBOR: %v", err)
	}

	if got.MemberCount() != orig.MemberCount() {
		t.Fatalf("member count: got %d, want %d", got.MemberCount(), orig.MemberCount())
	}
	if avg, ok := got.Avg(0); !ok || avg != -40 {
		t.Errorf("device 0 avg: got %v (ok=%v), want -40", avg, ok)
	}
	if avg, ok := got.Avg(1); !ok || avg != -45 {
		t.Errorf("device 1 avg: got %v (ok=%v), want -45", avg, ok)
	}
}
