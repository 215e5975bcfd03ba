package signal

import (
	"fmt"
	"strconv"
	"time"
)

// csvTimeLayout is UTC ISO-8601 with microsecond precision, per spec.md §6.
const csvTimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// SignalHeader is the CSV header row for a stream of Signal records.
var SignalHeader = []string{
	"device", "ts", "frequency", "duration_s",
	"max_dbw", "avg_dbw", "std_db", "noise_dbw", "snr_db",
}

// CSVRow renders s as a CSV row matching SignalHeader, in seconds for
// the duration column per spec.md §6.
func (s Signal) CSVRow() []string {
	return []string{
		s.Device.String(),
		s.TS.UTC().Format(csvTimeLayout),
		formatFloat(s.Frequency),
		formatFloat(s.Duration.Seconds()),
		formatFloat(s.MaxDBW),
		formatFloat(s.AvgDBW),
		formatFloat(s.StdDB),
		formatFloat(s.NoiseDBW),
		formatFloat(s.SNRdB),
	}
}

// MatchedSignalHeader is the CSV header row for a stream of
// MatchedSignal records. The avg columns are generated per configured
// device count by MatchedSignalHeaderFor, since the device set is only
// known at runtime.
var MatchedSignalHeader = []string{"ts", "duration_s", "frequency"}

// MatchedSignalHeaderFor builds the full header row for a matcher
// configured with the given devices, one avg_<device>_dbw column each.
func MatchedSignalHeaderFor(devices []DeviceID) []string {
	header := append([]string{}, MatchedSignalHeader...)
	for _, d := range devices {
		header = append(header, fmt.Sprintf("avg_%s_dbw", d.String()))
	}
	return header
}

// CSVRow renders m as a CSV row matching MatchedSignalHeaderFor(m.Devices).
// Absent devices render as an empty field.
func (m MatchedSignal) CSVRow() []string {
	row := []string{
		m.TS.UTC().Format(csvTimeLayout),
		formatFloat(m.Duration.Seconds()),
		formatFloat(m.Frequency),
	}
	for i := range m.Devices {
		if v, ok := m.Avg(i); ok {
			row = append(row, formatFloat(v))
		} else {
			row = append(row, "")
		}
	}
	return row
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// StateMessageHeader is the CSV header row for a stream of StateMessage
// records.
var StateMessageHeader = []string{"device", "ts", "state"}

// CSVRow renders m as a CSV row matching StateMessageHeader.
func (m StateMessage) CSVRow() []string {
	return []string{
		m.Device.String(),
		m.TS.UTC().Format(csvTimeLayout),
		m.State.String(),
	}
}

// ParseCSVTime parses a timestamp formatted by CSVRow.
func ParseCSVTime(s string) (time.Time, error) {
	return time.Parse(csvTimeLayout, s)
}
