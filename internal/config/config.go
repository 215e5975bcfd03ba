// Package config loads the flat key-value configuration of spec.md §6
// from a YAML file, overlaid by CLI flags, mirroring the teacher's
// nested-struct-per-concern config layout.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DeviceConfig pairs a device identifier with its calibration offset.
type DeviceConfig struct {
	ID            string  `yaml:"device"`
	CalibrationDB float64 `yaml:"calibration"`
}

// RFConfig are the RF front-end tunables shared by all devices.
type RFConfig struct {
	CenterFreq float64 `yaml:"center_freq"`
	SampleRate float64 `yaml:"sample_rate"`
	Gain       float64 `yaml:"gain"`
}

// FFTConfig configures the spectrogram engine.
type FFTConfig struct {
	Nperseg int    `yaml:"fft_nperseg"`
	Window  string `yaml:"fft_window"`
}

// SignalConfig configures the pulse extractor's gates.
type SignalConfig struct {
	ThresholdDBW   float64 `yaml:"signal_threshold_dbw"`
	SNRThresholdDB float64 `yaml:"snr_threshold_db"`
	MinDurationMS  float64 `yaml:"signal_min_duration_ms"`
	MaxDurationMS  float64 `yaml:"signal_max_duration_ms"`
}

// SupervisionConfig configures watchdogs and restart budgets.
type SupervisionConfig struct {
	SDRTimeoutS     float64 `yaml:"sdr_timeout_s"`
	SDRMaxRestart   int     `yaml:"sdr_max_restart"`
	StateUpdateS    float64 `yaml:"state_update_s"`
}

// MatchingConfig configures the cross-device matcher's tolerances.
type MatchingConfig struct {
	TimeoutS      float64 `yaml:"matching_timeout_s"`
	TimeDiffS     float64 `yaml:"matching_time_diff_s"`
	BandwidthHz   float64 `yaml:"matching_bandwidth_hz"`
	DurationDiffMS float64 `yaml:"matching_duration_diff_ms"`
}

// ScheduleInterval is one non-overlapping daily [Start,Stop) window in
// local wall time, per spec.md §4.7.
type ScheduleInterval struct {
	Start time.Duration
	Stop  time.Duration
}

// CSVConfig configures the CSV consumer.
type CSVConfig struct {
	Enabled bool   `yaml:"csv"`
	Path    string `yaml:"csv_path"`
	Station string `yaml:"station"`
}

// MQTTConfig configures the wire publisher consumer.
type MQTTConfig struct {
	Enabled bool   `yaml:"mqtt"`
	Host    string `yaml:"mqtt_host"`
	Port    int    `yaml:"mqtt_port"`
}

// PrometheusConfig configures the supervisor's /metrics endpoint.
type PrometheusConfig struct {
	Enabled bool   `yaml:"prometheus"`
	Listen  string `yaml:"prometheus_listen"`
}

// LoggingConfig configures verbosity.
type LoggingConfig struct {
	Verbose int `yaml:"verbose"`
}

// Config is the complete, validated configuration of one receiver run.
// It is assembled from rawConfig by build, not unmarshaled directly.
type Config struct {
	Devices    []DeviceConfig
	RF         RFConfig
	FFT        FFTConfig
	Signal     SignalConfig
	Supervise  SupervisionConfig
	Matching   MatchingConfig
	Schedule   []ScheduleInterval
	CSV        CSVConfig
	MQTT       MQTTConfig
	Prometheus PrometheusConfig
	Logging    LoggingConfig
}

// rawConfig is the literal YAML document shape, matching spec.md §6's
// flat key-value table, grouped the way the teacher's config.go groups
// its YAML sections.
type rawConfig struct {
	Device      []string `yaml:"device"`
	Calibration []float64 `yaml:"calibration"`

	CenterFreq float64 `yaml:"center_freq"`
	SampleRate float64 `yaml:"sample_rate"`
	Gain       float64 `yaml:"gain"`

	FFTNperseg int    `yaml:"fft_nperseg"`
	FFTWindow  string `yaml:"fft_window"`

	SignalThresholdDBW float64 `yaml:"signal_threshold_dbw"`
	SNRThresholdDB     float64 `yaml:"snr_threshold_db"`
	SignalMinDurationMS float64 `yaml:"signal_min_duration_ms"`
	SignalMaxDurationMS float64 `yaml:"signal_max_duration_ms"`

	SDRTimeoutS   float64 `yaml:"sdr_timeout_s"`
	SDRMaxRestart int     `yaml:"sdr_max_restart"`
	StateUpdateS  float64 `yaml:"state_update_s"`

	MatchingTimeoutS       float64 `yaml:"matching_timeout_s"`
	MatchingTimeDiffS      float64 `yaml:"matching_time_diff_s"`
	MatchingBandwidthHz    float64 `yaml:"matching_bandwidth_hz"`
	MatchingDurationDiffMS float64 `yaml:"matching_duration_diff_ms"`

	Schedule []string `yaml:"schedule"`

	CSV     bool   `yaml:"csv"`
	CSVPath string `yaml:"csv_path"`
	Station string `yaml:"station"`

	MQTT     bool   `yaml:"mqtt"`
	MQTTHost string `yaml:"mqtt_host"`
	MQTTPort int    `yaml:"mqtt_port"`

	Prometheus       bool   `yaml:"prometheus"`
	PrometheusListen string `yaml:"prometheus_listen"`

	Verbose int `yaml:"verbose"`
}

// Load reads the YAML file at path (if non-empty), then overlays the CLI
// flags parsed from args, and validates the result. Flags take
// precedence over the file, matching the original's config-then-flags
// precedence (spec.md's out-of-scope ArgConfParser collaborator,
// re-expressed with stdlib flag+yaml instead of ported verbatim).
func Load(path string, args []string) (*Config, error) {
	var raw rawConfig
	raw.FFTNperseg = 256
	raw.FFTWindow = "hann"
	raw.SDRTimeoutS = 5
	raw.SDRMaxRestart = 3
	raw.StateUpdateS = 60
	raw.MatchingTimeoutS = 2
	raw.MatchingBandwidthHz = 20000
	raw.CSVPath = "."
	raw.Station = "station"
	raw.PrometheusListen = ":9090"

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	fs := flag.NewFlagSet("radiotracking", flag.ContinueOnError)
	fs.Float64Var(&raw.CenterFreq, "center-freq", raw.CenterFreq, "RF center frequency, Hz")
	fs.Float64Var(&raw.SampleRate, "sample-rate", raw.SampleRate, "SDR sample rate, Hz")
	fs.Float64Var(&raw.Gain, "gain", raw.Gain, "SDR gain")
	fs.IntVar(&raw.FFTNperseg, "fft-nperseg", raw.FFTNperseg, "FFT segment length")
	fs.StringVar(&raw.FFTWindow, "fft-window", raw.FFTWindow, "FFT window function")
	fs.Float64Var(&raw.SignalThresholdDBW, "signal-threshold-dbw", raw.SignalThresholdDBW, "absolute signal threshold, dBW")
	fs.Float64Var(&raw.SNRThresholdDB, "snr-threshold-db", raw.SNRThresholdDB, "SNR threshold, dB")
	fs.Float64Var(&raw.SignalMinDurationMS, "signal-min-duration-ms", raw.SignalMinDurationMS, "minimum pulse duration, ms")
	fs.Float64Var(&raw.SignalMaxDurationMS, "signal-max-duration-ms", raw.SignalMaxDurationMS, "maximum pulse duration, ms")
	fs.Float64Var(&raw.SDRTimeoutS, "sdr-timeout-s", raw.SDRTimeoutS, "SDR watchdog timeout, seconds")
	fs.IntVar(&raw.SDRMaxRestart, "sdr-max-restart", raw.SDRMaxRestart, "max worker restarts before fatal exit")
	fs.Float64Var(&raw.StateUpdateS, "state-update-s", raw.StateUpdateS, "minimum interval between repeated state heartbeats, seconds")
	fs.Float64Var(&raw.MatchingTimeoutS, "matching-timeout-s", raw.MatchingTimeoutS, "matcher group expiry, seconds")
	fs.Float64Var(&raw.MatchingTimeDiffS, "matching-time-diff-s", raw.MatchingTimeDiffS, "matcher time tolerance, seconds")
	fs.Float64Var(&raw.MatchingBandwidthHz, "matching-bandwidth-hz", raw.MatchingBandwidthHz, "matcher frequency tolerance, Hz")
	fs.Float64Var(&raw.MatchingDurationDiffMS, "matching-duration-diff-ms", raw.MatchingDurationDiffMS, "matcher duration tolerance, ms (0 disables)")
	fs.BoolVar(&raw.CSV, "csv", raw.CSV, "enable CSV consumer")
	fs.StringVar(&raw.CSVPath, "csv-path", raw.CSVPath, "CSV output directory")
	fs.StringVar(&raw.Station, "station", raw.Station, "station name, used in CSV filenames")
	fs.BoolVar(&raw.MQTT, "mqtt", raw.MQTT, "enable MQTT wire publisher")
	fs.StringVar(&raw.MQTTHost, "mqtt-host", raw.MQTTHost, "MQTT broker host")
	fs.IntVar(&raw.MQTTPort, "mqtt-port", raw.MQTTPort, "MQTT broker port")
	fs.BoolVar(&raw.Prometheus, "prometheus", raw.Prometheus, "enable Prometheus /metrics endpoint")
	fs.StringVar(&raw.PrometheusListen, "prometheus-listen", raw.PrometheusListen, "address for the /metrics and /healthz endpoints")
	fs.IntVar(&raw.Verbose, "v", raw.Verbose, "verbosity level")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return build(raw)
}

func build(raw rawConfig) (*Config, error) {
	if len(raw.Device) == 0 {
		return nil, fmt.Errorf("config: at least one device must be configured")
	}
	if len(raw.Calibration) != len(raw.Device) {
		return nil, fmt.Errorf(
			"config: calibration vector length (%d) does not match device count (%d)",
			len(raw.Calibration), len(raw.Device),
		)
	}

	devices := make([]DeviceConfig, len(raw.Device))
	for i, d := range raw.Device {
		devices[i] = DeviceConfig{ID: d, CalibrationDB: raw.Calibration[i]}
	}

	schedule, err := parseSchedule(raw.Schedule)
	if err != nil {
		return nil, err
	}
	if err := validateScheduleNoOverlap(schedule); err != nil {
		return nil, err
	}

	var durDiff float64
	if raw.MatchingDurationDiffMS > 0 {
		durDiff = raw.MatchingDurationDiffMS
	}

	return &Config{
		Devices: devices,
		RF: RFConfig{
			CenterFreq: raw.CenterFreq,
			SampleRate: raw.SampleRate,
			Gain:       raw.Gain,
		},
		FFT: FFTConfig{Nperseg: raw.FFTNperseg, Window: raw.FFTWindow},
		Signal: SignalConfig{
			ThresholdDBW:   raw.SignalThresholdDBW,
			SNRThresholdDB: raw.SNRThresholdDB,
			MinDurationMS:  raw.SignalMinDurationMS,
			MaxDurationMS:  raw.SignalMaxDurationMS,
		},
		Supervise: SupervisionConfig{
			SDRTimeoutS:   raw.SDRTimeoutS,
			SDRMaxRestart: raw.SDRMaxRestart,
			StateUpdateS:  raw.StateUpdateS,
		},
		Matching: MatchingConfig{
			TimeoutS:       raw.MatchingTimeoutS,
			TimeDiffS:      raw.MatchingTimeDiffS,
			BandwidthHz:    raw.MatchingBandwidthHz,
			DurationDiffMS: durDiff,
		},
		Schedule: schedule,
		CSV: CSVConfig{
			Enabled: raw.CSV,
			Path:    raw.CSVPath,
			Station: raw.Station,
		},
		MQTT: MQTTConfig{
			Enabled: raw.MQTT,
			Host:    raw.MQTTHost,
			Port:    raw.MQTTPort,
		},
		Prometheus: PrometheusConfig{
			Enabled: raw.Prometheus,
			Listen:  raw.PrometheusListen,
		},
		Logging: LoggingConfig{Verbose: raw.Verbose},
	}, nil
}

// parseSchedule parses "HH:MM:SS-HH:MM:SS" daily intervals.
func parseSchedule(raw []string) ([]ScheduleInterval, error) {
	out := make([]ScheduleInterval, 0, len(raw))
	for _, s := range raw {
		var sh, sm, ss, eh, em, es int
		n, err := fmt.Sscanf(s, "%d:%d:%d-%d:%d:%d", &sh, &sm, &ss, &eh, &em, &es)
		if err != nil || n != 6 {
			return nil, fmt.Errorf("config: invalid schedule interval %q", s)
		}
		start := time.Duration(sh)*time.Hour + time.Duration(sm)*time.Minute + time.Duration(ss)*time.Second
		stop := time.Duration(eh)*time.Hour + time.Duration(em)*time.Minute + time.Duration(es)*time.Second
		if stop <= start {
			return nil, fmt.Errorf("config: schedule interval %q does not have stop after start", s)
		}
		out = append(out, ScheduleInterval{Start: start, Stop: stop})
	}
	return out, nil
}

// validateScheduleNoOverlap rejects any configuration where two
// intervals share any instant, a fatal configuration error per
// spec.md §4.7.
func validateScheduleNoOverlap(schedule []ScheduleInterval) error {
	for i := 0; i < len(schedule); i++ {
		for j := i + 1; j < len(schedule); j++ {
			a, b := schedule[i], schedule[j]
			if a.Start < b.Stop && b.Start < a.Stop {
				return fmt.Errorf("config: schedule intervals %d and %d overlap", i, j)
			}
		}
	}
	return nil
}
