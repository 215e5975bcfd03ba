// Command radiotracking runs the multi-antenna VHF telemetry receiver
// of spec.md: one acquisition worker per configured SDR, a cross-device
// matcher, and a fan-out of detections to CSV, MQTT, and a dashboard
// snapshot buffer.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nature40/radiotracking-go/internal/config"
	csvconsumer "github.com/nature40/radiotracking-go/internal/consumer/csv"
	"github.com/nature40/radiotracking-go/internal/consumer/dashboard"
	"github.com/nature40/radiotracking-go/internal/consumer/wire"
	"github.com/nature40/radiotracking-go/internal/fanout"
	"github.com/nature40/radiotracking-go/internal/match"
	"github.com/nature40/radiotracking-go/internal/sdr"
	"github.com/nature40/radiotracking-go/internal/supervisor"
	"github.com/nature40/radiotracking-go/internal/worker"
	sig "github.com/nature40/radiotracking-go/pkg/signal"
)

const (
	exitOK             = 0
	exitConfigFatal    = 1
	exitWorkerExhausted = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath, flag.Args())
	if err != nil {
		log.Printf("fatal configuration error: %v", err)
		return exitConfigFatal
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	devices := make([]sig.DeviceID, len(cfg.Devices))
	for i := range cfg.Devices {
		devices[i] = sig.IndexDeviceID(uint32(i))
	}

	queue := fanout.New(1024, 200*time.Millisecond)

	matcher := match.New(devices, match.Tolerances{
		Time:         time.Duration(cfg.Matching.TimeDiffS * float64(time.Second)),
		Bandwidth:    cfg.Matching.BandwidthHz,
		DurationDiff: time.Duration(cfg.Matching.DurationDiffMS) * time.Millisecond,
		Timeout:      time.Duration(cfg.Matching.TimeoutS * float64(time.Second)),
	}, queue)
	queue.Register(fanout.ConsumerFunc(matcher.Consume))

	if cfg.CSV.Enabled {
		writer, err := csvconsumer.New(cfg.CSV.Path, cfg.CSV.Station, time.Now(), devices)
		if err != nil {
			log.Printf("fatal configuration error: %v", err)
			return exitConfigFatal
		}
		defer writer.Close()
		queue.Register(writer)
	}

	if cfg.MQTT.Enabled {
		publisher, err := wire.NewPublisher(wire.Config{
			Broker: fmt.Sprintf("tcp://%s:%d", cfg.MQTT.Host, cfg.MQTT.Port),
			Topic:  "radiotracking",
		})
		if err != nil {
			log.Printf("mqtt publisher unavailable: %v", err)
		} else {
			defer publisher.Close()
			asyncPublisher := fanout.NewAsync("wire", publisher, 256)
			defer asyncPublisher.Close()
			queue.Register(asyncPublisher)
		}
	}

	dashboardBuf := dashboard.New(500)
	asyncDashboard := fanout.NewAsync("dashboard", dashboardBuf, 256)
	defer asyncDashboard.Close()
	queue.Register(asyncDashboard)

	// onFatal runs on this goroutine (inside sup.Run), so a plain bool is
	// enough to carry the outcome back to the exit code.
	workersExhausted := false
	sup := supervisor.New(queue, time.Second, func(error) {
		workersExhausted = true
		stop()
	})

	for i, d := range cfg.Devices {
		device := devices[i]
		workerCfg := worker.Config{
			Device:             device,
			CalibrationDB:      d.CalibrationDB,
			SampleRate:         cfg.RF.SampleRate,
			CenterFreq:         cfg.RF.CenterFreq,
			Gain:               cfg.RF.Gain,
			FFTNperseg:         cfg.FFT.Nperseg,
			FFTWindow:          cfg.FFT.Window,
			SignalMinDuration:  time.Duration(cfg.Signal.MinDurationMS) * time.Millisecond,
			SignalMaxDuration:  time.Duration(cfg.Signal.MaxDurationMS) * time.Millisecond,
			SignalThresholdDBW: cfg.Signal.ThresholdDBW,
			SNRThresholdDB:     cfg.Signal.SNRThresholdDB,
			SDRTimeout:         time.Duration(cfg.Supervise.SDRTimeoutS * float64(time.Second)),
			StateUpdateEvery:   time.Duration(cfg.Supervise.StateUpdateS * float64(time.Second)),
			BlockLen:           int(cfg.RF.SampleRate), // one second of samples per block
		}

		sup.AddWorker(workerCfg, cfg.Supervise.SDRMaxRestart, func(id sig.DeviceID) (sdr.Device, error) {
			idx, err := deviceIndex(cfg.Devices, id)
			if err != nil {
				return nil, err
			}
			return newHardwareDevice(idx)
		})
	}

	schedule := supervisor.NewSchedule(cfg.Schedule)

	if cfg.Prometheus.Enabled {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", sup.HandleHealthz)
		sup.ServeMetrics(mux)
		server := &http.Server{Addr: cfg.Prometheus.Listen, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("metrics server error: %v", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	sup.Run(ctx, schedule)
	matcher.Flush()

	if workersExhausted {
		return exitWorkerExhausted
	}
	return exitOK
}

func deviceIndex(devices []config.DeviceConfig, id sig.DeviceID) (int, error) {
	for i := range devices {
		if sig.IndexDeviceID(uint32(i)).Equal(id) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("main: unknown device %s", id)
}

// newHardwareDevice is the real-hardware wiring point; without the
// rtlsdr build tag no cgo driver is linked, so the simulator backs
// local runs and tests (see internal/sdr/device_rtlsdr.go, a declared
// collaborator stub per spec.md §6).
func newHardwareDevice(index int) (sdr.Device, error) {
	return sdr.NewSimulator(300000, 1e-8, nil, int64(index)), nil
}
