// Daemon turning a bluetooth game controller into vehicle control commands.
//
// The ingest goroutine blocks on the controller's event stream and folds every
// event into a latest-value snapshot; the drive loop polls that snapshot at
// its own tick rate and never touches hardware I/O. Besides the normal run
// mode there are two helper modes for authoring a new controller profile:
// "log" prints every resolved (name, value) pair, "calibrate" measures the
// event arrival rate.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edaniels/golog"
	"github.com/spf13/pflag"
	goutils "go.viam.com/utils"

	"github.com/eike-welk/donkeypart-bluetooth-game-controller/internal/config"
	"github.com/eike-welk/donkeypart-bluetooth-game-controller/internal/drive"
	"github.com/eike-welk/donkeypart-bluetooth-game-controller/internal/evdev"
	"github.com/eike-welk/donkeypart-bluetooth-game-controller/internal/ingest"
	"github.com/eike-welk/donkeypart-bluetooth-game-controller/internal/monitor"
	"github.com/eike-welk/donkeypart-bluetooth-game-controller/internal/profile"
)

var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

const (
	drivePollInterval = 50 * time.Millisecond
	calibrateBatches  = 10
)

func main() {
	var (
		configPath  = pflag.String("config", "", "path to config file")
		mode        = pflag.String("mode", "run", "run mode: run, log or calibrate")
		device      = pflag.String("device", "", "device name search term")
		profileSpec = pflag.String("profile", "", "builtin profile name or profile YAML path")
		addr        = pflag.String("addr", "", "monitor listen address")
		debug       = pflag.Bool("debug", false, "enable debug logging")
	)
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		golog.Global().Fatalw("loading config", "error", err)
	}
	if pflag.CommandLine.Changed("device") {
		cfg.Device = *device
	}
	if pflag.CommandLine.Changed("profile") {
		cfg.Profile = *profileSpec
	}
	if pflag.CommandLine.Changed("addr") {
		cfg.Addr = *addr
	}
	if *debug {
		cfg.Debug = true
	}

	logger := golog.NewDevelopmentLogger("btcontroller")
	if cfg.Debug {
		logger = golog.NewDebugLogger("btcontroller")
	}

	// A malformed profile must refuse to start, not run with an ambiguous
	// mapping.
	table, err := profile.Select(cfg.Profile)
	if err != nil {
		logger.Fatalw("invalid profile", "profile", cfg.Profile, "error", err)
	}
	logger.Infow("profile loaded", "name", table.Name())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, shutdownSignals...)
	goutils.PanicCapturingGo(func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	})

	src, err := evdev.Find(ctx, cfg.Device, logger)
	if err != nil {
		logger.Fatalw("locating controller", "device", cfg.Device, "error", err)
	}

	machine := drive.NewMachine(cfg.ScaleStep)
	pub := drive.NewPublisher()
	metrics := monitor.NewMetrics()

	var (
		obs         ingest.Observer
		srv         *monitor.Server
		meter       *monitor.Meter
		serverErrCh = make(chan error, 1)
	)
	switch *mode {
	case "run":
		hub := monitor.NewHub(logger.Named("hub"))
		goutils.PanicCapturingGo(func() { hub.Run(ctx) })
		obs = monitor.NewObserver(hub, metrics, logger)

		srv = monitor.NewServer(hub, metrics, pub, logger.Named("monitor"), cfg.Addr)
		goutils.PanicCapturingGo(func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				serverErrCh <- err
			}
		})

		goutils.PanicCapturingGo(func() { driveLoop(ctx, pub, logger.Named("drive")) })
	case "log":
		obs = &logObserver{logger: logger}
	case "calibrate":
		logger.Info("measuring event rate: move both sticks around as fast as you can")
		meter = monitor.NewMeter(0)
		obs = &calibrateObserver{meter: meter, logger: logger, cancel: cancel}
	default:
		logger.Fatalf("unknown mode %q", *mode)
	}

	ing := ingest.New(src, table, machine, pub, logger.Named("ingest"), ingest.Options{
		MaxRetries: cfg.MaxReadRetries,
		Backoff:    cfg.ReadBackoff,
		Observer:   obs,
	})

	ingestDone := make(chan struct{})
	var ingestErr error
	goutils.PanicCapturingGo(func() {
		ingestErr = ing.Run(ctx)
		close(ingestDone)
	})

	select {
	case err := <-serverErrCh:
		logger.Errorw("monitor server error", "error", err)
		cancel()
		<-ingestDone
	case <-ingestDone:
		cancel()
	}
	if ingestErr != nil {
		logger.Errorw("controller ingest failed", "error", ingestErr)
	}

	if meter != nil {
		if max, avg, ok := meter.Summary(); ok {
			logger.Infof("event rate: max %.1f/s, average %.1f/s", max, avg)
		} else {
			logger.Info("not enough events for a rate summary")
		}
	}

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorw("monitor shutdown error", "error", err)
		}
	}

	logger.Info("stopped")
}

// driveLoop stands in for the external drive subsystem: it polls the latest
// command tuple at a fixed tick rate and logs changes at debug level.
func driveLoop(ctx context.Context, pub *drive.Publisher, logger golog.Logger) {
	ticker := time.NewTicker(drivePollInterval)
	defer ticker.Stop()

	last := pub.Latest()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := pub.Latest()
			if st != last {
				logger.Debugw("control state",
					"steering", st.Steering,
					"throttle", st.Throttle,
					"mode", st.Mode,
					"recording", st.Recording)
				last = st
			}
		}
	}
}

// logObserver prints every resolved pair, for checking a profile against the
// physical controls.
type logObserver struct {
	logger golog.Logger
}

func (o *logObserver) Resolved(ev ingest.Resolved) {
	o.logger.Infow("input", "name", ev.Name, "kind", ev.Kind, "value", ev.Value)
}

func (o *logObserver) Unknown(code uint16) {
	o.logger.Infow("unknown code", "code", code)
}

// calibrateObserver feeds the rate meter and stops the daemon once enough
// batches are in.
type calibrateObserver struct {
	meter  *monitor.Meter
	logger golog.Logger
	cancel context.CancelFunc
}

func (o *calibrateObserver) Resolved(ingest.Resolved) {
	if rate, done := o.meter.Tick(time.Now()); done {
		o.logger.Infof("events per second: %.1f", rate)
		if o.meter.Batches() >= calibrateBatches {
			o.cancel()
		}
	}
}

func (o *calibrateObserver) Unknown(uint16) {}
