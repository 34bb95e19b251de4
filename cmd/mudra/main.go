// Command mudra watches the camera for static hand gestures and sends each
// change of gesture to a receiver over UDP.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/notify"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tray"
)

// flags holds the command line overrides. Numeric flags use -1 for "not
// given" so the config file value stands.
type flags struct {
	config          *string
	device          *int
	width           *int
	height          *int
	staticImageMode *bool
	minDetection    *float64
	minTracking     *float64
	addr            *string
	target          *string
	board           *bool
	landmarks       *bool
	tray            *bool
}

func main() {
	parser := argparse.NewParser("mudra", "Hand gesture sender")
	f := flags{
		config:          parser.String("c", "config", &argparse.Options{Help: "JSON configuration file", Default: ""}),
		device:          parser.Int("d", "device", &argparse.Options{Help: "Camera device index", Default: -1}),
		width:           parser.Int("", "width", &argparse.Options{Help: "Capture width", Default: -1}),
		height:          parser.Int("", "height", &argparse.Options{Help: "Capture height", Default: -1}),
		staticImageMode: parser.Flag("", "static-image-mode", &argparse.Options{Help: "Detect hands on every frame independently", Default: false}),
		minDetection:    parser.Float("", "min-detection-confidence", &argparse.Options{Help: "Minimum hand detection confidence", Default: -1.0}),
		minTracking:     parser.Float("", "min-tracking-confidence", &argparse.Options{Help: "Minimum hand tracking confidence", Default: -1.0}),
		addr:            parser.String("", "addr", &argparse.Options{Help: "Status server address", Default: ""}),
		target:          parser.String("", "target", &argparse.Options{Help: "Receiver address host:port", Default: ""}),
		board:           parser.Flag("", "board", &argparse.Options{Help: "Send to the receiver board at " + notify.BoardTarget, Default: false}),
		landmarks:       parser.Flag("", "landmarks", &argparse.Options{Help: "Append landmarks to each datagram", Default: false}),
		tray:            parser.Flag("", "tray", &argparse.Options{Help: "Show the system tray menu", Default: false}),
	}
	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := loadConfig(f)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}

	if err := run(logger, cfg); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(f flags) (*config.Config, error) {
	cfg := config.Default()
	if *f.config != "" {
		loaded, err := config.Load(*f.config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if *f.device >= 0 {
		cfg.Capture.Device = *f.device
	}
	if *f.width > 0 {
		cfg.Capture.Width = *f.width
	}
	if *f.height > 0 {
		cfg.Capture.Height = *f.height
	}
	if *f.staticImageMode {
		cfg.Detector.StaticImageMode = true
	}
	if *f.minDetection >= 0 {
		cfg.Detector.MinConfidence = *f.minDetection
	}
	if *f.minTracking >= 0 {
		cfg.Detector.MinTrackingConf = *f.minTracking
	}
	if *f.addr != "" {
		cfg.Server.Enabled = true
		cfg.Server.Addr = *f.addr
	}
	if *f.board {
		cfg.Sink.Target = notify.BoardTarget
	}
	if *f.target != "" {
		cfg.Sink.Target = *f.target
	}
	if *f.landmarks {
		cfg.Sink.Format = notify.FormatLandmarks
	}
	if *f.tray {
		cfg.Tray = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(logger logs.Log, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	classifier, err := gesture.NewClassifier(cfg.Classifier)
	if err != nil {
		return err
	}
	tracker := gesture.NewTracker(classifier, cfg.Tracker)
	adapter, err := detector.NewAdapter(cfg.Classifier.Space, cfg.Capture.Width, cfg.Capture.Height)
	if err != nil {
		return err
	}

	var det detector.Detector
	if mp, err := detector.NewMediaPipeDetector(cfg.Detector); err == nil {
		det = mp
		logger.Infof("Using MediaPipe hand detection")
	} else {
		logger.Warnf("MediaPipe not available (%v), using mock detector", err)
		det = detector.NewMockDetector()
	}

	enabled := true
	var st *store.Store
	var sessionID string
	if cfg.Journal {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		st, err = store.New(cfg.DatabasePath())
		if err != nil {
			return fmt.Errorf("failed to initialize store: %w", err)
		}
		defer st.Close()

		sess, err := startSession(st, cfg)
		if err != nil {
			return err
		}
		sessionID = sess.ID
		defer func() {
			if err := st.Sessions().End(sessionID); err != nil {
				logger.Warnf("Failed to end session: %v", err)
			}
		}()
		enabled = st.Settings().Bool(store.SettingEnabled, true)
		logger.Infof("Journalling session %s to %s", sessionID, cfg.DatabasePath())
	}

	udp, err := notify.NewUDPSink(logger, cfg.SinkConfig())
	if err != nil {
		return err
	}
	defer udp.Close()

	sinks := []notify.Sink{udp}
	if st != nil {
		sinks = append(sinks, st.Journal(sessionID, cfg.Capture.Width, cfg.Capture.Height))
	}

	if len(cfg.Actions) > 0 {
		dispatcher, err := newDispatcher(logger, cfg)
		if err != nil {
			return err
		}
		defer dispatcher.Wait()
		sinks = append(sinks, dispatcher)
	}

	pipeline, err := app.New(app.Config{
		Camera:             capture.NewCamera(cfg.Capture),
		Detector:           det,
		Adapter:            adapter,
		Tracker:            tracker,
		Motion:             cfg.Motion,
		Sinks:              sinks,
		Log:                logger,
		MaxCaptureFailures: cfg.MaxCaptureFailures,
		Enabled:            enabled,
		KeepFrames:         cfg.Server.Enabled,
	})
	if err != nil {
		return err
	}

	var trayUI *tray.Tray
	if cfg.Tray {
		trayUI = tray.New(enabled)
		pipeline.AddSink(trayUI)
	}

	setEnabled := pipeline.SetEnabled
	if trayUI != nil {
		setEnabled = func(on bool) {
			pipeline.SetEnabled(on)
			trayUI.SetEnabled(on)
		}
	}

	srvErr := make(chan error, 1)
	if cfg.Server.Enabled {
		srv := server.New(server.Config{
			StaticDir:  cfg.Server.StaticDir,
			Pipeline:   enabledHook{pipeline, setEnabled},
			Store:      st,
			SessionID:  sessionID,
			Classifier: cfg.Classifier,
			Log:        logger,
		})
		pipeline.AddSink(srv.Hub())
		go func() {
			srvErr <- srv.ListenAndServe(ctx, cfg.Server.Addr)
		}()
	}

	if err := pipeline.Start(ctx); err != nil {
		return err
	}
	defer pipeline.Stop()

	if trayUI != nil {
		trayUI.OnToggle(func(on bool) {
			pipeline.SetEnabled(on)
			if st != nil {
				if err := st.Settings().SetBool(store.SettingEnabled, on); err != nil {
					logger.Warnf("Failed to persist enabled state: %v", err)
				}
			}
		})
		trayUI.OnStatus(func() {
			if cfg.Server.Enabled {
				openBrowser(logger, "http://"+cfg.Server.Addr+"/api/status")
			}
		})
		trayUI.OnQuit(stop)
		go func() {
			wait(ctx, pipeline, srvErr, logger)
			trayUI.Quit()
		}()
		// systray needs the main goroutine.
		trayUI.Run()
	} else {
		wait(ctx, pipeline, srvErr, logger)
	}

	stop()
	pipeline.Stop()
	return pipeline.Err()
}

// startSession records a journal session holding a snapshot of cfg.
func startSession(st *store.Store, cfg *config.Config) (*store.Session, error) {
	snapshot, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot configuration: %w", err)
	}
	sess, err := st.Sessions().Start(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	return sess, nil
}

// wait blocks until a signal arrives, the pipeline ends or the status server
// fails.
func wait(ctx context.Context, pipeline *app.App, srvErr <-chan error, logger logs.Log) {
	select {
	case <-ctx.Done():
		logger.Infof("Shutting down")
	case <-pipeline.Done():
	case err := <-srvErr:
		if err != nil {
			logger.Errorf("Status server failed: %v", err)
		}
	}
}

// enabledHook routes server toggles through setEnabled so the tray follows.
type enabledHook struct {
	*app.App
	set func(bool)
}

func (h enabledHook) SetEnabled(on bool) {
	h.set(on)
}

func newDispatcher(logger logs.Log, cfg *config.Config) (*plugin.Dispatcher, error) {
	dir := cfg.PluginDir
	if dir == "" {
		dir = findPluginDir()
	}
	manager := plugin.NewManager(dir)
	if err := manager.Discover(); err != nil {
		return nil, fmt.Errorf("failed to discover plugins: %w", err)
	}
	plugins := manager.List()
	logger.Infof("Discovered %d plugins in %s", len(plugins), manager.PluginDir())
	for _, p := range plugins {
		logger.Infof("Plugin %s %s (%s)", p.Manifest.Name, p.Manifest.Version, p.Path)
	}

	d, err := plugin.NewDispatcher(logger, manager, plugin.NewExecutor(cfg.PluginTimeout()), cfg.Actions)
	if err != nil {
		return nil, err
	}
	d.OnResult(func(res plugin.Result) {
		if res.Err == nil && res.Response != nil && len(res.Response.Data) > 0 {
			logger.Infof("%s/%s: %s", res.Binding.Plugin, res.Binding.Action, res.Response.Data)
		}
	})
	return d, nil
}

// findPluginDir looks for a plugins directory in the working directory and
// next to the executable.
func findPluginDir() string {
	candidates := []string{"plugins"}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "plugins"))
	}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return "plugins"
}

func openBrowser(logger logs.Log, url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		logger.Warnf("Failed to open %s: %v", url, err)
	}
}
