package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mira-screenshare/sharer/internal/broadcast"
	"github.com/mira-screenshare/sharer/internal/capture"
	"github.com/mira-screenshare/sharer/internal/config"
	"github.com/mira-screenshare/sharer/internal/logging"
	"github.com/mira-screenshare/sharer/internal/recording"
	"github.com/mira-screenshare/sharer/internal/signalling"
)

var (
	version = "0.1.0"
	cfgFile string

	flagSignallerURL     string
	flagPassword         string
	flagAllowRemoteInput bool
	flagRequireApproval  bool
)

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "sharer",
	Short: "Screen-sharing broadcaster",
	Long:  `Sharer broadcasts one desktop over WebRTC to any number of viewers behind a signalling server.`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start broadcasting",
	Run: func(cmd *cobra.Command, args []string) {
		runBroadcaster()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sharer v%s\n", version)
	},
}

var genPasswordCmd = &cobra.Command{
	Use:   "gen-password",
	Short: "Print a random viewer password and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		pw, err := broadcast.RandomPassword(12)
		if err != nil {
			return err
		}
		fmt.Println(pw)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/sharer/broadcaster.yaml)")
	runCmd.Flags().StringVar(&flagSignallerURL, "signaller", "", "signalling server URL (ws:// or wss://), overrides config")
	runCmd.Flags().StringVar(&flagPassword, "password", "", "viewer room password, overrides config")
	runCmd.Flags().BoolVar(&flagAllowRemoteInput, "allow-remote-input", false, "let viewers drive the keyboard and mouse")
	runCmd.Flags().BoolVar(&flagRequireApproval, "require-approval", false, "hold each join until the operator permits it")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(genPasswordCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initLogging sets up structured logging from config. Call after config.Load().
func initLogging(cfg *config.Config) {
	var output io.Writer = os.Stdout
	logFileFallback := false

	if cfg.Log.File != "" {
		rw, err := logging.NewRotatingWriter(cfg.Log.File, cfg.Log.MaxSizeMB, cfg.Log.MaxBackups)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v (logging to stdout)\n", cfg.Log.File, err)
			logFileFallback = true
		} else {
			output = logging.TeeWriter(os.Stdout, rw)
		}
	}

	logging.Init(cfg.Log.Format, cfg.Log.Level, output)
	log = logging.L("main")

	if logFileFallback {
		log.Warn("log file fallback active, logging to stdout only", "requestedFile", cfg.Log.File)
	}
}

// toSignallingICE maps resolved config ICE servers into the wire shape the
// signalling protocol carries inside offers.
func toSignallingICE(servers []config.ICEServer) []signalling.ICEServer {
	out := make([]signalling.ICEServer, 0, len(servers))
	for _, s := range servers {
		out = append(out, signalling.ICEServer{
			URLs:           s.URLs,
			Username:       s.Username,
			Credential:     s.Credential,
			CredentialType: string(s.CredentialType),
		})
	}
	return out
}

func parseCodec(s string) capture.Codec {
	switch capture.Codec(s) {
	case capture.CodecH264, capture.CodecVP8, capture.CodecVP9, capture.CodecAV1:
		return capture.Codec(s)
	default:
		return capture.CodecH264
	}
}

func parsePixelFormat(s string) capture.PixelFormat {
	if s == "bgra" {
		return capture.PixelFormatBGRA
	}
	return capture.PixelFormatRGBA
}

func parseQuality(s string) capture.QualityPreset {
	switch capture.QualityPreset(s) {
	case capture.QualityAuto, capture.QualityLow, capture.QualityMedium, capture.QualityHigh, capture.QualityUltra:
		return capture.QualityPreset(s)
	default:
		return capture.QualityAuto
	}
}

// broadcasterComponents holds the running components created by
// startBroadcaster so that service wrappers (Windows SCM, etc.) can shut
// them down gracefully.
type broadcasterComponents struct {
	sup      *broadcast.Supervisor
	cancel   context.CancelFunc
	runErrCh chan error
}

// shutdownBroadcaster gracefully stops a running broadcaster and waits for
// its Run loop to return.
func shutdownBroadcaster(comps *broadcasterComponents) {
	if comps == nil {
		return
	}
	comps.cancel()
	<-comps.runErrCh
}

// startBroadcaster loads config, builds the signalling client and
// Supervisor, and starts the pipeline running in the background. Callers
// (the console path and the Windows SCM path) differ only in how they wait
// for a stop signal.
func startBroadcaster() (*broadcasterComponents, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if flagSignallerURL != "" {
		cfg.SignallerURL = flagSignallerURL
	}
	if flagPassword != "" {
		cfg.Password = flagPassword
	}

	if cfg.SignallerURL == "" {
		return nil, fmt.Errorf("signalling server URL required: use --signaller or set signaller_url in config")
	}

	initLogging(cfg)
	log.Info("starting broadcaster",
		"version", version,
		"signaller", cfg.SignallerURL,
		"maxViewers", cfg.MaxViewers,
	)

	sig := signalling.New(cfg.SignallerURL, time.Duration(cfg.KeepAliveIntervalSeconds)*time.Second)

	resolveCtx, resolveCancel := context.WithTimeout(context.Background(), 10*time.Second)
	iceServers := config.ResolveICEServers(resolveCtx, cfg.ICEServers, nil)
	resolveCancel()

	sup, err := broadcast.NewSupervisor(broadcast.Config{
		SignallerURL:     cfg.SignallerURL,
		ViewerURL:        cfg.ViewerURL,
		ICEServers:       toSignallingICE(iceServers),
		MaxViewers:       cfg.MaxViewers,
		Password:         cfg.Password,
		RequireApproval:  flagRequireApproval,
		AllowRemoteInput: flagAllowRemoteInput,
		AnswerTimeout:    time.Duration(cfg.AnswerTimeoutSeconds) * time.Second,
		CaptureConfig:    capture.DefaultConfig(),
		EncoderConfig: capture.EncoderConfig{
			Codec:          parseCodec(cfg.Encoder.Codec),
			Quality:        parseQuality(cfg.Encoder.Quality),
			Bitrate:        cfg.Encoder.Bitrate,
			FPS:            cfg.Encoder.MaxFPS,
			PreferHardware: cfg.Encoder.PreferHardware,
			InputFormat:    parsePixelFormat(cfg.Encoder.PixelFormat),
		},
		Recording: recording.Settings{
			Sink:     cfg.Recording.Sink,
			Path:     cfg.Recording.Path,
			S3Bucket: cfg.Recording.S3Bucket,
			S3Region: cfg.Recording.S3Region,
			S3Prefix: cfg.Recording.S3Prefix,
		},
	}, sig)
	if err != nil {
		return nil, fmt.Errorf("initialize broadcaster: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runErrCh := make(chan error, 1)
	go func() { runErrCh <- sup.Run(ctx) }()

	return &broadcasterComponents{sup: sup, cancel: cancel, runErrCh: runErrCh}, nil
}

// runBroadcaster is the console entry point: start the pipeline and block
// until a shutdown signal arrives. On Windows, when launched by the Service
// Control Manager, control is handed to runAsService instead, which drives
// the same start/shutdown pair from SCM callbacks.
func runBroadcaster() {
	if isWindowsService() {
		if err := runAsService(startBroadcaster); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	comps, err := startBroadcaster()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info("shutting down broadcaster")
		shutdownBroadcaster(comps)
	case err := <-comps.runErrCh:
		if err != nil {
			log.Error("broadcaster stopped with error", "error", err)
			os.Exit(1)
		}
	}

	log.Info("broadcaster stopped")
}
