package main

import (
	"context"
	"errors"
	"flag"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
	"periph.io/x/extra/devices/screen"

	"github.com/coreman2200/ledmatrix/internal/config"
	"github.com/coreman2200/ledmatrix/internal/led"
	"github.com/coreman2200/ledmatrix/internal/matrix"
	"github.com/coreman2200/ledmatrix/internal/pattern"
	"github.com/coreman2200/ledmatrix/internal/pixel"
	"github.com/coreman2200/ledmatrix/internal/preview"
	"github.com/coreman2200/ledmatrix/internal/ws"
)

func main() {
	// ---- Flags (config.yaml overrides where set) ----
	var (
		preset     = flag.String("matrix", "ledpanel", "matrix preset: lpd8806 | ledpanel | matrixpanel")
		driver     = flag.String("driver", "sim", "driver: serial | spi | sim")
		port       = flag.String("port", "", "serial port (e.g. /dev/ttyACM0, COM3) or SPI port name")
		baud       = flag.Int("baud", led.DefaultBaud, "serial baud rate")
		fps        = flag.Int("fps", 20, "frames per second when serving")
		addr       = flag.String("addr", ":8080", "HTTP listen address")
		configPath = flag.String("config", "config.yaml", "path to config.yaml")
		imagePath  = flag.String("image", "", "display this image once and exit")
		test       = flag.String("pattern", "", "run a calibration pattern and exit: index_sweep | column_sweep | rgb_channels | solid")
		interval   = flag.Duration("interval", 250*time.Millisecond, "time per pattern step")
		console    = flag.Bool("preview", false, "mirror frames on the console")
		debug      = flag.Bool("debug", false, "log every frame")
	)
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// ---- Load config.yaml (optional) ----
	cfg := &config.Config{}
	if c, err := config.Load(*configPath); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; proceeding with flags")
		}
	} else {
		cfg = c
	}

	// ---- Effective params (config overrides flags where available) ----
	if cfg.Matrix.Preset == "" {
		cfg.Matrix.Preset = *preset
	}
	profile, err := cfg.Matrix.Profile()
	if err != nil {
		log.Fatal().Err(err).Msg("matrix profile")
	}
	selected := firstNonEmpty(cfg.Driver, *driver)
	eFPS := *fps
	if cfg.FPS > 0 {
		eFPS = cfg.FPS
	}
	eAddr := firstNonEmpty(cfg.Listen, *addr)

	if *test != "" && *interval <= 0 {
		log.Fatal().Dur("interval", *interval).Msg("-interval must be positive")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Driver selection ----
	var m *matrix.Matrix
	listener := led.ListenerFunc(func(s led.State) {
		log.Info().Str("driver", selected).Stringer("state", s).Msg("connection")
		if m == nil {
			return
		}
		m.ConnectionChanged(s)
		if s == led.Connected {
			// Sinks may notify while a frame holds the matrix lock.
			go func() {
				if err := m.Initialize(ctx); err != nil {
					log.Warn().Err(err).Msg("initialize after reconnect")
				}
			}()
		}
	})

	var sink led.Sink
	switch selected {
	case "serial":
		sink, err = led.OpenSerial(led.SerialConfig{
			Name: firstNonEmpty(cfg.Serial.Port, *port),
			Baud: firstNonZero(cfg.Serial.Baud, *baud),
		}, listener, log.Logger)
	case "spi":
		sink, err = led.OpenSPI(led.SPIConfig{
			Port:  firstNonEmpty(cfg.SPI.Port, *port),
			Speed: cfg.SPI.Speed(),
		}, listener, log.Logger)
	case "sim":
		sink = led.NewLog(log.Logger, zerolog.DebugLevel)
	default:
		log.Warn().Str("driver", selected).Msg("unknown driver; using SIM")
		selected = "sim"
		sink = led.NewLog(log.Logger, zerolog.DebugLevel)
	}
	if err != nil {
		log.Fatal().Err(err).Str("driver", selected).Msg("open driver")
	}
	defer sink.Close()

	// Serving mirrors frames to /preview; one-shot modes use the console.
	serving := *imagePath == "" && *test == ""
	var feed *preview.Feed
	opts := []matrix.Option{matrix.WithLogger(log.Logger)}
	switch {
	case serving:
		feed = preview.New(profile.Pixels(), log.Logger)
		opts = append(opts, matrix.WithPreview(feed))
	case *console || selected == "sim":
		opts = append(opts, matrix.WithPreview(screen.New(profile.Pixels())))
	}
	m, err = matrix.New(sink, profile, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("matrix")
	}

	if err := m.Initialize(ctx); err != nil {
		log.Fatal().Err(err).Msg("initialize")
	}
	log.Info().Str("matrix", m.String()).Str("driver", selected).Stringer("format", profile.Format).Msg("ready")

	switch {
	case *imagePath != "":
		if err := displayFile(ctx, m, *imagePath); err != nil {
			log.Fatal().Err(err).Str("path", *imagePath).Msg("display image")
		}
	case *test != "":
		kind, err := pattern.ParseKind(*test)
		if err != nil {
			log.Fatal().Err(err).Msg("pattern")
		}
		if err := pattern.Run(ctx, m, pattern.Plan{Kind: kind, Color: pixel.RGB(255, 255, 255)}, *interval); err != nil {
			log.Fatal().Err(err).Msg("pattern")
		}
	default:
		serve(ctx, m, feed, eAddr, eFPS)
	}
}

func displayFile(ctx context.Context, m *matrix.Matrix, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return err
	}
	return m.DisplayImage(ctx, img)
}

func serve(ctx context.Context, m *matrix.Matrix, feed *preview.Feed, addr string, fps int) {
	state := ws.NewState(m, fps, log.Logger)
	mux := http.NewServeMux()
	mux.Handle("/", state.Handler())
	mux.Handle("/preview", feed)
	srv := &http.Server{
		Addr:         addr,
		Handler:      withCORS(mux),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go state.RunRenderLoop(ctx)
	go func() {
		log.Info().Str("addr", addr).Int("fps", fps).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server crashed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdown)
	if err := m.Halt(); err != nil {
		log.Warn().Err(err).Msg("blank matrix")
	}
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(200)
			return
		}
		h.ServeHTTP(w, r)
	})
}

func firstNonEmpty(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func firstNonZero(v, fallback int) int {
	if v != 0 {
		return v
	}
	return fallback
}
