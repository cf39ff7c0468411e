// Command transcodecore runs the batch transcoding service: an HTTP control
// plane over ConcurrencyController, backed by the ffmpegproc CodecAdapter
// and a sqlite job store, with optional drop-folder automation. Grounded on
// viewra's cmd/viewra/main.go wiring shape (init subsystems, build the
// gin router, Run(addr)).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/transcodecore/internal/core/codec/ffmpegproc"
	"github.com/mantonx/transcodecore/internal/core/config"
	"github.com/mantonx/transcodecore/internal/core/controller"
	"github.com/mantonx/transcodecore/internal/core/logging"
	"github.com/mantonx/transcodecore/internal/core/model"
	"github.com/mantonx/transcodecore/internal/core/progress"
	transcodecoreapi "github.com/mantonx/transcodecore/internal/core/api"
	"github.com/mantonx/transcodecore/internal/core/store"
	"github.com/mantonx/transcodecore/internal/core/watch"
)

func main() {
	log := logging.New("transcodecore")
	cfg := config.Load()

	if err := os.MkdirAll(cfg.ScratchDir, 0o755); err != nil {
		log.Error("failed to create scratch dir", "path", cfg.ScratchDir, "error", err)
		os.Exit(1)
	}

	adapter := ffmpegproc.New(logging.NewAdapter(log.Named("ffmpeg")))

	db, err := store.Open(cfg.DatabasePath, log.Named("store"))
	if err != nil {
		log.Error("failed to open job store", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}

	hub := progress.NewHub()

	ctrl := controller.New(adapter, db, logging.NewAdapter(log.Named("controller")), cfg.MaxConcurrentJobs)
	ctrl.SetBroadcast(hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.WatchDir != "" {
		if err := startWatcher(ctx, cfg, ctrl, log); err != nil {
			log.Error("failed to start drop-folder watcher", "dir", cfg.WatchDir, "error", err)
		}
	}

	handler := transcodecoreapi.NewHandler(ctrl, hub)
	router := gin.Default()
	transcodecoreapi.RegisterRoutes(router, handler)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Info("shutting down")
		cancel()
		os.Exit(0)
	}()

	log.Info("starting transcodecore", "addr", cfg.ListenAddr)
	if err := router.Run(cfg.ListenAddr); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// startWatcher builds a drop-folder Watcher from a fixed keep-source
// template (resize/resample knobs pass through unchanged; only the codec
// and container are fixed) and runs it in the background for the process
// lifetime.
func startWatcher(ctx context.Context, cfg config.RootConfig, ctrl *controller.Controller, log hclog.Logger) error {
	template := watch.Template{
		Container: model.ContainerMP4,
		Video: model.VideoConfig{
			Enabled:   true,
			Width:     model.KeepSource,
			Height:    model.KeepSource,
			FrameRate: model.Rational{},
			Encoder: model.EncoderParams{
				Codec:       "libx264",
				RateControl: model.RateControlCRF,
				CRF:         23,
				Preset:      "medium",
			},
		},
		Audio: model.AudioConfig{
			Enabled:    true,
			SampleRate: model.KeepSource,
			Channels:   model.KeepSource,
			Encoder: model.EncoderParams{
				Codec:       "aac",
				RateControl: model.RateControlBitrate,
				BitrateKbps: 192,
			},
		},
	}

	w, err := watch.New(cfg.WatchDir, cfg.WatchDebounce, template, ctrl, logging.NewAdapter(log.Named("watch")))
	if err != nil {
		return err
	}

	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			log.Error("drop-folder watcher stopped", "error", err)
		}
	}()
	return nil
}
