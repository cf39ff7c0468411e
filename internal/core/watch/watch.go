// Package watch implements the optional drop-folder automation: a
// fsnotify.Watcher on one directory that turns "new file appeared" into a
// Controller.Enqueue call once the file has sat unmodified for a debounce
// window. Grounded on viewra's scannermodule/scanner.FileMonitor —
// same watcher-goroutine/event-channel/debounce-ticker shape, collapsed
// from N monitored libraries down to one directory and from a database
// upsert down to a job enqueue.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mantonx/transcodecore/internal/core/codec"
	"github.com/mantonx/transcodecore/internal/core/model"
)

// Controller is the subset of controller.Controller the watcher needs.
type Controller interface {
	Enqueue(cfg model.JobConfig) (string, error)
}

// Template holds the per-job settings applied to every file the watcher
// discovers; only InputPath and OutputPath are filled in per file.
type Template struct {
	Container model.Container
	Video     model.VideoConfig
	Audio     model.AudioConfig
	OutputDir string
}

// mediaExts mirrors viewra's isMediaFile allowlist, trimmed to the
// containers ffmpegproc actually demuxes.
var mediaExts = map[string]bool{
	".mp4": true, ".mkv": true, ".mov": true, ".webm": true, ".ts": true,
	".m4v": true, ".avi": true,
}

// pendingFile tracks a candidate's last observed size/mtime so Watcher can
// tell an in-progress copy from a file that is done being written.
type pendingFile struct {
	size     int64
	lastSeen time.Time
}

// Watcher watches one directory (fsnotify events plus one listing at start)
// for finished media files and enqueues one job per file via Controller.
type Watcher struct {
	dir      string
	debounce time.Duration
	template Template
	ctrl     Controller
	log      codec.Logger

	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]pendingFile
	enqueued map[string]bool
}

func New(dir string, debounce time.Duration, template Template, ctrl Controller, log codec.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		template: template,
		ctrl:     ctrl,
		log:      log,
		watcher:  fsw,
		pending:  make(map[string]pendingFile),
		enqueued: make(map[string]bool),
	}, nil
}

// Run blocks, watching for filesystem events and periodically checking
// pending files for stability, until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	w.seedExisting()

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ev)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			if w.log != nil {
				w.log.Error("watch error", "error", err)
			}

		case <-ticker.C:
			w.checkPending()

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// seedExisting treats files already present at startup as pending, so a
// drop folder populated before the process starts still gets processed.
func (w *Watcher) seedExisting() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		w.track(filepath.Join(w.dir, e.Name()))
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if !isMediaFile(ev.Name) {
		return
	}
	w.track(ev.Name)
}

func (w *Watcher) track(path string) {
	if !isMediaFile(path) || isOwnOutput(path) {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.enqueued[path] {
		return
	}
	w.pending[path] = pendingFile{size: info.Size(), lastSeen: time.Now()}
}

// checkPending enqueues every pending file whose size has been unchanged
// since the previous stability check, i.e. it survived one full debounce
// interval without growing.
func (w *Watcher) checkPending() {
	w.mu.Lock()
	stable := make([]string, 0)
	for path, prev := range w.pending {
		info, err := os.Stat(path)
		if err != nil {
			delete(w.pending, path)
			continue
		}
		if info.Size() == prev.size && time.Since(prev.lastSeen) >= w.debounce {
			stable = append(stable, path)
			delete(w.pending, path)
		} else if info.Size() != prev.size {
			w.pending[path] = pendingFile{size: info.Size(), lastSeen: time.Now()}
		}
	}
	w.mu.Unlock()

	for _, path := range stable {
		w.enqueueFile(path)
	}
}

func (w *Watcher) enqueueFile(path string) {
	cfg := model.JobConfig{
		InputPath:  path,
		OutputPath: w.outputPath(path),
		Container:  w.template.Container,
		Video:      w.template.Video,
		Audio:      w.template.Audio,
	}

	jobID, err := w.ctrl.Enqueue(cfg)
	w.mu.Lock()
	w.enqueued[path] = true
	w.mu.Unlock()

	if err != nil {
		if w.log != nil {
			w.log.Error("failed to enqueue watched file", "path", path, "error", err)
		}
		return
	}
	if w.log != nil {
		w.log.Info("enqueued watched file", "path", path, "job_id", jobID)
	}
}

// outputPath never reuses the input's own name when writing back into the
// watched directory itself, so a finished output doesn't shadow (or get
// mistaken for) another drop-folder input.
func (w *Watcher) outputPath(inputPath string) string {
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	ext := "." + string(w.template.Container)
	dir := w.template.OutputDir
	if dir == "" {
		return filepath.Join(w.dir, base+"_transcoded"+ext)
	}
	return filepath.Join(dir, base+ext)
}

func isMediaFile(path string) bool {
	return mediaExts[strings.ToLower(filepath.Ext(path))]
}

// isOwnOutput recognises the "_transcoded" suffix outputPath stamps on
// files it writes back into the watched directory, so Watcher never treats
// its own output as a new input and loops forever.
func isOwnOutput(path string) bool {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.HasSuffix(base, "_transcoded")
}
