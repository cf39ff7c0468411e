// Package logging wires hclog into the codec.Logger interface and provides
// the root logger construction every other package starts from, matching
// viewra's hclog-based logging convention.
package logging

import (
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/transcodecore/internal/core/codec"
)

// New builds the root hclog.Logger for the process, honouring LOG_LEVEL.
func New(name string) hclog.Logger {
	level := hclog.LevelFromString(os.Getenv("LOG_LEVEL"))
	if level == hclog.NoLevel {
		level = hclog.Info
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      level,
		Output:     os.Stderr,
		JSONFormat: os.Getenv("LOG_FORMAT") == "json",
	})
}

// Adapter narrows an hclog.Logger to codec.Logger so codec adapters never
// import hclog directly.
type Adapter struct {
	L hclog.Logger
}

func NewAdapter(l hclog.Logger) Adapter { return Adapter{L: l} }

func (a Adapter) Debug(msg string, args ...interface{}) { a.L.Debug(msg, args...) }
func (a Adapter) Info(msg string, args ...interface{})  { a.L.Info(msg, args...) }
func (a Adapter) Warn(msg string, args ...interface{})  { a.L.Warn(msg, args...) }
func (a Adapter) Error(msg string, args ...interface{}) { a.L.Error(msg, args...) }
func (a Adapter) With(args ...interface{}) codec.Logger {
	return Adapter{L: a.L.With(args...)}
}
