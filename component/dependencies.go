package component

import (
	"log/slog"

	"github.com/c360/gaze/metric"
	"github.com/c360/gaze/natsclient"
)

// Dependencies carries the shared infrastructure handed to component
// constructors.
type Dependencies struct {
	NATSClient      *natsclient.Client
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
}

// GetLogger returns the configured logger, falling back to the process
// default so components can always log.
func (d Dependencies) GetLogger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
