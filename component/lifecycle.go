// Package component defines the lifecycle and introspection contracts that
// long-running gaze components implement.
package component

import (
	"context"
	"time"
)

// Component is the minimal lifecycle contract. Initialize prepares
// resources, Start begins processing, Stop shuts down within the given
// timeout.
type Component interface {
	Initialize() error
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
}

// Metadata describes a component for operational tooling.
type Metadata struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

// HealthStatus is a point-in-time health snapshot.
type HealthStatus struct {
	Healthy    bool          `json:"healthy"`
	LastCheck  time.Time     `json:"last_check"`
	ErrorCount int           `json:"error_count"`
	Uptime     time.Duration `json:"uptime"`
	Message    string        `json:"message,omitempty"`
}

// FlowMetrics summarizes the data flow through a component.
type FlowMetrics struct {
	MessagesReceived  int64     `json:"messages_received"`
	MessagesPublished int64     `json:"messages_published"`
	ErrorRate         float64   `json:"error_rate"`
	LastActivity      time.Time `json:"last_activity"`
}

// Discoverable components expose metadata and runtime introspection on
// top of the lifecycle contract.
type Discoverable interface {
	Component
	Meta() Metadata
	Health() HealthStatus
	DataFlow() FlowMetrics
}
