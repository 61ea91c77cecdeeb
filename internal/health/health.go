// SPDX-License-Identifier: MIT

// Package health provides liveness and readiness checks for deployments
// behind Docker HEALTHCHECK or Kubernetes probes.
package health

import (
	"context"
	"time"
)

// Status represents the overall health/readiness status.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult represents the result of a component check.
type CheckResult struct {
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Response represents a health or readiness response body.
type Response struct {
	Status    Status                 `json:"status"`
	Ready     bool                   `json:"ready"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker is a named readiness dependency, such as the database.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// Manager runs registered checkers for the readiness endpoint.
type Manager struct {
	version  string
	checkers []Checker
}

// NewManager creates a health check manager.
func NewManager(version string) *Manager {
	return &Manager{version: version}
}

// Register adds a readiness checker.
func (m *Manager) Register(c Checker) {
	m.checkers = append(m.checkers, c)
}

// Health is the liveness probe: the process is alive, so it is healthy.
func (m *Manager) Health() Response {
	return Response{
		Status:    StatusHealthy,
		Ready:     true,
		Version:   m.version,
		Timestamp: time.Now(),
	}
}

// Ready runs every registered checker; any failure makes the service
// not ready.
func (m *Manager) Ready(ctx context.Context) Response {
	resp := Response{
		Status:    StatusHealthy,
		Ready:     true,
		Version:   m.version,
		Timestamp: time.Now(),
		Checks:    make(map[string]CheckResult, len(m.checkers)),
	}
	for _, c := range m.checkers {
		result := CheckResult{Status: StatusHealthy}
		if err := c.Check(ctx); err != nil {
			result = CheckResult{Status: StatusUnhealthy, Error: err.Error()}
			resp.Status = StatusUnhealthy
			resp.Ready = false
		}
		resp.Checks[c.Name] = result
	}
	return resp
}
