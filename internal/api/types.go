package api

import "github.com/stacklok/npm-sync/internal/versions"

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// VersionResponse represents the version information response
type VersionResponse = versions.Info
