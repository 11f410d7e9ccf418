// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

//go:build integration

package testinfra

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
)

// SkipIfNoDocker skips the test when Docker is not available, so the
// integration suite degrades gracefully on machines without a daemon.
func SkipIfNoDocker(t *testing.T) {
	t.Helper()

	if !IsDockerAvailable() {
		t.Skip("Skipping test: Docker not available")
	}
}

// IsDockerAvailable reports whether a Docker daemon is reachable.
func IsDockerAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "docker", "info")
	return cmd.Run() == nil
}

// ContainerLogger routes testcontainers logging through testing.T.
type ContainerLogger struct {
	t *testing.T
}

// NewContainerLogger creates a logger that outputs to testing.T.
func NewContainerLogger(t *testing.T) *ContainerLogger {
	return &ContainerLogger{t: t}
}

// Printf implements the testcontainers.Logging interface.
func (l *ContainerLogger) Printf(format string, v ...interface{}) {
	l.t.Logf(format, v...)
}

// WaitForReady polls check until it succeeds or the timeout expires. Use
// it when a container's default wait strategy is not enough.
func WaitForReady(ctx context.Context, check func() bool, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if check() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}

	return context.DeadlineExceeded
}

// CleanupContainer terminates a container in a deferred cleanup, logging
// rather than failing on termination errors.
func CleanupContainer(t *testing.T, ctx context.Context, container testcontainers.Container) {
	t.Helper()

	if container != nil {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Warning: failed to terminate container: %v", err)
		}
	}
}

// ContainerInfo holds debugging information about a running container.
type ContainerInfo struct {
	ID        string
	Host      string
	Ports     map[string]string
	State     string
	StartedAt string
}

// GetContainerInfo retrieves debugging information about a container.
func GetContainerInfo(ctx context.Context, container testcontainers.Container) (*ContainerInfo, error) {
	state, err := container.State(ctx)
	if err != nil {
		return nil, err
	}

	host, _ := container.Host(ctx)
	ports, _ := container.Ports(ctx)

	portMap := make(map[string]string)
	for port, bindings := range ports {
		if len(bindings) > 0 {
			portMap[string(port)] = bindings[0].HostPort
		}
	}

	return &ContainerInfo{
		ID:        container.GetContainerID()[:12],
		Host:      host,
		Ports:     portMap,
		State:     state.Status,
		StartedAt: state.StartedAt,
	}, nil
}
