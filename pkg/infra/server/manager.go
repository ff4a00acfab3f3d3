// Package server 管理 HTTP 服务的启动、信号处理与优雅退出。
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kart-io/logger"
)

// Runnable is a server owned by the Manager. Start blocks until the server
// is listening or fails; Stop drains it within ctx.
type Runnable interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Closer is a resource released after all servers stop.
type Closer func(ctx context.Context) error

// Manager manages servers with a unified lifecycle.
type Manager struct {
	shutdownTimeout time.Duration

	mu      sync.Mutex
	servers []Runnable
	closers []namedCloser
	started []Runnable
}

type namedCloser struct {
	name string
	fn   Closer
}

// NewManager creates a new server manager.
func NewManager(shutdownTimeout time.Duration) *Manager {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 15 * time.Second
	}
	return &Manager{shutdownTimeout: shutdownTimeout}
}

// AddServer adds a server to the manager.
func (m *Manager) AddServer(server Runnable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers = append(m.servers, server)
}

// OnShutdown registers a resource released after the servers stop, in
// reverse registration order.
func (m *Manager) OnShutdown(name string, fn Closer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closers = append(m.closers, namedCloser{name: name, fn: fn})
}

// Start starts all servers. On failure the servers already started are
// stopped.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.started) > 0 {
		return fmt.Errorf("server manager already started")
	}
	for _, s := range m.servers {
		if err := s.Start(ctx); err != nil {
			for i := len(m.started) - 1; i >= 0; i-- {
				_ = m.started[i].Stop(ctx)
			}
			m.started = nil
			return fmt.Errorf("failed to start server %s: %w", s.Name(), err)
		}
		m.started = append(m.started, s)
	}
	return nil
}

// Stop stops started servers in reverse order, then runs the shutdown hooks.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	started := m.started
	closers := m.closers
	m.started = nil
	m.closers = nil
	m.mu.Unlock()

	var errs []error
	for i := len(started) - 1; i >= 0; i-- {
		if err := started[i].Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop server %s: %w", started[i].Name(), err))
		}
		logger.Infow("Server stopped", "name", started[i].Name())
	}
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s: %w", closers[i].name, err))
		}
	}
	return errors.Join(errs...)
}

// Run starts all servers and blocks until ctx is done or SIGINT/SIGTERM
// arrives, then shuts down within the shutdown timeout.
func (m *Manager) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := m.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), m.shutdownTimeout)
	defer cancel()
	return m.Stop(shutdownCtx)
}
