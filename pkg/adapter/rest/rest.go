// Package rest serves the binder file API over HTTP.
//
// Routes:
//
//	GET    /               list stored files
//	GET    /files/{file}   stream a file
//	POST   /files/{file}   store a file (token required)
//	DELETE /files/{file}   remove a file (token required)
//	GET    /usage          container usage and limit
//	GET    /healthz        entry index health
//	POST   /admin/reconcile  run one reconcile pass (token required)
//
// Every error body is JSON: {"message": "...", "status": <code>}.
package rest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/pat"
	"github.com/marmos91/binder/internal/logger"
	"github.com/marmos91/binder/internal/ratelimiter"
	"github.com/marmos91/binder/pkg/auth"
	"github.com/marmos91/binder/pkg/reconcile"
	"github.com/marmos91/binder/pkg/storage"
)

// Config configures the HTTP adapter.
type Config struct {
	// Address is the listen address, host:port.
	Address string

	// PublicAddress is the host:port used to build file locations returned
	// by uploads. Default: Address.
	PublicAddress string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RateLimit RateLimitConfig
}

// RateLimitConfig configures request throttling. A zero rate disables it.
type RateLimitConfig struct {
	RequestsPerSecond uint
	Burst             uint

	// PerClient keeps one bucket per remote host instead of a shared one.
	PerClient bool
}

func (c *Config) applyDefaults() {
	if c.PublicAddress == "" {
		c.PublicAddress = c.Address
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 5 * time.Minute
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Minute
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 2 * time.Minute
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

// Metrics observes API traffic. Optional.
type Metrics interface {
	// ObserveRequest records one finished request.
	ObserveRequest(method, operation string, status int, duration time.Duration, requestBytes, responseBytes int64)

	// RecordRateLimited counts a request rejected with 429.
	RecordRateLimited()
}

type noopMetrics struct{}

func (noopMetrics) ObserveRequest(string, string, int, time.Duration, int64, int64) {}
func (noopMetrics) RecordRateLimited()                                             {}

// Reconciler runs a single reconcile pass on demand.
type Reconciler interface {
	RunNow(ctx context.Context) (*reconcile.Stats, error)
}

// Adapter is the HTTP front-end.
type Adapter struct {
	config     Config
	verifier   *auth.Verifier
	metrics    Metrics
	coord      *storage.Coordinator
	reconciler Reconciler

	shared    *ratelimiter.RateLimiter
	perClient *ratelimiter.PerClient

	server       *http.Server
	shutdownOnce sync.Once
	listening    chan struct{}
	addr         net.Addr
}

// New creates an HTTP adapter. The coordinator is injected later with
// SetCoordinator.
//
// Parameters:
//   - config: Listen and timeout settings
//   - verifier: Token verifier for mutating routes
//   - metrics: Optional metrics sink (nil disables)
func New(config Config, verifier *auth.Verifier, metrics Metrics) *Adapter {
	config.applyDefaults()

	if metrics == nil {
		metrics = noopMetrics{}
	}

	a := &Adapter{
		config:    config,
		verifier:  verifier,
		metrics:   metrics,
		listening: make(chan struct{}),
	}

	rl := config.RateLimit
	if rl.PerClient {
		a.perClient = ratelimiter.NewPerClient(rl.RequestsPerSecond, rl.Burst, 0)
	} else {
		a.shared = ratelimiter.New(rl.RequestsPerSecond, rl.Burst)
	}

	a.server = &http.Server{
		Addr:         config.Address,
		Handler:      a.Handler(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return a
}

// SetCoordinator injects the storage coordinator.
func (a *Adapter) SetCoordinator(coord *storage.Coordinator) {
	a.coord = coord
}

// SetReconciler enables POST /admin/reconcile.
func (a *Adapter) SetReconciler(r Reconciler) {
	a.reconciler = r
}

// Handler returns the routed API handler.
//
// pat matches patterns as prefixes in registration order, so specific
// routes are registered before "/".
func (a *Adapter) Handler() http.Handler {
	r := pat.New()

	r.Add(http.MethodGet, "/files/{file}", a.wrap("get", a.handleGet))
	r.Add(http.MethodPost, "/files/{file}", a.wrap("put", a.handlePut))
	r.Add(http.MethodDelete, "/files/{file}", a.wrap("remove", a.handleDelete))
	r.Add(http.MethodGet, "/usage", a.wrap("usage", a.handleUsage))
	r.Add(http.MethodGet, "/healthz", a.wrap("health", a.handleHealth))
	r.Add(http.MethodPost, "/admin/reconcile", a.wrap("reconcile", a.handleReconcile))
	r.Add(http.MethodGet, "/", a.wrap("list", a.handleList))

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondMessage(w, http.StatusNotFound, msgNotFound)
	})

	return r
}

// wrap applies the middleware chain shared by every route.
func (a *Adapter) wrap(op string, h http.HandlerFunc) http.Handler {
	return withRequestID(a.observe(op, a.throttle(h)))
}

// Serve listens on the configured address and blocks until ctx is
// cancelled or the listener fails.
func (a *Adapter) Serve(ctx context.Context) error {
	if a.coord == nil {
		return fmt.Errorf("http adapter: coordinator not set")
	}

	ln, err := net.Listen("tcp", a.config.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.config.Address, err)
	}
	a.addr = ln.Addr()
	close(a.listening)

	logger.Info("HTTP API listening on %s (public address %s)", a.addr, a.config.PublicAddress)

	if a.perClient != nil {
		go a.perClient.Run(ctx)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- a.server.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
		defer cancel()
		if err := a.Stop(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	}
}

// Stop shuts the HTTP server down gracefully. In-flight requests are given
// until ctx expires.
func (a *Adapter) Stop(ctx context.Context) error {
	var err error
	a.shutdownOnce.Do(func() {
		if shutdownErr := a.server.Shutdown(ctx); shutdownErr != nil {
			err = fmt.Errorf("http server shutdown: %w", shutdownErr)
		}
	})
	return err
}

// Protocol returns "HTTP".
func (a *Adapter) Protocol() string {
	return "HTTP"
}

// Port returns the configured listen port, or 0 if it cannot be parsed.
func (a *Adapter) Port() int {
	_, port, err := net.SplitHostPort(a.config.Address)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return 0
	}
	return n
}

// Addr blocks until the adapter is listening and returns the bound address.
func (a *Adapter) Addr(ctx context.Context) (net.Addr, error) {
	select {
	case <-a.listening:
		return a.addr, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// location builds the public URL of a stored file.
func (a *Adapter) location(name string) string {
	return fmt.Sprintf("http://%s/files/%s", a.config.PublicAddress, url.PathEscape(name))
}
