// Package httpapi is the HTTP surface a running engine exposes: the panel
// page, the SSE turn stream, the render-job/annotation rendezvous, pause
// control, the tool allowlist, and a debug executor probe (spec.md §6).
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hatsuki-dev/vispanel/internal/domain/gate"
	"github.com/hatsuki-dev/vispanel/internal/domain/model"
	"github.com/hatsuki-dev/vispanel/internal/infra/persistence/turnstore"
	"github.com/hatsuki-dev/vispanel/internal/policy"
	"github.com/hatsuki-dev/vispanel/internal/sse"
)

// requestTimeout bounds every handler except the long-lived SSE stream,
// which is routed outside the timeout middleware.
const requestTimeout = 30 * time.Second

// pauseController is the subset of *engine.Loop the HTTP surface drives.
type pauseController interface {
	Pause()
	Unpause()
	Paused() bool
}

// executorRunner is the subset of *adapter/executor.Adapter used by the
// debug-execute endpoint. It bypasses the gate and does not advance seq.
type executorRunner interface {
	Run(ctx context.Context, req model.ExecutorRequest, timeout time.Duration) (*model.ExecutorResponse, error)
}

// Server wires the engine's shared state to chi routes. All fields are
// read-only after New; concurrency safety is delegated to the wrapped
// types (RenderJobGate, TurnStore, Policy, Broker, Loop).
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger

	gate     *gate.RenderJobGate
	store    *turnstore.TurnStore
	policy   *policy.Policy
	loop     pauseController
	broker   *sse.Broker
	executor executorRunner

	runDir         string
	executeTimeout time.Duration
	panelHTML      []byte
}

// Options configures a new Server.
type Options struct {
	ListenAddr     string
	RunDir         string
	Gate           *gate.RenderJobGate
	Store          *turnstore.TurnStore
	Policy         *policy.Policy
	Loop           pauseController
	Broker         *sse.Broker
	Executor       executorRunner
	ExecuteTimeout time.Duration
	PanelHTML      []byte
	Logger         *zap.Logger
}

// New builds a Server and its chi router but does not start listening.
func New(opts Options) *Server {
	s := &Server{
		logger:         opts.Logger,
		gate:           opts.Gate,
		store:          opts.Store,
		policy:         opts.Policy,
		loop:           opts.Loop,
		broker:         opts.Broker,
		executor:       opts.Executor,
		runDir:         opts.RunDir,
		executeTimeout: opts.ExecuteTimeout,
		panelHTML:      opts.PanelHTML,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Logger)
		r.Use(middleware.Timeout(requestTimeout))

		r.Get("/", s.handleIndex)
		r.Get("/health", s.handleHealth)
		r.Get("/render_job", s.handleRenderJob)
		r.Post("/annotated", s.handleAnnotated)
		r.Post("/pause", s.handlePause)
		r.Post("/unpause", s.handleUnpause)
		r.Get("/allowed_tools", s.handleGetAllowedTools)
		r.Post("/allowed_tools", s.handleSetAllowedTools)
		r.Post("/debug/execute", s.handleDebugExecute)
	})

	// /events manages its own lifetime; the blanket request timeout would
	// otherwise kill every subscriber after requestTimeout.
	r.Get("/events", s.handleEvents)

	s.httpServer = &http.Server{
		Addr:    opts.ListenAddr,
		Handler: r,
	}

	return s
}

// ListenAndServe blocks serving until ctx is cancelled, then shuts down
// gracefully within 10s.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			if s.logger != nil {
				s.logger.Error("http server shutdown error", zap.Error(err))
			}
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
