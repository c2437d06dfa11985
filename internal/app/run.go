package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voicetutor/internal/health"
	"github.com/MrWong99/voicetutor/internal/observe"
	"github.com/MrWong99/voicetutor/internal/tutor"
)

// opsShutdownTimeout bounds how long in-flight probes may delay exit.
const opsShutdownTimeout = 5 * time.Second

// Handler returns the ops endpoints: /healthz, /readyz, /metrics and
// /history.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	health.New(a.checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /history", a.serveHistory)
	return observe.Middleware(a.metrics)(mux)
}

// Run speaks the lesson and serves the ops endpoints until the session ends
// or ctx is cancelled. A learner who says the stop phrase ends the session
// normally. The ops listener is bound before the session starts, so a busy
// address fails Run without touching the audio devices. The ops server is
// shut down once the session returns.
func (a *App) Run(ctx context.Context) (tutor.Outcome, error) {
	var out tutor.Outcome

	var ln net.Listener
	if addr := a.cfg.Server.ListenAddr; addr != "" && addr != "-" {
		var err error
		if ln, err = net.Listen("tcp", addr); err != nil {
			return out, fmt.Errorf("app: ops listen %q: %w", addr, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	g.Go(func() error {
		defer close(done)
		var err error
		out, err = a.runSession(gctx)
		return err
	})

	if ln != nil {
		srv := &http.Server{
			Handler:           a.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		slog.Info("ops server listening", "addr", ln.Addr().String())

		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: ops server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			select {
			case <-done:
			case <-gctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), opsShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err := g.Wait()
	return out, err
}

func (a *App) runSession(ctx context.Context) (tutor.Outcome, error) {
	ctx = observe.WithSessionID(ctx, a.sessionID)
	ctx, span := observe.StartSpan(ctx, "tutor.session")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", a.sessionID),
		attribute.String("lesson.mode", string(a.lesson.Mode)),
		attribute.String("lesson.title", a.lesson.Title()),
	)

	a.metrics.ActiveSessions.Add(ctx, 1)
	defer a.metrics.ActiveSessions.Add(context.WithoutCancel(ctx), -1)

	log := observe.Logger(ctx)
	log.Info("session started", "mode", a.lesson.Mode, "lesson", a.lesson.Title(), "turns", a.lesson.Len())

	out, err := a.runner.Run(ctx)
	span.SetAttributes(
		attribute.Int("session.completed_turns", out.Completed),
		attribute.Bool("session.stopped", out.Stopped),
	)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return out, err
	}

	log.Info("session finished", "completed", out.Completed, "answered", out.Answered, "stopped", out.Stopped)
	return out, nil
}
