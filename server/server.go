// Package server accepts relay connections and hands each one to a
// Handler on a bounded pool of workers.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const (
	defaultMaxWorkers = 16
	acceptRetryDelay  = 50 * time.Millisecond
)

// Server runs the accept loop. At most maxWorkers connections are handled
// at once; further clients wait in the listen backlog.
type Server struct {
	handler    *Handler
	logger     *zap.Logger
	maxWorkers int64
	sem        *semaphore.Weighted
	wg         sync.WaitGroup
}

func New(handler *Handler, maxWorkers int, logger *zap.Logger) *Server {
	if maxWorkers <= 0 {
		maxWorkers = defaultMaxWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		handler:    handler,
		logger:     logger,
		maxWorkers: int64(maxWorkers),
		sem:        semaphore.NewWeighted(int64(maxWorkers)),
	}
}

// ListenAndServe binds addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then closes ln
// and waits for in-flight handlers. Handlers receive ctx, so cancellation
// also aborts their model calls.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()
	defer s.wg.Wait()
	defer ln.Close()

	s.logger.Info("Server listening",
		zap.String("addr", ln.Addr().String()),
		zap.Int64("max_workers", s.maxWorkers))

	for {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return s.shutdown(ln)
		}

		conn, err := ln.Accept()
		if err != nil {
			s.sem.Release(1)
			if ctx.Err() != nil {
				return s.shutdown(ln)
			}
			if isTemporary(err) {
				s.logger.Warn("Accept failed, retrying", zap.Error(err))
				time.Sleep(acceptRetryDelay)
				continue
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.sem.Release(1)
			s.handler.Handle(ctx, conn)
		}()
	}
}

func (s *Server) shutdown(ln net.Listener) error {
	ln.Close()
	s.logger.Info("Server stopping, waiting for in-flight requests")
	return nil
}

// isTemporary reports accept errors worth retrying: timeouts and resource
// exhaustion such as EMFILE, which clears once other connections close.
func isTemporary(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var te interface{ Temporary() bool }
	return errors.As(err, &te) && te.Temporary()
}
