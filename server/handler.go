package server

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/VorobyevEvgeny/edu-lowcode-assist/conversation"
	"github.com/VorobyevEvgeny/edu-lowcode-assist/metrics"
	"github.com/VorobyevEvgeny/edu-lowcode-assist/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrorPrefix starts every failure payload sent to a client.
const ErrorPrefix = "Server Error: "

const defaultReadBuffer = 1024

// Conversation produces the reply for one request payload.
type Conversation interface {
	RunDetailed(ctx context.Context, request []byte) (*conversation.Result, error)
}

// RequestRecorder persists request metadata.
type RequestRecorder interface {
	Record(ctx context.Context, e storage.RequestEntry) error
}

// HandlerOptions configures a Handler. Zero values disable the optional
// parts.
type HandlerOptions struct {
	ReadBuffer     int
	ReadTimeout    time.Duration
	RequestTimeout time.Duration
	// Model is recorded with each request.
	Model      string
	Metrics    *metrics.Metrics
	RequestLog RequestRecorder
}

// Handler serves a single connection: one read, one conversation, one
// write, close.
type Handler struct {
	conv   Conversation
	logger *zap.Logger
	opts   HandlerOptions
}

func NewHandler(conv Conversation, logger *zap.Logger, opts HandlerOptions) *Handler {
	if opts.ReadBuffer <= 0 {
		opts.ReadBuffer = defaultReadBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{conv: conv, logger: logger, opts: opts}
}

// Handle serves conn and always closes it.
func (h *Handler) Handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	entry := storage.RequestEntry{
		ID:         uuid.NewString(),
		RemoteAddr: conn.RemoteAddr().String(),
		Model:      h.opts.Model,
		StartedAt:  time.Now(),
	}
	logger := h.logger.With(
		zap.String("request_id", entry.ID),
		zap.String("remote", entry.RemoteAddr))
	logger.Info("Connection accepted")

	if h.opts.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(entry.StartedAt.Add(h.opts.ReadTimeout))
	}

	buf := make([]byte, h.opts.ReadBuffer)
	n, err := conn.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		logger.Warn("Failed to read request", zap.Error(err))
		entry.Status = metrics.StatusError
		entry.Error = err.Error()
		h.finish(logger, entry)
		return
	}
	if n == 0 {
		logger.Info("Empty request, closing connection")
		entry.Status = metrics.StatusEmpty
		h.finish(logger, entry)
		return
	}
	entry.RequestBytes = n
	logger.Info("Received request", zap.Int("bytes", n))

	if h.opts.Metrics != nil {
		h.opts.Metrics.InFlight.Inc()
		defer h.opts.Metrics.InFlight.Dec()
	}

	runCtx := ctx
	if h.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, h.opts.RequestTimeout)
		defer cancel()
	}

	var reply string
	res, err := h.conv.RunDetailed(runCtx, buf[:n])
	if res != nil {
		entry.ModelCalls = res.Calls
		entry.Critiques = res.Critiques
		entry.Regenerations = res.Regenerations
	}
	if err != nil {
		logger.Error("Conversation failed", zap.Error(err))
		reply = ErrorPrefix + err.Error()
		entry.Status = metrics.StatusError
		entry.Error = err.Error()
	} else {
		reply = res.Reply
		entry.Status = metrics.StatusOK
	}

	written, err := conn.Write([]byte(reply))
	entry.ResponseBytes = written
	if err != nil {
		logger.Warn("Failed to write response", zap.Error(err))
	} else {
		logger.Info("Sent response", zap.Int("bytes", written))
	}

	h.finish(logger, entry)
}

// finish feeds metrics and the request log. Neither can fail the request.
func (h *Handler) finish(logger *zap.Logger, entry storage.RequestEntry) {
	entry.Duration = time.Since(entry.StartedAt)
	logger.Info("Request finished",
		zap.String("status", entry.Status),
		zap.Duration("duration", entry.Duration),
		zap.Int("model_calls", entry.ModelCalls))

	if h.opts.Metrics != nil {
		h.opts.Metrics.ObserveRequest(entry.Status, entry.Duration, entry.Critiques, entry.Regenerations)
	}
	if h.opts.RequestLog != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.opts.RequestLog.Record(ctx, entry); err != nil {
			logger.Warn("Failed to record request", zap.Error(err))
		}
	}
}
