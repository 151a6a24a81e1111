// Package wsapi serves the command API over a websocket, plus health and
// metrics routes, on a gin engine.
package wsapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dietplan/dietplan/internal/core"
	"github.com/dietplan/dietplan/internal/health"
	"github.com/dietplan/dietplan/internal/metrics"
	"github.com/dietplan/dietplan/internal/middleware"
	"github.com/dietplan/dietplan/internal/service"
)

// DefaultCallerHeader carries the caller's external user id.
const DefaultCallerHeader = "X-Remote-User"

// Server routes websocket and HTTP requests to the command service.
type Server struct {
	Addr         string
	CallerHeader string
	WSPath       string
	CommandPath  string
	HealthPath   string
	MetricsPath  string

	health   *health.Registry
	metrics  *metrics.Metrics
	log      *zap.Logger
	handlers map[string]handler
	conns    atomic.Int64
}

// NewServer builds a Server. health and m may be nil to leave those routes out.
func NewServer(svc *service.Service, reg *health.Registry, m *metrics.Metrics, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		CallerHeader: DefaultCallerHeader,
		WSPath:       "/api/websocket",
		CommandPath:  "/api/command",
		HealthPath:   "/health",
		MetricsPath:  "/metrics",
		health:       reg,
		metrics:      m,
		log:          log.With(zap.String("component", "wsapi")),
		handlers:     handlers(svc),
	}
}

// Engine returns the gin engine with every route mounted. The gin mode is
// process-wide and left to the caller.
func (s *Server) Engine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.AccessLog(s.log))

	api := r.Group("", middleware.RequireCaller(s.CallerHeader), middleware.BodyLimit(maxMessage))
	api.GET(s.WSPath, s.handleWebsocket)
	api.POST(s.CommandPath, s.handleCommand)
	if s.health != nil {
		r.GET(s.HealthPath, s.handleHealth)
	}
	if s.metrics != nil {
		r.GET(s.MetricsPath, gin.WrapH(s.metrics.Handler()))
	}
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", s.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// Dispatch runs one raw request for caller and always returns a response.
func (s *Server) Dispatch(ctx context.Context, caller string, raw []byte) Response {
	start := time.Now()
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		s.observe("", core.CodeInvalidFormat, start)
		return failure(0, core.CodeInvalidFormat, "request must be a JSON object with id and type")
	}
	typ := commandType(req.Type)
	h, ok := s.handlers[typ]
	if !ok {
		s.observe("unknown", core.CodeUnknownCommand, start)
		return failure(req.ID, errorCode(errUnknownCommand), "unknown command "+req.Type)
	}

	res, err := h(ctx, caller, raw)
	if err != nil {
		code := errorCode(err)
		s.observe(typ, code, start)
		msg := err.Error()
		if code == core.CodeStoreFailure {
			s.log.Error("command failed", zap.String("type", typ), zap.String("caller", caller), zap.Error(err))
			msg = "internal store failure"
		} else {
			s.log.Debug("command rejected", zap.String("type", typ), zap.String("code", code), zap.Error(err))
		}
		return failure(req.ID, code, msg)
	}
	s.observe(typ, "ok", start)
	return result(req.ID, res)
}

func (s *Server) observe(typ, code string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveCommand(typ, code, time.Since(start))
	}
}

// handleCommand is the single-shot HTTP form of a websocket command.
func (s *Server) handleCommand(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, failure(0, core.CodeInvalidFormat, err.Error()))
		return
	}
	c.JSON(http.StatusOK, s.Dispatch(c.Request.Context(), middleware.GetCaller(c), raw))
}

func (s *Server) handleHealth(c *gin.Context) {
	report := s.health.Check()
	status := http.StatusOK
	if report.Status == "error" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

// HealthCheck reports the transport with its open connection count.
func (s *Server) HealthCheck() health.ComponentHealth {
	return health.ComponentHealth{
		Name:    "wsapi",
		Status:  "ok",
		Message: "connections: " + strconv.FormatInt(s.conns.Load(), 10),
		LastOK:  time.Now(),
	}
}
