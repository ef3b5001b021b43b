package httpserver

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/cristianortiz/quickbid/internal/shared/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDHeader is read from the request when present and always echoed back
const RequestIDHeader = "X-Request-ID"

const (
	requestIDKey       = "requestID"
	healthCheckTimeout = 2 * time.Second
	shutdownTimeout    = 5 * time.Second
)

var log = logger.GetLogger()

// HealthCheck reports whether a dependency of the server is usable
type HealthCheck func(ctx context.Context) error

type Server struct {
	app *fiber.App

	mu     sync.RWMutex
	checks map[string]HealthCheck
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func NewServer() *Server {
	s := &Server{checks: make(map[string]HealthCheck)}
	app := fiber.New(fiber.Config{
		AppName:               "quickbid",
		DisableStartupMessage: true,
	})

	app.Use(requestID)
	app.Use(requestLogger)
	app.Get("/health", s.health)

	s.app = app
	return s
}

// Router is where the API handlers mount their routes
func (s *Server) Router() fiber.Router {
	return s.app
}

// App exposes the fiber app, mostly for app.Test
func (s *Server) App() *fiber.App {
	return s.app
}

// AddHealthCheck registers check under name, /health fails while any check fails.
func (s *Server) AddHealthCheck(name string, check HealthCheck) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = check
}

// Start serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	go func() {
		<-ctx.Done()
		log.Info("Shutting down HTTP server...")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.app.ShutdownWithContext(sctx); err != nil {
			log.Error("HTTP server shutdown failed", zap.Error(err))
		}
	}()

	log.Info("HTTP server started", zap.String("addr", addr))
	return s.app.Listen(addr)
}

func (s *Server) health(c *fiber.Ctx) error {
	s.mu.RLock()
	checks := make(map[string]HealthCheck, len(s.checks))
	names := make([]string, 0, len(s.checks))
	for name, check := range s.checks {
		checks[name] = check
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(c.UserContext(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{Status: "ok"}
	if len(names) > 0 {
		resp.Checks = make(map[string]string, len(names))
	}
	for _, name := range names {
		if err := checks[name](ctx); err != nil {
			log.Warn("Health check failed", zap.String("check", name), zap.Error(err))
			resp.Status = "unavailable"
			resp.Checks[name] = err.Error()
			continue
		}
		resp.Checks[name] = "ok"
	}

	if resp.Status != "ok" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
	}
	return c.JSON(resp)
}

func requestID(c *fiber.Ctx) error {
	id := c.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Locals(requestIDKey, id)
	c.Set(RequestIDHeader, id)
	return c.Next()
}

// RequestID returns the id assigned to the current request
func RequestID(c *fiber.Ctx) string {
	id, _ := c.Locals(requestIDKey).(string)
	return id
}

func requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		status = fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
	}

	log.Info("HTTP request",
		zap.String("requestID", RequestID(c)),
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.Duration("latency", time.Since(start)),
		zap.String("remote_addr", c.IP()),
	)
	return err
}
