// Package api exposes the dataset operations over HTTP. Requests carry
// explicit parameters; responses are the structured results.
package api

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/TFMV/gkgsynth/pkg/core"
	"github.com/TFMV/gkgsynth/pkg/manager"
	"github.com/TFMV/gkgsynth/validation"
	"github.com/TFMV/gkgsynth/version"
)

// ServerOptions configures the HTTP server.
type ServerOptions struct {
	Addr    string
	Prefork bool

	// Logger receives server lifecycle events. Request lines go to stderr.
	Logger *zap.Logger
}

// Server holds the Fiber app instance. Dataset operations run one at a time.
type Server struct {
	app  *fiber.App
	m    *manager.Manager
	opts ServerOptions
	mu   sync.Mutex
}

// GenerateRequest is the body of POST /generate. Empty fields take the
// configured values.
type GenerateRequest struct {
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	TargetBytes int64  `json:"target_bytes"`
}

// MergeRequest is the body of POST /merge.
type MergeRequest struct {
	SourceDir   string   `json:"source_dir"`
	MonthlyDirs []string `json:"monthly_dirs"`
}

// ValidateTarget is one directory in a POST /validate body.
type ValidateTarget struct {
	Dir       string `json:"dir"`
	Monthly   bool   `json:"monthly"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

// ValidateRequest is the body of POST /validate. Without targets the
// configured directories are validated; Expected then checks the configured
// date range for missing partitions.
type ValidateRequest struct {
	Targets  []ValidateTarget `json:"targets"`
	Expected bool             `json:"expected"`
}

// NewServer initializes a new Fiber instance serving m.
func NewServer(m *manager.Manager, opts ServerOptions) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &Server{m: m, opts: opts}

	app := fiber.New(fiber.Config{
		IdleTimeout:           10 * time.Second,
		ReadTimeout:           10 * time.Second,
		Prefork:               opts.Prefork,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{Output: os.Stderr}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})

	app.Get("/version", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "gkgsynth API",
			"version": version.Version,
			"build":   version.BuildDate,
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	app.Post("/generate", s.generate)
	app.Post("/merge", s.merge)
	app.Post("/validate", s.validate)
	app.Get("/analyze", s.analyze)

	s.app = app
	return s
}

// GetApp returns the underlying Fiber app.
func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) generate(c *fiber.Ctx) error {
	var req GenerateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	run := s.m.Config.Run
	if req.StartDate == "" {
		req.StartDate = run.StartDate
	}
	if req.EndDate == "" {
		req.EndDate = run.EndDate
	}
	if req.TargetBytes == 0 {
		req.TargetBytes = run.TargetBytes
	}
	dr, err := core.ParseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.m.Generate(c.UserContext(), dr, req.TargetBytes)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (s *Server) merge(c *fiber.Ctx) error {
	var req MergeRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.SourceDir == "" {
		req.SourceDir = s.m.Config.Paths.SourceDir
	}
	if len(req.MonthlyDirs) == 0 {
		req.MonthlyDirs = s.m.Config.Paths.MonthlyDirs
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.m.MergeAll(c.UserContext(), req.SourceDir, req.MonthlyDirs)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (s *Server) validate(c *fiber.Ctx) error {
	var req ValidateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	targets, err := s.targets(req)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	report, err := s.m.Validate(c.UserContext(), targets)
	if err != nil {
		return err
	}
	return c.JSON(report)
}

func (s *Server) targets(req ValidateRequest) ([]validation.Target, error) {
	if len(req.Targets) == 0 {
		if !req.Expected {
			return s.m.Targets(nil), nil
		}
		dr, err := s.m.Config.Run.DateRange()
		if err != nil {
			return nil, err
		}
		return s.m.Targets(&dr), nil
	}

	targets := make([]validation.Target, 0, len(req.Targets))
	for _, t := range req.Targets {
		if t.Dir == "" {
			return nil, fiber.NewError(fiber.StatusBadRequest, "target dir is required")
		}
		target := validation.Target{Dir: t.Dir, Monthly: t.Monthly}
		if t.StartDate != "" || t.EndDate != "" {
			dr, err := core.ParseDateRange(t.StartDate, t.EndDate)
			if err != nil {
				return nil, err
			}
			target.Expected = &dr
		}
		targets = append(targets, target)
	}
	return targets, nil
}

func (s *Server) analyze(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	report, err := s.m.Analyze(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(report)
}

func parseBody(c *fiber.Ctx, v any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(v); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

// errorHandler maps error classes to status codes.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.Is(err, core.ErrInvalidArgument):
		code = fiber.StatusBadRequest
	case errors.Is(err, core.ErrMalformedInput):
		code = fiber.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := s.opts.Addr
	if addr == "" {
		addr = ":8080"
	}

	errCh := make(chan error, 1)
	go func() {
		s.opts.Logger.Info("API listening", zap.String("addr", addr))
		errCh <- s.app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.opts.Logger.Info("Received shutdown signal, stopping server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
		return err
	}
	s.opts.Logger.Info("Server shutdown successfully")
	return nil
}

// Shutdown stops the server immediately.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
