// Package api is the HTTP surface of the toxicity detector.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
	"golang.org/x/time/rate"

	"github.com/samcharles93/vihate/internal/detector"
	"github.com/samcharles93/vihate/internal/logger"
)

// Checker is the detector as seen by the handlers.
type Checker interface {
	Check(ctx context.Context, text string) (string, error)
	Health(ctx context.Context) detector.ModelStatus
}

type Config struct {
	// RateLimit is the sustained request rate per second across all
	// clients. Zero disables limiting.
	RateLimit float64
	RateBurst int
	Logger    logger.Logger
}

type Server struct {
	checker Checker
	log     logger.Logger
	limiter *rate.Limiter
}

func NewServer(checker Checker, cfg Config) *Server {
	s := &Server{checker: checker, log: cfg.Logger}
	if s.log == nil {
		s.log = logger.Default()
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = max(1, int(cfg.RateLimit))
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return s
}

// Install sets the error handler and the request-scoped middleware.
func (s *Server) Install(e *echo.Echo) {
	e.HTTPErrorHandler = s.handleError
	e.Use(s.requestID)
	if s.limiter != nil {
		e.Use(s.rateLimit)
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/", s.handleRoot)
	e.POST("/check-toxicity", s.handleCheckToxicity)
	e.GET("/health", s.handleHealth)
	e.GET("/model-info", s.handleModelInfo)
	e.GET("/docs", s.handleDocs)
	e.GET("/openapi.yaml", s.handleOpenAPI)
}

// handleError renders router and handler errors in the envelope.
func (s *Server) handleError(c *echo.Context, err error) {
	code := http.StatusInternalServerError
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) && sc.StatusCode() > 0 {
		code = sc.StatusCode()
	}

	var msg string
	switch code {
	case http.StatusNotFound:
		msg = "Not found"
	case http.StatusMethodNotAllowed:
		msg = "Method not allowed"
	case http.StatusInternalServerError:
		msg = fmt.Sprintf("%s: %v", msgInternal, err)
	default:
		msg = http.StatusText(code)
	}
	if code >= http.StatusInternalServerError {
		logger.FromContext(c.Request().Context()).Error("request failed", "path", c.Request().URL.Path, "error", err)
	}
	if werr := writeFailure(c, code, msg); werr != nil {
		s.log.Error("write error response", "error", werr)
	}
}

const maxBodyBytes = 64 << 10

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(r)
	if err := dec.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}
