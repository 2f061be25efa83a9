package api

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/vihate/internal/detector"
	"github.com/samcharles93/vihate/internal/logger"
	"github.com/samcharles93/vihate/internal/version"
)

const previewRunes = 50

func (s *Server) handleRoot(c *echo.Context) error {
	return writeData(c, http.StatusOK, RootInfo{
		Message:     Title + " is running",
		Version:     version.APIVersion,
		Docs:        "/docs",
		HealthCheck: "/health",
	})
}

func (s *Server) handleCheckToxicity(c *echo.Context) error {
	ctx := c.Request().Context()
	log := logger.FromContext(ctx)

	req, err := decodeJSON[ToxicityRequest](http.MaxBytesReader(c.Response(), c.Request().Body, maxBodyBytes))
	if err != nil {
		return writeFailure(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	if strings.TrimSpace(req.Text) == "" {
		return writeFailure(c, http.StatusBadRequest, msgEmptyText)
	}
	n := utf8.RuneCountInString(req.Text)
	if n > MaxTextLength {
		return writeFailure(c, http.StatusBadRequest, msgTextTooLong)
	}

	log.Info("processing toxicity check", "preview", logger.Preview(req.Text, previewRunes), "length", n)
	result, err := s.checker.Check(ctx, req.Text)
	if err != nil {
		kind := detector.KindOf(err)
		switch kind {
		case detector.KindValidation:
			log.Warn("validation error", "error", err)
			return writeFailure(c, http.StatusBadRequest, err.Error())
		case detector.KindUnavailable:
			log.Error("model error", "kind", kind, "error", err)
			return writeFailure(c, http.StatusServiceUnavailable, msgUnavailable+": "+err.Error())
		default:
			log.Error("unexpected error in toxicity check", "kind", kind, "error", err)
			return writeFailure(c, http.StatusInternalServerError, msgInternal+": "+err.Error())
		}
	}
	log.Info("toxicity check result", "result", result)

	return writeData(c, http.StatusOK, ToxicityResult{
		InputText:      req.Text,
		ToxicityResult: result,
		Processed:      true,
		Model:          ModelLabel,
	})
}

func (s *Server) handleHealth(c *echo.Context) error {
	ctx := c.Request().Context()
	log := logger.FromContext(ctx)
	log.Debug("performing health check")

	st := s.checker.Health(ctx)
	report := HealthReport{
		ServerStatus: detector.StatusHealthy,
		ModelStatus:  st,
		APIVersion:   version.APIVersion,
	}
	if !st.Healthy() {
		log.Warn("model unhealthy", "error", st.Error)
		return writeFailureData(c, http.StatusServiceUnavailable, msgUnavailable, report)
	}
	report.Endpoints = &Endpoints{
		ToxicityCheck: "/check-toxicity",
		Health:        "/health",
		Docs:          "/docs",
	}
	return writeData(c, http.StatusOK, report)
}

func (s *Server) handleModelInfo(c *echo.Context) error {
	return writeData(c, http.StatusOK, ModelInfo{
		ModelName:   detector.DefaultRepo,
		ModelType:   "Text-to-Text Generation",
		Task:        "Toxic Speech Detection",
		Language:    "Vietnamese",
		BaseModel:   "T5",
		Description: "Fine-tuned T5 model for Vietnamese hate speech detection",
	})
}
