package detector

import (
	"context"
)

// ProbeText is the canned input used by Health.
const ProbeText = "xin chào"

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// ModelStatus reports whether the model answers a real round trip.
type ModelStatus struct {
	ModelLoaded bool   `json:"model_loaded"`
	ModelName   string `json:"model_name"`
	Status      string `json:"status"`
	TestResult  string `json:"test_result,omitempty"`
	Error       string `json:"error,omitempty"`
}

func (m ModelStatus) Healthy() bool { return m.Status == StatusHealthy }

// Health runs ProbeText through the model, bypassing the result cache.
// Failures are reported in the returned status, never as an error.
func (s *Service) Health(ctx context.Context) ModelStatus {
	result, err := s.check(ctx, ProbeText, false)
	st := ModelStatus{
		ModelLoaded: s.handle.Load() != nil,
		ModelName:   s.ModelName(),
	}
	if err != nil {
		st.Status = StatusUnhealthy
		st.Error = err.Error()
		return st
	}
	st.Status = StatusHealthy
	st.TestResult = result
	return st
}
