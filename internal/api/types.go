package api

import "github.com/samcharles93/vihate/internal/detector"

const (
	MaxTextLength = 1000
	ModelLabel    = "ViHateT5-base-HSD"
	Title         = "ViHateT5 Toxicity Detection API"

	msgEmptyText   = "Text cannot be empty or whitespace only"
	msgTextTooLong = "Text too long. Maximum 1000 characters allowed"
	msgUnavailable = "Model service unavailable"
	msgInternal    = "Internal server error"
)

type ToxicityRequest struct {
	Text string `json:"text"`
}

type ToxicityResult struct {
	InputText      string `json:"input_text"`
	ToxicityResult string `json:"toxicity_result"`
	Processed      bool   `json:"processed"`
	Model          string `json:"model"`
}

type RootInfo struct {
	Message     string `json:"message"`
	Version     string `json:"version"`
	Docs        string `json:"docs"`
	HealthCheck string `json:"health_check"`
}

type Endpoints struct {
	ToxicityCheck string `json:"toxicity_check"`
	Health        string `json:"health"`
	Docs          string `json:"docs"`
}

type HealthReport struct {
	ServerStatus string               `json:"server_status"`
	ModelStatus  detector.ModelStatus `json:"model_status"`
	APIVersion   string               `json:"api_version"`
	Endpoints    *Endpoints           `json:"endpoints,omitempty"`
}

type ModelInfo struct {
	ModelName   string `json:"model_name"`
	ModelType   string `json:"model_type"`
	Task        string `json:"task"`
	Language    string `json:"language"`
	BaseModel   string `json:"base_model"`
	Description string `json:"description"`
}
