package api

import (
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
)

// Envelope wraps every response. StatusCode always equals the HTTP status.
// At least one of Error and Data is set.
type Envelope struct {
	StatusCode int     `json:"status_code"`
	Error      *string `json:"error"`
	Data       any     `json:"data"`
}

func writeData(c *echo.Context, status int, data any) error {
	return writeEnvelope(c, Envelope{StatusCode: status, Data: data})
}

func writeFailure(c *echo.Context, status int, msg string) error {
	return writeEnvelope(c, Envelope{StatusCode: status, Error: &msg})
}

func writeFailureData(c *echo.Context, status int, msg string, data any) error {
	return writeEnvelope(c, Envelope{StatusCode: status, Error: &msg, Data: data})
}

func writeEnvelope(c *echo.Context, env Envelope) error {
	if env.Error == nil && env.Data == nil {
		msg := "Internal server error: empty response"
		env = Envelope{StatusCode: http.StatusInternalServerError, Error: &msg}
	}
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return c.Blob(env.StatusCode, echo.MIMEApplicationJSON, b)
}
