package runtime

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

const (
	inputIDsName      = "input_ids"
	attentionMaskName = "attention_mask"
	outputIDsName     = "output_ids"
)

// Client speaks the Open Inference Protocol v2 REST dialect served by
// KServe, Triton and MLServer.
type Client struct {
	baseURL string
	model   string
	http    *http.Client
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func NewClient(baseURL, model string, opts ...ClientOption) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid runtime url %q", baseURL)
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("runtime model name is required")
	}
	c := &Client{
		baseURL: baseURL,
		model:   model,
		http:    &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type tensor struct {
	Name     string  `json:"name"`
	Shape    []int   `json:"shape"`
	Datatype string  `json:"datatype"`
	Data     []int64 `json:"data"`
}

type outputRequest struct {
	Name string `json:"name"`
}

type inferRequest struct {
	ID         string          `json:"id"`
	Inputs     []tensor        `json:"inputs"`
	Outputs    []outputRequest `json:"outputs"`
	Parameters map[string]any  `json:"parameters,omitempty"`
}

type inferResponse struct {
	ID      string `json:"id"`
	Outputs []struct {
		Name  string    `json:"name"`
		Shape []int     `json:"shape"`
		Data  []float64 `json:"data"`
	} `json:"outputs"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (c *Client) modelURL(suffix string) string {
	return c.baseURL + "/v2/models/" + url.PathEscape(c.model) + suffix
}

func (c *Client) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.modelURL("/ready"), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("runtime ready: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %s", ErrNotReady, c.model)
	default:
		return &StatusError{Code: resp.StatusCode}
	}
}

func (c *Client) Generate(ctx context.Context, gr GenerateRequest) ([]int, error) {
	if len(gr.InputIDs) == 0 {
		return nil, fmt.Errorf("generate: empty input")
	}
	ids := make([]int64, len(gr.InputIDs))
	mask := make([]int64, len(gr.InputIDs))
	for i, id := range gr.InputIDs {
		ids[i] = int64(id)
		mask[i] = 1
	}
	shape := []int{1, len(ids)}
	body, err := json.Marshal(inferRequest{
		ID: uuid.NewString(),
		Inputs: []tensor{
			{Name: inputIDsName, Shape: shape, Datatype: "INT64", Data: ids},
			{Name: attentionMaskName, Shape: shape, Datatype: "INT64", Data: mask},
		},
		Outputs: []outputRequest{{Name: outputIDsName}},
		Parameters: map[string]any{
			"max_length":             gr.MaxLength,
			"do_sample":              false,
			"num_beams":              1,
			"decoder_start_token_id": gr.DecoderStartID,
			"eos_token_id":           gr.EOSID,
			"pad_token_id":           gr.PadID,
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.modelURL("/infer"), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("runtime infer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		se := &StatusError{Code: resp.StatusCode}
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil && eb.Error != "" {
			se.Message = eb.Error
		} else {
			se.Message = strings.TrimSpace(string(raw))
		}
		return nil, se
	}

	var out inferResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode infer response: %w", err)
	}
	for _, o := range out.Outputs {
		if o.Name != outputIDsName && len(out.Outputs) > 1 {
			continue
		}
		gen := make([]int, len(o.Data))
		for i, v := range o.Data {
			gen[i] = int(v)
		}
		return gen, nil
	}
	return nil, fmt.Errorf("infer response has no %s output", outputIDsName)
}
