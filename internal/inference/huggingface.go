// Package inference calls a hosted LLM text-generation endpoint.
package inference

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"BtcInsight/internal/insight"
	"BtcInsight/internal/metrics"
	"BtcInsight/internal/model"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultBaseURL = "https://api-inference.huggingface.co"
	DefaultModel   = "mistralai/Mistral-7B-Instruct-v0.1"
	defaultTimeout = 10 * time.Second
)

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Options configures a HuggingFaceClient.
type Options struct {
	BaseURL      string
	Model        string
	Token        string
	MaxNewTokens int
	Temperature  float64
	Timeout      time.Duration
	Proxy        string
}

// HuggingFaceClient implements Generator against the Hugging Face
// Inference API.
type HuggingFaceClient struct {
	client  *resty.Client
	opts    Options
	Metrics *metrics.Metrics
}

// NewHuggingFaceClient creates a client. The token is sent as a bearer
// credential on every call.
func NewHuggingFaceClient(opts Options) *HuggingFaceClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if opts.Token != "" {
		c.SetAuthToken(opts.Token)
	}
	if opts.Proxy != "" {
		c.SetProxy(opts.Proxy)
	}
	return &HuggingFaceClient{client: c, opts: opts}
}

type generateRequest struct {
	Inputs     string             `json:"inputs"`
	Parameters generateParameters `json:"parameters"`
}

type generateParameters struct {
	MaxNewTokens   int      `json:"max_new_tokens,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	ReturnFullText bool     `json:"return_full_text"`
}

// Generate sends the prompt and returns the generated text. HTTP
// failures are *model.FetchError; shape failures are
// *model.MalformedAIResponseError. No retry is attempted.
func (h *HuggingFaceClient) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	text, err := h.generate(ctx, prompt)
	h.Metrics.ObserveInference(time.Since(start), err)
	return text, err
}

func (h *HuggingFaceClient) generate(ctx context.Context, prompt string) (string, error) {
	params := generateParameters{MaxNewTokens: h.opts.MaxNewTokens}
	if h.opts.Temperature > 0 {
		t := h.opts.Temperature
		params.Temperature = &t
	}

	resp, err := h.client.R().
		SetContext(ctx).
		SetBody(generateRequest{Inputs: prompt, Parameters: params}).
		Post("/models/" + h.opts.Model)
	if err != nil {
		return "", &model.FetchError{Source: "huggingface", Op: "generate", Err: err}
	}
	if !resp.IsSuccess() {
		return "", &model.FetchError{
			Source: "huggingface",
			Op:     "generate",
			Status: resp.StatusCode(),
			Err:    errors.New(errorMessage(resp.Body())),
		}
	}
	return insight.DecodeInsightText(resp.Body())
}

// errorMessage pulls {"error": "..."} out of a failure body when present.
func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	s := string(body)
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
