/*
PURPOSE:
  Core client for the hosted model API (OpenRouter-compatible).
  Performs one request/response exchange per row and returns the generated
  text plus token/cost accounting.

REQUIREMENTS:
  User-specified:
  - One external call per invocation. No retry here: retry belongs to the
    batch layer, otherwise backoff stacks on backoff.
  - Token/cost fields default to zero when the response omits usage data.

  Implementation-discovered:
  - Needs http.Client with timeouts; a per-call context deadline bounds
    how long a single invocation may block.
  - API error bodies carry {"error":{"message","code"}}; surface those as
    typed errors so the batch layer can group identical failures.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine/batch.go, internal/cli (list-models)
  - Uses: internal/config, internal/model, internal/output

ERROR HANDLING:
  - Propagates transport errors, non-2xx statuses, and malformed bodies.
  - *APIError carries the HTTP status and upstream message; transport
    failures have status 0.

IMPLEMENTATION RULES:
  - Use net/http.
  - Enforce timeouts.
  - Trim leading/trailing whitespace from generated text.

USAGE:
  e := engine.New(cfg)
  comp, err := e.Complete(ctx, spec.Model, prompt, spec.Plugins, spec.Search)

SELF-HEALING INSTRUCTIONS:
  - If the API changes, update endpoints (/chat/completions, /models).

RELATED FILES:
  - internal/config/config.go
  - internal/model/types.go

MAINTENANCE:
  - Update for new API request options.
*/

package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/daryltucker/column-runner/internal/config"
	"github.com/daryltucker/column-runner/internal/model"
)

// APIError is a failed exchange with the model API. Status is the HTTP
// status code, or 0 for transport-level failures.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("model API: %s", e.Message)
	}
	return fmt.Sprintf("model API: status %d: %s", e.Status, e.Message)
}

// Engine handles model API interactions.
type Engine struct {
	Config *config.Config
	Client *http.Client

	apiKey string

	// sleep is swappable so tests can observe backoff and cooldown delays
	// without waiting them out.
	sleep func(time.Duration)
}

// New creates a new Engine.
func New(cfg *config.Config) *Engine {
	// ResponseHeaderTimeout covers the time until the first response byte.
	// Hosted models can queue for a while before streaming anything back.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.RequestTimeout.Std()

	return &Engine{
		Config: cfg,
		Client: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout.Std(),
		},
		apiKey: cfg.APIKey(),
		sleep:  time.Sleep,
	}
}

// Complete performs exactly one model call: send the filled prompt, return
// the trimmed generated text and usage accounting. Any transport error,
// non-success status, or malformed body is returned to the caller; the
// batch layer owns retries.
func (e *Engine) Complete(ctx context.Context, modelID, prompt string, plugins []map[string]any, search map[string]any) (model.Completion, error) {
	payload := map[string]any{
		"model": modelID,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
	}
	if len(plugins) > 0 {
		payload["plugins"] = plugins
	}
	if len(search) > 0 {
		payload["web_search_options"] = search
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return model.Completion{}, fmt.Errorf("failed to encode request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.Config.RequestTimeout.Std())
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, e.Config.BaseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return model.Completion{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.Client.Do(req)
	if err != nil {
		return model.Completion{}, &APIError{Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Completion{}, &APIError{Message: fmt.Sprintf("failed to read response body: %v", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return model.Completion{}, &APIError{
			Status:  resp.StatusCode,
			Message: apiErrorMessage(body, resp.Status),
		}
	}

	var data struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int     `json:"prompt_tokens"`
			CompletionTokens int     `json:"completion_tokens"`
			TotalTokens      int     `json:"total_tokens"`
			Cost             float64 `json:"cost"`
		} `json:"usage"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &data); err != nil {
		return model.Completion{}, &APIError{
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("invalid JSON response: %v", err),
		}
	}

	// Some upstreams report errors inside a 200 body.
	if data.Error != nil && data.Error.Message != "" {
		return model.Completion{}, &APIError{Status: resp.StatusCode, Message: data.Error.Message}
	}

	if len(data.Choices) == 0 {
		return model.Completion{}, &APIError{Status: resp.StatusCode, Message: "response contained no choices"}
	}

	return model.Completion{
		Text: strings.TrimSpace(data.Choices[0].Message.Content),
		Usage: model.Usage{
			Cost:             data.Usage.Cost,
			PromptTokens:     data.Usage.PromptTokens,
			CompletionTokens: data.Usage.CompletionTokens,
			TotalTokens:      data.Usage.TotalTokens,
		},
	}, nil
}

// ListModels returns the model identifiers available on the configured API.
func (e *Engine) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.Config.BaseURL+"/models", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	var payload struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	var ids []string
	for _, m := range payload.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// apiErrorMessage extracts the upstream error message from a non-2xx body,
// falling back to the raw body or status line.
func apiErrorMessage(body []byte, status string) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	if trimmed := strings.TrimSpace(string(body)); trimmed != "" {
		return trimmed
	}
	return status
}
