package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// HTTPPlanner calls a backend over HTTP. The backend exposes two JSON
// endpoints, start_task and continue_task, mirroring the subprocess
// protocol. Request deadlines come from the caller's context.
type HTTPPlanner struct {
	provider Provider
	client   *http.Client
	logger   *slog.Logger
}

// NewHTTPPlanner builds an HTTP planner for the given provider.
func NewHTTPPlanner(p Provider, logger *slog.Logger) *HTTPPlanner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &HTTPPlanner{provider: p, client: &http.Client{}, logger: logger}
}

func (h *HTTPPlanner) Start(ctx context.Context, req StartRequest) (*Plan, error) {
	return h.roundTrip(ctx, "/start_task", req)
}

func (h *HTTPPlanner) Continue(ctx context.Context, req ContinueRequest) (*Plan, error) {
	return h.roundTrip(ctx, "/continue_task", req)
}

func (h *HTTPPlanner) roundTrip(ctx context.Context, path string, body any) (*Plan, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode planner request: %w", err)
	}

	url := strings.TrimRight(h.provider.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build planner request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key := h.provider.apiKey(); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	h.logger.Debug("planner http round-trip", "provider", h.provider.Name, "url", url)
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrAdapter, h.provider.Name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read response: %v", ErrAdapter, h.provider.Name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s: HTTP %d: %s",
			ErrAdapter, h.provider.Name, resp.StatusCode, stderrTail(string(data)))
	}
	return decodePlan(data, h.provider.Name)
}
