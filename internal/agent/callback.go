package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/holdem-arena/internal/game"
)

// actionRequest is the JSON body pushed to a callback agent each turn.
type actionRequest struct {
	Type       string          `json:"type"`
	AgentID    string          `json:"agentId"`
	TableID    string          `json:"tableId"`
	HandNumber int             `json:"handNumber"`
	PlayerView game.PlayerView `json:"playerView"`
	TimeoutMs  int             `json:"timeoutMs"`
}

// actionResponse is what a callback agent answers with, and what a polling
// agent submits.
type actionResponse struct {
	Action    string `json:"action"`
	Amount    int    `json:"amount"`
	Reasoning string `json:"reasoning,omitempty"`
}

// callbackClient pushes action requests to callback-mode agents. Each
// attempt is capped at the callback timeout; failed attempts are retried
// with a fixed backoff until the budget is exhausted.
type callbackClient struct {
	http    *http.Client
	clock   quartz.Clock
	logger  *log.Logger
	timeout time.Duration
	retries int
	backoff time.Duration
}

// requestDecision runs the push protocol against url. The context carries
// the turn deadline, so a slow agent is abandoned mid-retry once the
// registry's own timeout fires.
func (c *callbackClient) requestDecision(ctx context.Context, url string, req actionRequest) (actionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return actionResponse{}, fmt.Errorf("marshal action request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, c.backoff); err != nil {
				return actionResponse{}, err
			}
		}

		resp, err := c.attempt(ctx, url, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return actionResponse{}, ctx.Err()
		}
		c.logger.Warn("callback attempt failed",
			"url", url, "attempt", attempt+1, "error", err)
	}
	return actionResponse{}, fmt.Errorf("callback exhausted %d attempts: %w", c.retries+1, lastErr)
}

func (c *callbackClient) attempt(ctx context.Context, url string, body []byte) (actionResponse, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return actionResponse{}, fmt.Errorf("build callback request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return actionResponse{}, fmt.Errorf("post callback: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(httpResp.Body, 4096))
		return actionResponse{}, fmt.Errorf("callback returned status %d", httpResp.StatusCode)
	}

	var resp actionResponse
	if err := json.NewDecoder(io.LimitReader(httpResp.Body, 1<<20)).Decode(&resp); err != nil {
		return actionResponse{}, fmt.Errorf("decode callback response: %w", err)
	}
	return resp, nil
}

// sleep waits for d on the injected clock so tests can drive the backoff.
func (c *callbackClient) sleep(ctx context.Context, d time.Duration) error {
	fired := make(chan struct{})
	timer := c.clock.AfterFunc(d, func() { close(fired) })
	defer timer.Stop()

	select {
	case <-fired:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
