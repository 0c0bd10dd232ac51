// Package api is the HTTP client for the remote script-generation service:
// one-shot job initiation, one-shot status checks, and the bounded polling
// loop built on top of them.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"scriptgen/internal/domain"
	"scriptgen/internal/infra"
)

// Options configures the service client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client performs HTTP calls against the script-generation service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("api: base url is required")
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, logger: logger}, nil
}

type startResponse struct {
	JobID string `json:"jobId"`
}

type statusResponse struct {
	Status  string          `json:"status"`
	Result  json.RawMessage `json:"result"`
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

// Initiate submits the form payload and returns the job identifier assigned
// by the service. It is never retried: a network failure surfaces as a
// terminal TransportError and a non-2xx response is classified into the
// error taxonomy.
func (c *Client) Initiate(ctx context.Context, mode domain.Mode, payload json.RawMessage) (string, error) {
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	endpoint := fmt.Sprintf("%s/scripts/generate-script?mode=%s", c.baseURL, url.QueryEscape(string(mode)))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("api: build start request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &domain.TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &domain.TransportError{Err: err}
	}
	if resp.StatusCode >= 300 {
		return "", Classify(resp.StatusCode, raw)
	}

	var decoded startResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", &domain.TransportError{Err: fmt.Errorf("api: decode start response: %w", err)}
	}
	if decoded.JobID == "" {
		return "", &domain.TransportError{Err: errors.New("api: start response missing jobId")}
	}
	c.logger.Debug().Str("job_id", decoded.JobID).Str("mode", string(mode)).Msg("api: job accepted")
	return decoded.JobID, nil
}

// CheckStatus fetches the authoritative status for one job. Transport
// failures and unreadable bodies read as Pending so callers keep polling;
// only an explicit failed payload yields a Failed status. The one exception
// is a response classified as a credit failure, which is terminal no matter
// when it arrives.
func (c *Client) CheckStatus(ctx context.Context, jobID string) (domain.JobStatus, error) {
	endpoint := c.baseURL + "/scripts/generate-script/" + url.PathEscape(jobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.JobStatus{}, fmt.Errorf("api: build status request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("job_id", jobID).Msg("api: status check transport failure, treating as pending")
		return domain.PendingStatus(), nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Debug().Err(err).Str("job_id", jobID).Msg("api: status body unreadable, treating as pending")
		return domain.PendingStatus(), nil
	}
	if resp.StatusCode >= 300 {
		classified := Classify(resp.StatusCode, raw)
		var credit *domain.CreditError
		if errors.As(classified, &credit) {
			return domain.JobStatus{}, classified
		}
		c.logger.Debug().Int("status", resp.StatusCode).Str("job_id", jobID).Msg("api: status check rejected, treating as pending")
		return domain.PendingStatus(), nil
	}

	var decoded statusResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		c.logger.Debug().Err(err).Str("job_id", jobID).Msg("api: status body not json, treating as pending")
		return domain.PendingStatus(), nil
	}
	switch decoded.Status {
	case string(domain.JobStateCompleted):
		return domain.JobStatus{State: domain.JobStateCompleted, Result: decoded.Result}, nil
	case string(domain.JobStateFailed):
		reason := messageFrom(decoded.Error, decoded.Message)
		if reason == "" {
			reason = defaultFailureMessage
		}
		return domain.JobStatus{State: domain.JobStateFailed, Reason: reason}, nil
	default:
		return domain.PendingStatus(), nil
	}
}

// PollUntilDone issues up to maxAttempts status checks with a fixed interval
// sleep before each, stopping at the first terminal status or terminal
// error. An exhausted attempt budget (or context deadline) surfaces as a
// TimeoutError; a caller-cancelled context surfaces as the context error so
// dismissal is distinguishable from timeout.
func (c *Client) PollUntilDone(ctx context.Context, jobID string, interval time.Duration, maxAttempts int) (domain.JobStatus, error) {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return domain.JobStatus{}, pollContextError(ctx)
		case <-timer.C:
		}

		status, err := c.CheckStatus(ctx, jobID)
		if err != nil {
			return domain.JobStatus{}, err
		}
		if status.Terminal() {
			c.logger.Debug().Str("job_id", jobID).Str("state", string(status.State)).Int("attempt", attempt).Msg("api: terminal status observed")
			return status, nil
		}
	}
	return domain.JobStatus{}, &domain.TimeoutError{}
}

func pollContextError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &domain.TimeoutError{}
	}
	return ctx.Err()
}
