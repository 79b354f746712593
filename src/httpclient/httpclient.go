// Package httpclient implements a strongly-typed REST wrapper with
// taxonomy-aware retry (§4.2). It is grounded on the teacher's
// AsyncNetworkManager.Get retry/back-off loop (src/network/network.go) and
// ErrorHandler.ExecuteWithRetry (src/helpers/error_handler.go), generalized
// from "GET with proxy rotation" to "any verb, retried by error kind".
package httpclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"mtclient/src/errs"
	"mtclient/src/logger"
	"mtclient/src/models"
)

// -----------------------------------------------------------------------------

// sleepFn is indirected so tests can collapse backoff waits to nothing.
var sleepFn = time.Sleep

// -----------------------------------------------------------------------------

// Client is a typed HTTP verb wrapper enforcing the retry policy of §4.2.
type Client struct {
	httpClient *http.Client
	Logger     *logger.Logger
	Retries    int
	MaxDelay   time.Duration
}

// -----------------------------------------------------------------------------

// NewClient builds a Client from network configuration.
func NewClient(cfg *models.MNetworkConfig, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout()},
		Logger:     log,
		Retries:    cfg.Retries,
		MaxDelay:   cfg.MaxDelay(),
	}
}

// -----------------------------------------------------------------------------

// Do executes method against url with an optional JSON body, decoding a
// successful response into out (if non-nil), applying the retry policy of
// §4.2:
//   - ApiError/InternalError: exponential back-off up to Retries attempts.
//   - TooManyRequestsError: sleeps until recommendedRetryTime if within
//     MaxDelay, without consuming a retry credit; surfaces immediately
//     otherwise.
//   - HTTP 202 + Retry-After: treated as "calculation in progress"; sleeps
//     and retries, bounded by MaxDelay and cumulative wait budget.
//   - Any other error kind surfaces immediately, no retry.
func (c *Client) Do(method, url string, body interface{}, out interface{}) error {
	var bodyBytes []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &errs.ValidationError{Message: fmt.Sprintf("failed to marshal request body: %v", err)}
		}
		bodyBytes = b
	}

	attempt := 0
	backoff := time.Second
	cumulativeWait := time.Duration(0)

	for {
		resp, respBody, err := c.execute(method, url, bodyBytes)
		var classified error
		if err != nil {
			classified = &errs.ApiError{Message: err.Error()}
		} else if resp.StatusCode == http.StatusAccepted {
			wait, ok := retryAfterDuration(resp)
			if !ok || wait > c.MaxDelay || cumulativeWait+wait > c.MaxDelay {
				return &errs.TimeoutError{Message: "Timed out waiting for the end of the process of calculating metrics"}
			}
			c.Logger.Info("202 received, waiting %s before retrying %s %s", wait, method, url)
			sleepFn(wait)
			cumulativeWait += wait
			continue
		} else if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if out != nil && len(respBody) > 0 {
				if err := json.Unmarshal(respBody, out); err != nil {
					return &errs.InternalError{Message: fmt.Sprintf("failed to decode response: %v", err)}
				}
			}
			return nil
		} else {
			classified = classify(resp.StatusCode, respBody)
		}

		var tmr *errs.TooManyRequestsError
		if errors.As(classified, &tmr) {
			wait := time.Until(tmr.RecommendedRetryTime)
			if wait <= c.MaxDelay {
				c.Logger.Info("429 received, waiting %s before retrying %s %s (no retry credit consumed)", wait, method, url)
				if wait > 0 {
					sleepFn(wait)
				}
				continue
			}
			return classified
		}

		if !errs.Retryable(classified) {
			return classified
		}

		if attempt >= c.Retries {
			return classified
		}

		c.Logger.Warning("%s %s failed (attempt %d/%d): %v", method, url, attempt+1, c.Retries+1, classified)
		sleepFn(backoff)
		if backoff*2 <= c.MaxDelay || c.MaxDelay == 0 {
			backoff *= 2
		} else {
			backoff = c.MaxDelay
		}
		attempt++
	}
}

// -----------------------------------------------------------------------------

func (c *Client) execute(method, url string, body []byte) (*http.Response, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return nil, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}

	return resp, respBody, nil
}

// -----------------------------------------------------------------------------

// classify maps an HTTP response into the tagged error taxonomy of §7.
func classify(status int, body []byte) error {
	var payload struct {
		Message              string                 `json:"message"`
		Details              map[string]interface{} `json:"details"`
		RecommendedRetryTime time.Time              `json:"recommendedRetryTime"`
		Code                 int                    `json:"code"`
		StringCode           string                 `json:"stringCode"`
	}
	_ = json.Unmarshal(body, &payload)
	if payload.Message == "" {
		payload.Message = string(body)
	}

	switch {
	case status == http.StatusBadRequest:
		return &errs.ValidationError{Message: payload.Message, Details: payload.Details}
	case status == http.StatusNotFound:
		return &errs.NotFoundError{Message: payload.Message}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &errs.UnauthorizedError{Message: payload.Message}
	case status == http.StatusTooManyRequests:
		retryTime := payload.RecommendedRetryTime
		if retryTime.IsZero() {
			retryTime = time.Now().Add(time.Minute)
		}
		return &errs.TooManyRequestsError{Message: payload.Message, RecommendedRetryTime: retryTime}
	case status >= 500:
		return &errs.InternalError{Message: payload.Message}
	default:
		return &errs.ApiError{Code: status, Message: payload.Message}
	}
}

// -----------------------------------------------------------------------------

func retryAfterDuration(resp *http.Response) (time.Duration, bool) {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(h)
	if err != nil {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}
