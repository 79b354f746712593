package httpclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"mtclient/src/errs"
	"mtclient/src/logger"
	"mtclient/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(retries int, maxDelaySeconds int) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		Logger:     logger.NewLogger(logger.LevelError, "test"),
		Retries:    retries,
		MaxDelay:   time.Duration(maxDelaySeconds) * time.Second,
	}
}

// -----------------------------------------------------------------------------
// Invariant 7: n consecutive ApiError failures with retries=k yields
// min(n+1, k+1) total calls.

func TestRetryBudgetApiError(t *testing.T) {
	cases := []struct {
		failures int
		retries  int
		wantCalls int
	}{
		{failures: 1, retries: 2, wantCalls: 2},
		{failures: 5, retries: 2, wantCalls: 3},
		{failures: 0, retries: 2, wantCalls: 1},
	}

	for _, c := range cases {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := atomic.AddInt32(&calls, 1)
			if int(n) <= c.failures {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := newTestClient(c.retries, 60)
		client.httpClient.Timeout = 0
		origSleep := sleepFn
		sleepFn = func(time.Duration) {}
		err := client.Do(http.MethodGet, server.URL, nil, nil)
		sleepFn = origSleep

		if c.failures > c.retries {
			assert.Error(t, err)
		} else {
			assert.NoError(t, err)
		}
		assert.Equal(t, int32(c.wantCalls), atomic.LoadInt32(&calls), "case %+v", c)
	}
}

// -----------------------------------------------------------------------------
// Invariant 8: a TooManyRequestsError within maxDelay does not consume a
// retry credit.

func TestTooManyRequestsDoesNotConsumeBudget(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			body, _ := json.Marshal(map[string]interface{}{
				"message":              "slow down",
				"recommendedRetryTime": time.Now().Add(1 * time.Millisecond).Format(time.RFC3339Nano),
			})
			w.Write(body)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(0, 60)
	origSleep := sleepFn
	sleepFn = func(time.Duration) {}
	defer func() { sleepFn = origSleep }()

	err := client.Do(http.MethodGet, server.URL, nil, nil)
	require.NoError(t, err, "retries=0 but the 429 path must not consume the budget")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

// -----------------------------------------------------------------------------
// S5: 202 + Retry-After exceeding maxDelay surfaces TimeoutError without
// retrying.

func TestAccepted202ExceedsMaxDelay(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", strconv.Itoa(30))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := newTestClient(2, 3)
	err := client.Do(http.MethodGet, server.URL, nil, nil)

	var timeoutErr *errs.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, "Timed out waiting for the end of the process of calculating metrics", timeoutErr.Message)
}

// -----------------------------------------------------------------------------
// Non-retryable kinds surface immediately with exactly one call.

func TestValidationErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestClient(3, 60)
	err := client.Do(http.MethodGet, server.URL, nil, nil)

	var validationErr *errs.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

// -----------------------------------------------------------------------------

func TestNewClientFromNetworkConfig(t *testing.T) {
	cfg := &models.MNetworkConfig{RequestTimeoutSeconds: 5, Retries: 2, MaxDelayInSeconds: 60}
	client := NewClient(cfg, logger.NewLogger(logger.LevelError, "test"))
	assert.Equal(t, 2, client.Retries)
	assert.Equal(t, 60*time.Second, client.MaxDelay)
}
