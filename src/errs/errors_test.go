package errs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromServerPacketDispatchesByKind(t *testing.T) {
	cases := []struct {
		kind string
		want error
	}{
		{"ValidationError", &ValidationError{}},
		{"NotFoundError", &NotFoundError{}},
		{"NotSynchronizedError", &NotSynchronizedError{}},
		{"NotConnectedError", &NotConnectedError{}},
		{"UnauthorizedError", &UnauthorizedError{}},
		{"InternalError", &InternalError{}},
		{"TooManyRequestsError", &TooManyRequestsError{}},
		{"TradeError", &TradeError{}},
		{"SomethingUnknown", &ApiError{}},
	}

	for _, c := range cases {
		got := FromServerPacket(c.kind, map[string]interface{}{"message": "boom"})
		assert.IsType(t, c.want, got, "kind %s", c.kind)
	}
}

func TestRetryableOnlyApiAndInternal(t *testing.T) {
	assert.True(t, Retryable(&ApiError{}))
	assert.True(t, Retryable(&InternalError{}))
	assert.False(t, Retryable(&ValidationError{}))
	assert.False(t, Retryable(&NotFoundError{}))
	assert.False(t, Retryable(&TooManyRequestsError{}))
}

func TestTooManyRequestsCarriesRetryTime(t *testing.T) {
	when := time.Now().Add(time.Minute)
	raw := map[string]interface{}{
		"message":              "slow down",
		"recommendedRetryTime": when,
	}
	err := FromServerPacket("TooManyRequestsError", raw)
	tmr, ok := err.(*TooManyRequestsError)
	if !ok {
		t.Fatalf("expected *TooManyRequestsError, got %T", err)
	}
	assert.Equal(t, when, tmr.RecommendedRetryTime)
}
