package data

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveStatus(t *testing.T) {
	now := time.Unix(1700000000, 0)

	cases := []struct {
		name     string
		status   OrderStatus
		deadline int64
		want     OrderStatus
	}{
		{"live before deadline", StatusActive, now.Unix() + 3600, StatusActive},
		{"pending past deadline", StatusPending, now.Unix() - 1, StatusExpired},
		{"active past deadline", StatusActive, now.Unix() - 1, StatusExpired},
		{"submitting past deadline", StatusSubmitting, now.Unix() - 1, StatusExpired},
		// Terminal states are ledger truth; the local clock never overrides them.
		{"fulfilled past deadline", StatusFulfilled, now.Unix() - 1, StatusFulfilled},
		{"cancelled past deadline", StatusCancelled, now.Unix() - 1, StatusCancelled},
		{"rejected past deadline", StatusRejected, now.Unix() - 1, StatusRejected},
		// Shadow rows carry no deadline and never look expired.
		{"zero deadline", StatusCancelled, 0, StatusCancelled},
		{"zero deadline live", StatusActive, 0, StatusActive},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := Order{Status: tc.status, Deadline: tc.deadline}
			assert.Equal(t, tc.want, o.EffectiveStatus(now))
		})
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	for _, s := range []OrderStatus{StatusFulfilled, StatusCancelled, StatusRejected} {
		assert.True(t, s.Terminal(), string(s))
	}
	for _, s := range []OrderStatus{StatusPending, StatusActive, StatusSubmitting, StatusExpired} {
		assert.False(t, s.Terminal(), string(s))
	}
}
