package settlement

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// RevertReason is the closed taxonomy of settlement contract reverts. A revert
// is a terminal, correct outcome and is never silently retried.
type RevertReason string

const (
	RevertAlreadyFulfilled  RevertReason = "already_fulfilled"
	RevertAlreadyCancelled  RevertReason = "already_cancelled"
	RevertExpired           RevertReason = "expired"
	RevertSuperseded        RevertReason = "superseded"
	RevertInsufficientValue RevertReason = "insufficient_value"
	RevertInvalidSignature  RevertReason = "invalid_signature"
	RevertUnknown           RevertReason = "unknown"
)

// revertPatterns maps the contract's require() messages onto the taxonomy.
var revertPatterns = map[string]RevertReason{
	"order already fulfilled": RevertAlreadyFulfilled,
	"order already cancelled": RevertAlreadyCancelled,
	"order expired":           RevertExpired,
	"nonce superseded":        RevertSuperseded,
	"insufficient value":      RevertInsufficientValue,
	"invalid signature":       RevertInvalidSignature,
}

// ClassifyRevert maps a replayed revert error onto the closed reason set.
func ClassifyRevert(err error) RevertReason {
	if err == nil {
		return RevertUnknown
	}
	msg := strings.ToLower(err.Error())
	for pattern, reason := range revertPatterns {
		if strings.Contains(msg, pattern) {
			return reason
		}
	}
	return RevertUnknown
}

// RevertError carries a classified revert across the core boundary as a typed
// result.
type RevertError struct {
	Reason RevertReason
	TxHash common.Hash
	Raw    string
}

func (e *RevertError) Error() string {
	return fmt.Sprintf("settlement reverted (%s): %s", e.Reason, e.Raw)
}

// Expected reports whether the revert is the normal outcome of a fulfillment
// race: someone else consumed the order first, and the UI should say so rather
// than show a generic error.
func (e *RevertError) Expected() bool {
	return e.Reason == RevertAlreadyFulfilled || e.Reason == RevertAlreadyCancelled
}
