package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// SubmitErrorKind distinguishes why a submission failed. None of these are
// retried automatically; the caller mints a new idempotency key and lets
// the user re-trigger.
type SubmitErrorKind string

const (
	// KindRejected means the signer refused to sign.
	KindRejected SubmitErrorKind = "rejected"
	// KindWallet covers wallet and RPC transport failures.
	KindWallet SubmitErrorKind = "wallet"
	// KindRevert covers simulation failures and on-chain reverts, including
	// insufficient balance or allowance.
	KindRevert SubmitErrorKind = "revert"
	// KindWrongChain means the connected chain is not the supported one.
	KindWrongChain SubmitErrorKind = "wrong_chain"
	// KindTimeout means the operation expired before the node answered.
	KindTimeout SubmitErrorKind = "timeout"
)

// SubmitError wraps a submission failure with its classification.
type SubmitError struct {
	Kind SubmitErrorKind
	Err  error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// Classify buckets a raw submission error into a SubmitError. Matching is
// on message substrings, the same way node error strings have to be
// handled everywhere else.
func Classify(err error) *SubmitError {
	if err == nil {
		return nil
	}
	var se *SubmitError
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &SubmitError{Kind: KindTimeout, Err: err}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "denied") || strings.Contains(msg, "rejected"):
		return &SubmitError{Kind: KindRejected, Err: err}
	case strings.Contains(msg, "execution reverted"),
		strings.Contains(msg, "insufficient funds"),
		strings.Contains(msg, "insufficient allowance"),
		strings.Contains(msg, "gas required exceeds"):
		return &SubmitError{Kind: KindRevert, Err: err}
	case strings.Contains(msg, "wrong chain") || strings.Contains(msg, "chain id mismatch"):
		return &SubmitError{Kind: KindWrongChain, Err: err}
	case strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "timed out"):
		return &SubmitError{Kind: KindTimeout, Err: err}
	default:
		return &SubmitError{Kind: KindWallet, Err: err}
	}
}
