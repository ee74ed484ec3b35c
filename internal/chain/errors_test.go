package chain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want SubmitErrorKind
	}{
		{errors.New("user rejected the request"), KindRejected},
		{errors.New("signature denied"), KindRejected},
		{errors.New("execution reverted: insufficient allowance"), KindRevert},
		{errors.New("insufficient funds for gas * price + value"), KindRevert},
		{errors.New("gas required exceeds allowance"), KindRevert},
		{errors.New("chain id mismatch: connected to 5, supported chain is 1"), KindWrongChain},
		{context.DeadlineExceeded, KindTimeout},
		{errors.New("request timed out"), KindTimeout},
		{errors.New("connection refused"), KindWallet},
	}
	for _, tc := range cases {
		got := Classify(tc.err)
		if got.Kind != tc.want {
			t.Errorf("Classify(%q) = %s, want %s", tc.err, got.Kind, tc.want)
		}
	}
}

func TestClassifyKeepsExistingClassification(t *testing.T) {
	orig := &SubmitError{Kind: KindRevert, Err: errors.New("transaction reverted")}
	wrapped := fmt.Errorf("wait mined: %w", orig)
	if got := Classify(wrapped); got.Kind != KindRevert {
		t.Fatalf("got %s, want revert preserved through wrapping", got.Kind)
	}
}

func TestClassifyNil(t *testing.T) {
	if Classify(nil) != nil {
		t.Fatal("Classify(nil) should be nil")
	}
}
