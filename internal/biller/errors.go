package biller

import "fmt"

// Class buckets a fulfillment failure for user-facing messaging.
type Class string

const (
	// ClassServer means the biller answered with a non-2xx status.
	ClassServer Class = "server"
	// ClassDecode means the biller's response body could not be parsed.
	ClassDecode Class = "decode"
	// ClassConnectivity means the request never got a response.
	ClassConnectivity Class = "connectivity"
	// ClassUnknown is everything else.
	ClassUnknown Class = "unknown"
)

// Error always carries the request id so a human can reconcile the payment
// manually; by the time fulfillment fails the on-chain debit is already
// irreversible.
type Error struct {
	Class     Class
	RequestID string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fulfillment %s error (requestId=%s): %v", e.Class, e.RequestID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
