package sink

import (
	"context"
	"fmt"
)

// Sink delivers digest chunks in order. Delivery stops at the first chunk
// that fails; chunks already sent are not retracted.
type Sink interface {
	Deliver(ctx context.Context, chunks []string) error
}

var (
	_ Sink = (*Telegram)(nil)
	_ Sink = (*Writer)(nil)
)

type DeliveryError struct {
	Index  int // zero-based chunk index
	Status int // 0 for transport failures
	Body   string
	Err    error
}

func (e *DeliveryError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("failed to deliver chunk %d: HTTP error: %d %s", e.Index, e.Status, e.Body)
	}
	return fmt.Sprintf("failed to deliver chunk %d: %v", e.Index, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
