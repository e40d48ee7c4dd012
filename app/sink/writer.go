package sink

import (
	"context"
	"fmt"
	"io"
)

// Writer prints chunks instead of sending them, for dry runs.
type Writer struct {
	out io.Writer
}

func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

func (w *Writer) Deliver(ctx context.Context, chunks []string) error {
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return &DeliveryError{Index: i, Err: err}
		}
		if _, err := fmt.Fprintf(w.out, "----- chunk %d/%d (%d chars) -----\n%s\n", i+1, len(chunks), len([]rune(chunk)), chunk); err != nil {
			return &DeliveryError{Index: i, Err: err}
		}
	}
	return nil
}
