package proof

import (
	"context"
	"fmt"
	"io"

	"github.com/kazz187/keeperd/pkg/codec"
)

// workerResult is the single message a worker writes to its stdout.
type workerResult struct {
	Response *Response `cbor:"response,omitempty"`
	Error    string    `cbor:"error,omitempty"`
}

// ServeWorker reads one request from r, proves it with p and writes one
// result to w. Prover failures are reported on w; the returned error only
// covers the channel itself.
func ServeWorker(ctx context.Context, r io.Reader, w io.Writer, p Prover) error {
	var req Request
	if err := codec.NewDecoder(r).Decode(&req); err != nil {
		return fmt.Errorf("read request: %w", err)
	}

	var result workerResult
	resp, err := NewInProcess(p).Prove(ctx, &req)
	if err != nil {
		result.Error = err.Error()
	} else {
		result.Response = resp
	}
	if err := codec.NewEncoder(w).Encode(result); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}
