package htmlstream

import (
	"context"
	"errors"
	"io"
)

// DefaultChunkSize is the read size used by Pipe when none is given.
const DefaultChunkSize = 32 * 1024

// Pipe copies src through t in chunks of bufSize bytes and closes t at EOF.
// Cancelling ctx aborts the transform between reads; the bytes written so
// far have already reached the sink.
func Pipe(ctx context.Context, src io.Reader, t *Transform, bufSize int) (int64, error) {
	if bufSize <= 0 {
		bufSize = DefaultChunkSize
	}
	buf := make([]byte, bufSize)

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			t.Abort(err)
			return total, err
		}

		n, rerr := src.Read(buf)
		if n > 0 {
			total += int64(n)
			if _, err := t.Write(buf[:n]); err != nil {
				return total, err
			}
		}

		if errors.Is(rerr, io.EOF) {
			return total, t.Close()
		}
		if rerr != nil {
			t.Abort(rerr)
			return total, rerr
		}
	}
}
