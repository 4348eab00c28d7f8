package timer

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Reader splits a timer stream into lines and hands each non-empty one to a sink.
type Reader struct {
	src io.Reader
	log *zap.Logger
}

func NewReader(src io.Reader, log *zap.Logger) *Reader {
	return &Reader{src: src, log: log}
}

// Run blocks until the stream ends, ctx is done, or sink fails with a
// non-recoverable error. Sink errors are logged and reading continues.
func (r *Reader) Run(ctx context.Context, sink func(ctx context.Context, line string) error) error {
	sc := bufio.NewScanner(r.src)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw := sc.Text()
		if StripComment(raw) == "" {
			continue
		}
		if err := sink(ctx, raw); err != nil {
			r.log.Warn("timer line rejected", zap.String("raw", raw), zap.Error(err))
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("scan timer input: %w", err)
	}
	return nil
}
