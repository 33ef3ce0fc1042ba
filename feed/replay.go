package feed

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Replay streams a captured feed file through sink. Both SOH wire captures
// and one-message-per-line logs with '|' delimiters are accepted.
func Replay(ctx context.Context, path string, sink Sink, log zerolog.Logger) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n, err := Stream(ctxReader{ctx: ctx, r: f}, sink, log)
	if err != nil {
		return n, fmt.Errorf("replay %s: %w", path, err)
	}
	log.Info().Str("path", path).Int("messages", n).Msg("Replay finished")
	return n, nil
}

// ctxReader stops reading once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
