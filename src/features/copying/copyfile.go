package copying

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/time/rate"
)

const minBurst = 32 * 1024

// newLimiter returns nil when bytesPerSecond is not positive.
func newLimiter(bytesPerSecond int) *rate.Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(bytesPerSecond), max(bytesPerSecond, minBurst))
}

type throttledWriter struct {
	ctx     context.Context
	w       io.Writer
	limiter *rate.Limiter
}

func (t *throttledWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		chunk := min(len(p), t.limiter.Burst())
		if err := t.limiter.WaitN(t.ctx, chunk); err != nil {
			return written, err
		}
		n, err := t.w.Write(p[:chunk])
		written += n
		if err != nil {
			return written, err
		}
		p = p[chunk:]
	}
	return written, nil
}

// copyFile copies src to dst, overwriting dst, and returns the source file info.
// A partially written dst is removed on failure. dst resolving to src itself is refused
// before anything is truncated.
func copyFile(ctx context.Context, src, dst string, limiter *rate.Limiter) (os.FileInfo, error) {
	in, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open source %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat source %s: %w", src, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("source %s is a directory", src)
	}

	if dstInfo, err := os.Stat(dst); err == nil && os.SameFile(info, dstInfo) {
		return nil, fmt.Errorf("failed to copy %s to %s: %w", src, dst, ErrSameFile)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create destination %s: %w", dst, err)
	}

	var w io.Writer = out
	if limiter != nil {
		w = &throttledWriter{ctx: ctx, w: out, limiter: limiter}
	}

	_, err = io.Copy(w, in)
	if err == nil {
		err = out.Sync()
	}
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dst)
		return nil, fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return info, nil
}

// preserveModTime stamps dst with the source modification time.
func preserveModTime(dst string, info os.FileInfo) error {
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
