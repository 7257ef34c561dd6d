package core

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/J-Leg/cloudcheckin/config"
	"github.com/J-Leg/cloudcheckin/internal/retry"
)

// Mask hides runes [start, end) of s behind '*'. Out of range bounds are
// clamped, so short strings are masked to their end.
func Mask(s string, start, end int) string {
	runes := []rune(s)
	if start < 0 {
		start = 0
	}
	if end > len(runes) {
		end = len(runes)
	}
	for i := start; i < end; i++ {
		runes[i] = '*'
	}
	return string(runes)
}

// toGB converts bytes to gigabytes.
func toGB(size int64) float64 {
	return float64(size) / 1024 / 1024 / 1024
}

func capacityLine(personal, family int64) string {
	return fmt.Sprintf("personal capacity: %.2fG, family capacity: %.2fG", toGB(personal), toGB(family))
}

// call runs op under the configured retry policy, logging each failed
// attempt before the wait.
func call[T any](cfg *config.Config, name string, op func(ctx context.Context) (T, error)) (T, error) {
	p := cfg.Retry
	p.OnRetry = func(err error, attempt int) {
		cfg.Trace.Error.Printf("%s failed (attempt %d/%d), retrying in %s: %s", name, attempt, p.MaxAttempts, p.Delay, err)
	}
	return retry.Call(cfg.Ctx, p, op)
}

func sleep(cfg *config.Config, d time.Duration) error {
	if cfg.Retry.Sleep != nil {
		return cfg.Retry.Sleep(cfg.Ctx, d)
	}
	return retry.Sleep(cfg.Ctx, d)
}

// countdownSleep renders a per-second progress bar on out while waiting.
// Used in local mode, where retries wait for half a minute.
func countdownSleep(out io.Writer) retry.SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		secs := int(d / time.Second)
		if secs == 0 {
			return retry.Sleep(ctx, d)
		}

		bar := progressbar.NewOptions(secs,
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetDescription(fmt.Sprintf("waiting %s", d)),
		)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for i := 0; i < secs; i++ {
			select {
			case <-ticker.C:
				bar.Add(1)
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		bar.Finish()
		fmt.Fprintln(out)
		return retry.Sleep(ctx, d%time.Second)
	}
}
