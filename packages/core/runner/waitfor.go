package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/hitupload/packages/http"
	"github.com/abdul-hamid-achik/hitupload/packages/logger"
)

// waitForService polls a URL until it returns the expected status code or times out
func (r *Runner) waitForService(ctx context.Context, cfg *WaitFor) error {
	if cfg == nil {
		return nil
	}

	r.log.Info().
		Str(logger.FieldURL, cfg.URL).
		Int(logger.FieldStatus, cfg.Status).
		Dur("timeout", cfg.Timeout).
		Msg("waiting for service")

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	var (
		lastErr    error
		lastStatus int
	)
	for {
		req := http.NewRequest("GET", cfg.URL)
		req.Timeout = cfg.Interval + 5*time.Second

		resp, err := r.client.Do(ctx, req)
		if err != nil {
			lastErr = err
		} else {
			lastStatus = resp.StatusCode
			if resp.StatusCode == cfg.Status {
				r.log.Info().Str(logger.FieldURL, cfg.URL).Msg("service is ready")
				return nil
			}
		}

		select {
		case <-ctx.Done():
			if lastStatus != 0 {
				return fmt.Errorf("service %s not ready after %v: got status %d, expected %d",
					cfg.URL, cfg.Timeout, lastStatus, cfg.Status)
			}
			return fmt.Errorf("service %s not ready after %v: %v", cfg.URL, cfg.Timeout, lastErr)
		case <-ticker.C:
		}
	}
}
