// Package rates tracks the fiat USD/KRW reference rate.
//
// The reference comes from a public exchange-rate API and is used for
// display and sanity checks only: tick conversion always goes through
// the emitting venue's own USDT/KRW register.
package rates

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
)

const rateURL = "https://open.er-api.com/v6/latest/USD"

// Updater periodically refreshes the USD/KRW reference rate.
type Updater struct {
	client   *resty.Client
	interval time.Duration
	logger   *slog.Logger

	// rate stored as value * 100 for 2-decimal precision; 0 = not loaded.
	rate atomic.Uint64
}

// NewUpdater creates the reference-rate poller.
func NewUpdater(interval time.Duration, logger *slog.Logger) *Updater {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Updater{
		client:   resty.New().SetTimeout(10 * time.Second),
		interval: interval,
		logger:   logger.With("component", "rates"),
	}
}

// Rate returns the current USD/KRW reference rate, or false before the
// first successful fetch.
func (u *Updater) Rate() (float64, bool) {
	v := u.rate.Load()
	if v == 0 {
		return 0, false
	}
	return float64(v) / 100, true
}

// Run fetches immediately, then on the interval, until ctx is cancelled.
func (u *Updater) Run(ctx context.Context) {
	if err := u.fetch(ctx); err != nil {
		u.logger.Warn("initial rate fetch failed", "error", err)
	}

	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := u.fetch(ctx); err != nil {
				u.logger.Warn("rate fetch failed", "error", err)
			}
		}
	}
}

type rateResponse struct {
	Rates struct {
		KRW float64 `json:"KRW"`
	} `json:"rates"`
}

func (u *Updater) fetch(ctx context.Context) error {
	var out rateResponse
	resp, err := u.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get(rateURL)
	if err != nil {
		return fmt.Errorf("fetch USD/KRW: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("fetch USD/KRW: status %d", resp.StatusCode())
	}
	if out.Rates.KRW <= 0 {
		return fmt.Errorf("fetch USD/KRW: bad rate %v", out.Rates.KRW)
	}

	u.rate.Store(uint64(out.Rates.KRW * 100))
	u.logger.Debug("USD/KRW reference updated", "rate", out.Rates.KRW)
	return nil
}
