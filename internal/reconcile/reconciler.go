// Package reconcile bounds mirror drift. The diff feed can silently
// drop or reorder updates, so on a fixed period an authoritative
// top-of-book pair is fetched from the non-streaming source and every
// mirror level on the wrong side of it is pruned.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"bookmirror/internal/book"
	"bookmirror/internal/metrics"
	"bookmirror/pkg/model"
)

// Reconciler periodically fetches the reference best bid/ask and prunes
// the mirror. A failed fetch skips that tick and is retried on the next
// one; it is never fatal.
type Reconciler struct {
	url      string
	interval time.Duration
	mirror   *book.Mirror
	client   *http.Client
	logger   zerolog.Logger
}

type ReconcilerOpts struct {
	URL      string
	Interval time.Duration
	Timeout  time.Duration
	Mirror   *book.Mirror
	Logger   zerolog.Logger
}

func NewReconciler(opts ReconcilerOpts) *Reconciler {
	return &Reconciler{
		url:      opts.URL,
		interval: opts.Interval,
		mirror:   opts.Mirror,
		client:   &http.Client{Timeout: opts.Timeout},
		logger:   opts.Logger.With().Str("component", "reconcile").Logger(),
	}
}

// Run prunes on every tick until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.tick(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Reconciler) tick(ctx context.Context) {
	ref, err := r.fetchReference(ctx)
	if err != nil {
		metrics.ReconcileFailuresTotal.Inc()
		r.logger.Warn().Err(err).Msg("reference fetch failed, skipping prune")
		return
	}

	bidsRemoved, asksRemoved := r.mirror.Prune(ref)
	metrics.ReconcileTicksTotal.Inc()
	metrics.PrunedLevelsTotal.WithLabelValues(string(model.BID)).Add(float64(bidsRemoved))
	metrics.PrunedLevelsTotal.WithLabelValues(string(model.ASK)).Add(float64(asksRemoved))
	if bidsRemoved > 0 || asksRemoved > 0 {
		r.logger.Info().
			Int("bids_removed", bidsRemoved).
			Int("asks_removed", asksRemoved).
			Str("ref_bid", ref.BestBid.String()).
			Str("ref_ask", ref.BestAsk.String()).
			Msg("pruned stale levels")
	}
}

// referenceResponse is the wire shape of the depth endpoint; only index
// zero of each side is used.
type referenceResponse struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
}

func (r *Reconciler) fetchReference(ctx context.Context) (model.ReferencePrice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return model.ReferencePrice{}, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return model.ReferencePrice{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return model.ReferencePrice{}, fmt.Errorf("reference source returned %s", resp.Status)
	}

	var body referenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.ReferencePrice{}, fmt.Errorf("decode reference response: %w", err)
	}
	if len(body.Bids) == 0 || len(body.Bids[0]) == 0 || len(body.Asks) == 0 || len(body.Asks[0]) == 0 {
		return model.ReferencePrice{}, fmt.Errorf("reference response missing top of book")
	}

	bestBid, err := decimal.NewFromString(body.Bids[0][0])
	if err != nil {
		return model.ReferencePrice{}, fmt.Errorf("bad reference bid %q: %w", body.Bids[0][0], err)
	}
	bestAsk, err := decimal.NewFromString(body.Asks[0][0])
	if err != nil {
		return model.ReferencePrice{}, fmt.Errorf("bad reference ask %q: %w", body.Asks[0][0], err)
	}
	return model.ReferencePrice{BestBid: bestBid, BestAsk: bestAsk}, nil
}
