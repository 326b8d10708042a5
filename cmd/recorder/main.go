// Recorder polls the snapshot endpoint and appends the rows to a CSV
// file, one record per bucketed level, for offline charting.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"bookmirror/internal/logging"
)

type snapshotRecord struct {
	Timestamp int64           `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
	Amount    decimal.Decimal `json:"amount"`
	Side      string          `json:"side"`
}

var header = []string{"timestamp", "price", "amount", "side"}

func ensureCSV(name string) error {
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func fetchSnapshot(ctx context.Context, client *http.Client, url string) ([]snapshotRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot endpoint returned %s", resp.Status)
	}
	var records []snapshotRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, err
	}
	return records, nil
}

func appendRows(name string, records []snapshotRecord, at time.Time) error {
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	stamp := at.Format("2006-01-02 15:04")
	for _, rec := range records {
		if err := w.Write([]string{stamp, rec.Price.String(), rec.Amount.String(), rec.Side}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func main() {
	url := flag.String("url", "http://127.0.0.1:5000/snapshot/20/500", "snapshot endpoint to poll")
	file := flag.String("file", "data_snapshot.csv", "CSV file to append to")
	interval := flag.Duration("interval", time.Minute, "poll interval")
	flag.Parse()

	logger := logging.New(os.Getenv("MIRROR_LOG_LEVEL"), false)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ensureCSV(*file); err != nil {
		logger.Fatal().Err(err).Str("file", *file).Msg("cannot prepare CSV file")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	logger.Info().Str("url", *url).Str("file", *file).Msg("recorder started")
	for {
		records, err := fetchSnapshot(ctx, client, *url)
		if err != nil {
			logger.Warn().Err(err).Msg("snapshot poll failed")
		} else if err := appendRows(*file, records, time.Now()); err != nil {
			logger.Warn().Err(err).Msg("CSV append failed")
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			logger.Info().Msg("recorder stopped")
			return
		}
	}
}
