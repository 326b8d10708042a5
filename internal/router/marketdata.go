package router

import (
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"bookmirror/internal/book"
	"bookmirror/internal/projection"
	"bookmirror/internal/usecase/marketdata"
	"bookmirror/pkg/model"
)

type MarketDataRouter interface {
	Snapshot(w http.ResponseWriter, r *http.Request)
	VolumeAsk(w http.ResponseWriter, r *http.Request)
	VolumeBid(w http.ResponseWriter, r *http.Request)
	Spread(w http.ResponseWriter, r *http.Request)
	Imbalance(w http.ResponseWriter, r *http.Request)
	TopOfBook(w http.ResponseWriter, r *http.Request)
}

type marketDataRouterImpl struct {
	usecase             *marketdata.MarketDataUseCase
	defaultTickSize     decimal.Decimal
	defaultDepthPercent decimal.Decimal
}

func NewMarketDataRouter(usecase *marketdata.MarketDataUseCase, tickSize, depthPercent decimal.Decimal) MarketDataRouter {
	return &marketDataRouterImpl{
		usecase:             usecase,
		defaultTickSize:     tickSize,
		defaultDepthPercent: depthPercent,
	}
}

// snapshotRecord is one row of the snapshot payload, the flat
// records shape chart clients and the recorder expect.
type snapshotRecord struct {
	Timestamp int64           `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
	Amount    decimal.Decimal `json:"amount"`
	Side      model.Side      `json:"side"`
}

// Snapshot serves GET /snapshot and GET /snapshot/{tickSize}/{depth}.
func (mr *marketDataRouterImpl) Snapshot(w http.ResponseWriter, r *http.Request) {
	tickSize := mr.defaultTickSize
	depthPercent := mr.defaultDepthPercent

	if raw := r.PathValue("tickSize"); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, errors.New("tickSize must be a number"))
			return
		}
		tickSize = parsed
	}
	if raw := r.PathValue("depth"); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, errors.New("depth must be a number"))
			return
		}
		depthPercent = parsed
	}
	if tickSize.Sign() <= 0 || depthPercent.Sign() <= 0 {
		writeJSONError(w, http.StatusBadRequest, errors.New("tickSize and depth must be positive"))
		return
	}

	uc := *mr.usecase
	snapshot, err := uc.GetSnapshot(r.Context(), tickSize, depthPercent)
	if err != nil {
		if errors.Is(err, projection.ErrInsufficientData) {
			writeJSONError(w, http.StatusServiceUnavailable, err)
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}

	records := make([]snapshotRecord, 0, len(snapshot.Entries))
	for _, entry := range snapshot.Entries {
		records = append(records, snapshotRecord{
			Timestamp: snapshot.Timestamp,
			Price:     entry.Price,
			Amount:    entry.Size,
			Side:      entry.Side,
		})
	}
	writeJSON(w, http.StatusOK, records)
}

func (mr *marketDataRouterImpl) VolumeAsk(w http.ResponseWriter, r *http.Request) {
	uc := *mr.usecase
	writeJSON(w, http.StatusOK, uc.GetVolume(r.Context(), model.ASK))
}

func (mr *marketDataRouterImpl) VolumeBid(w http.ResponseWriter, r *http.Request) {
	uc := *mr.usecase
	writeJSON(w, http.StatusOK, uc.GetVolume(r.Context(), model.BID))
}

func (mr *marketDataRouterImpl) Spread(w http.ResponseWriter, r *http.Request) {
	uc := *mr.usecase
	spread, err := uc.GetSpread(r.Context())
	if err != nil {
		if errors.Is(err, book.ErrNotReady) {
			writeJSONError(w, http.StatusServiceUnavailable, err)
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, spread)
}

func (mr *marketDataRouterImpl) Imbalance(w http.ResponseWriter, r *http.Request) {
	uc := *mr.usecase
	writeJSON(w, http.StatusOK, uc.GetImbalance(r.Context()))
}

func (mr *marketDataRouterImpl) TopOfBook(w http.ResponseWriter, r *http.Request) {
	uc := *mr.usecase
	writeJSON(w, http.StatusOK, uc.GetTopOfBook(r.Context()))
}
