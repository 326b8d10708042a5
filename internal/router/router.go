package router

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"bookmirror/internal/metrics"
	"bookmirror/internal/strategy"
	"bookmirror/internal/usecase/marketdata"
)

type statusWriter struct {
	http.ResponseWriter
	status int
	n      int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.n += n
	return n, err
}

func logging(logger zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w}
		start := time.Now()
		next.ServeHTTP(sw, r)
		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Int("bytes", sw.n).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

// Cors wraps the mux so browser dashboards can poll the query surface
// cross-origin. Wrap when starting the server:
// http.ListenAndServe(addr, Cors(mux)).
func Cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")

			reqHdrs := r.Header.Get("Access-Control-Request-Headers")
			if reqHdrs == "" {
				reqHdrs = "Content-Type, Authorization"
			}
			w.Header().Set("Access-Control-Allow-Headers", reqHdrs)

			reqMethod := r.Header.Get("Access-Control-Request-Method")
			if reqMethod == "" {
				reqMethod = "GET, OPTIONS"
			}
			w.Header().Set("Access-Control-Allow-Methods", reqMethod)
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		// Short-circuit preflight so it never hits the route table
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type BindRouterOpts struct {
	ServerRouter        *http.ServeMux
	MarketData          *marketdata.MarketDataUseCase
	Strategy            *strategy.Strategy
	Registry            *prometheus.Registry
	Logger              zerolog.Logger
	DefaultTickSize     decimal.Decimal
	DefaultDepthPercent decimal.Decimal
}

func BindRouter(opts BindRouterOpts) {
	mdRouter := NewMarketDataRouter(opts.MarketData, opts.DefaultTickSize, opts.DefaultDepthPercent)
	mux := opts.ServerRouter
	logger := opts.Logger

	mux.Handle("GET /snapshot", logging(logger, http.HandlerFunc(mdRouter.Snapshot)))
	mux.Handle("GET /snapshot/{tickSize}/{depth}", logging(logger, http.HandlerFunc(mdRouter.Snapshot)))
	mux.Handle("GET /volume_ask", logging(logger, http.HandlerFunc(mdRouter.VolumeAsk)))
	mux.Handle("GET /volume_bid", logging(logger, http.HandlerFunc(mdRouter.VolumeBid)))
	mux.Handle("GET /spread", logging(logger, http.HandlerFunc(mdRouter.Spread)))
	mux.Handle("GET /imbalance", logging(logger, http.HandlerFunc(mdRouter.Imbalance)))
	mux.Handle("GET /top", logging(logger, http.HandlerFunc(mdRouter.TopOfBook)))

	if opts.Strategy != nil {
		mux.Handle("GET /strategy", logging(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, opts.Strategy.Report())
		})))
	}

	if opts.Registry != nil {
		mux.Handle("GET /metrics", metrics.Handler(opts.Registry))
	}

	mux.Handle("GET /healthz", logging(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": 200,
			"health": "healthy",
		})
	})))
}
