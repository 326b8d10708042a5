// Package feed maintains the streaming connection to the exchange and
// turns incremental depth messages into mirror mutations.
//
// The ingestor applies diffs directly, without the exchange-standard
// "REST snapshot + sequence continuity" bootstrap: early book state and
// reconnect gaps can leave stale levels behind until the periodic
// reconciler prunes them. This matches the system it mirrors; sequence
// gap detection would be a hardening improvement.
package feed

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"bookmirror/internal/book"
	"bookmirror/internal/metrics"
	"bookmirror/pkg/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

// State of the feed connection.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Ingestor owns the websocket connection and its reconnect policy. It
// holds no book state itself: every decoded message is forwarded to the
// mirror as one atomic batch.
type Ingestor struct {
	url     string
	backoff time.Duration
	mirror  *book.Mirror
	logger  zerolog.Logger

	state atomic.Int32
}

type IngestorOpts struct {
	URL     string
	Backoff time.Duration
	Mirror  *book.Mirror
	Logger  zerolog.Logger
}

func NewIngestor(opts IngestorOpts) *Ingestor {
	return &Ingestor{
		url:     opts.URL,
		backoff: opts.Backoff,
		mirror:  opts.Mirror,
		logger:  opts.Logger.With().Str("component", "feed").Logger(),
	}
}

// State reports the connection state.
func (in *Ingestor) State() State {
	return State(in.state.Load())
}

func (in *Ingestor) setState(s State) {
	in.state.Store(int32(s))
}

// Run connects, consumes messages and reconnects after the configured
// backoff on any transport error, until ctx is cancelled.
func (in *Ingestor) Run(ctx context.Context) error {
	defer in.setState(StateDisconnected)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		in.setState(StateConnecting)
		in.logger.Info().Str("url", in.url).Msg("connecting to feed")
		conn, resp, err := websocket.DefaultDialer.DialContext(ctx, in.url, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			in.setState(StateDisconnected)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.WSReconnectsTotal.WithLabelValues("dial").Inc()
			in.logger.Error().Err(err).Msg("feed dial failed")
			if !in.wait(ctx) {
				return ctx.Err()
			}
			continue
		}

		in.setState(StateConnected)
		in.logger.Info().Msg("feed connected")
		err = in.listen(ctx, conn)
		_ = conn.Close()
		in.setState(StateDisconnected)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		metrics.WSReconnectsTotal.WithLabelValues("read").Inc()
		in.logger.Error().Err(err).Msg("feed connection lost")
		if !in.wait(ctx) {
			return ctx.Err()
		}
	}
}

// listen reads until a transport error. A decode failure drops that one
// message; only I/O errors (including a missed pong deadline) tear the
// connection down.
func (in *Ingestor) listen(ctx context.Context, conn *websocket.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	keepaliveCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go in.keepalive(keepaliveCtx, conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		bids, asks, err := decodeBatch(data)
		if err != nil {
			metrics.FeedDecodeErrorsTotal.Inc()
			in.logger.Warn().Err(err).Msg("dropping undecodable feed message")
			continue
		}

		in.mirror.ApplyBatch(bids, asks)
		metrics.FeedMessagesTotal.Inc()
		metrics.FeedLevelsAppliedTotal.Add(float64(len(bids) + len(asks)))
		metrics.BookLevels.WithLabelValues(string(model.BID)).Set(float64(in.mirror.Len(model.BID)))
		metrics.BookLevels.WithLabelValues(string(model.ASK)).Set(float64(in.mirror.Len(model.ASK)))
	}
}

// keepalive pings on a timer; on ctx cancellation it closes the
// connection so the blocked read returns promptly.
func (in *Ingestor) keepalive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			_ = conn.Close()
			return
		}
	}
}

// wait sleeps the backoff interval; false means ctx was cancelled.
func (in *Ingestor) wait(ctx context.Context) bool {
	timer := time.NewTimer(in.backoff)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
