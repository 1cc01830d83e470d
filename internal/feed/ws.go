// Package feed supplies market prices to the engine. The primary source is a
// WebSocket ticker stream; when it is unavailable the engine falls back to
// the synthetic source in this package and tags the cycle's provenance.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/crossarb/paperbot/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second
	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// reconnectDelay is the pause before re-dialing after a disconnect.
	reconnectDelay = 2 * time.Second
	// defaultMaxStale bounds how old a cached price may be before Prices
	// refuses to serve it, unless the caller overrides it.
	defaultMaxStale = 30 * time.Second
)

// tickerMessage is the wire format of one price update.
type tickerMessage struct {
	Type     string  `json:"type"`
	MarketID string  `json:"market_id"`
	Price    float64 `json:"price"`
}

// subscribeCommand asks the stream for updates on the given markets.
type subscribeCommand struct {
	Type    string   `json:"type"`
	Markets []string `json:"markets"`
}

// WSFeed maintains a WebSocket connection to a ticker stream and caches the
// most recent price per market. It implements domain.PriceSource and
// reconnects on disconnect.
type WSFeed struct {
	wsURL    string
	markets  []string
	maxStale time.Duration
	logger   *slog.Logger

	mu        sync.RWMutex
	prices    map[string]float64
	updatedAt time.Time

	closeOnce sync.Once
	done      chan struct{}
}

// NewWSFeed creates a feed that subscribes to ticker updates for the given
// market IDs. maxStale bounds the age of a served price; zero or negative
// values fall back to the default.
func NewWSFeed(wsURL string, markets []string, maxStale time.Duration, logger *slog.Logger) *WSFeed {
	if maxStale <= 0 {
		maxStale = defaultMaxStale
	}
	return &WSFeed{
		wsURL:    wsURL,
		markets:  markets,
		maxStale: maxStale,
		logger:   logger.With(slog.String("component", "ws_feed")),
		prices:   make(map[string]float64),
		done:     make(chan struct{}),
	}
}

// Run connects and consumes ticker messages until ctx is cancelled, dialing
// again with a fixed delay after each disconnect.
func (f *WSFeed) Run(ctx context.Context) error {
	if len(f.markets) == 0 {
		f.logger.Info("no markets to subscribe, feed idle")
		<-ctx.Done()
		return ctx.Err()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}

		if err := f.runConnection(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.logger.Warn("ticker stream disconnected, reconnecting",
				slog.String("error", err.Error()),
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

func (f *WSFeed) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("feed: dial %s: %w", f.wsURL, err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	sub := subscribeCommand{Type: "subscribe", Markets: f.markets}
	payload, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("feed: marshal subscribe: %w", err)
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("feed: subscribe: %w", err)
	}
	f.logger.Info("ticker stream subscribed", slog.Int("markets", len(f.markets)))

	// Ping loop keeps the connection alive while the read loop below blocks.
	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				return
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("feed: read: %w", domain.ErrWSDisconnect)
		}
		f.handleMessage(raw)
	}
}

func (f *WSFeed) handleMessage(raw []byte) {
	var msg tickerMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		f.logger.Debug("unparseable ticker message", slog.String("error", err.Error()))
		return
	}
	if msg.Type != "ticker" || msg.MarketID == "" || msg.Price <= 0 {
		return
	}

	f.mu.Lock()
	f.prices[msg.MarketID] = msg.Price
	f.updatedAt = time.Now()
	f.mu.Unlock()
}

// Prices returns the cached price snapshot. It fails when the cache is empty
// or stale so the engine can fall back to synthetic data with an honest
// provenance tag.
func (f *WSFeed) Prices(ctx context.Context) (map[string]float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.prices) == 0 {
		return nil, fmt.Errorf("feed: no prices received yet: %w", domain.ErrWSDisconnect)
	}
	if time.Since(f.updatedAt) > f.maxStale {
		return nil, fmt.Errorf("feed: prices stale by %s: %w", time.Since(f.updatedAt), domain.ErrWSDisconnect)
	}

	out := make(map[string]float64, len(f.prices))
	for k, v := range f.prices {
		out[k] = v
	}
	return out, nil
}

// Close stops the feed.
func (f *WSFeed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}

var _ domain.PriceSource = (*WSFeed)(nil)
