package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/aristath/treasury/internal/events"
	"github.com/aristath/treasury/internal/utils"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

const (
	streamBuffer       = 256
	streamWriteTimeout = 10 * time.Second
	streamReplayBatch  = 500
	streamPingInterval = 30 * time.Second
)

// EventsStreamHandler streams committed audit records over a websocket.
// Query parameters:
//   - types: comma-separated record types to forward (default: all)
//   - after: replay stored records with a greater id before going live
type EventsStreamHandler struct {
	bus  *events.Bus
	repo *events.Repository
	log  zerolog.Logger
}

// NewEventsStreamHandler creates a new events stream handler
func NewEventsStreamHandler(bus *events.Bus, repo *events.Repository, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		bus:  bus,
		repo: repo,
		log:  log.With().Str("component", "events_stream").Logger(),
	}
}

// ServeHTTP handles GET /api/events/stream
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	allowed := parseTypes(r.URL.Query().Get("types"))

	var after int64 = -1
	if raw := r.URL.Query().Get("after"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			http.Error(w, "invalid after", http.StatusBadRequest)
			return
		}
		after = n
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	// The stream is write-only; CloseRead handles control frames and cancels
	// ctx once the client goes away.
	ctx := conn.CloseRead(r.Context())

	// Subscribe before replaying so nothing committed in between is lost
	live := make(chan *events.Event, streamBuffer)
	overflow := make(chan struct{})
	var once sync.Once
	unsubscribe := h.bus.SubscribeAll(func(e *events.Event) {
		select {
		case live <- e:
		default:
			once.Do(func() { close(overflow) })
		}
	})
	defer unsubscribe()

	h.log.Info().Int("types", len(allowed)).Int64("after", after).Msg("Events stream client connected")

	lastSent := after
	if after >= 0 {
		lastSent, err = h.replay(ctx, conn, after, allowed)
		if err != nil {
			h.log.Debug().Err(err).Msg("Events stream replay aborted")
			return
		}
	}

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Events stream client disconnected")
			return
		case <-overflow:
			h.log.Warn().Msg("Events stream client too slow, closing")
			conn.Close(websocket.StatusPolicyViolation, "slow consumer")
			return
		case <-ping.C:
			pingCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		case e := <-live:
			if e.ID <= lastSent || !wanted(allowed, e.Type) {
				continue
			}
			if err := h.send(ctx, conn, e); err != nil {
				h.log.Debug().Err(err).Msg("Events stream write failed")
				return
			}
			lastSent = e.ID
		}
	}
}

func (h *EventsStreamHandler) replay(ctx context.Context, conn *websocket.Conn, after int64, allowed map[events.EventType]bool) (int64, error) {
	last := after
	for {
		batch, err := h.repo.ListAfter(ctx, last, streamReplayBatch)
		if err != nil {
			return last, err
		}
		for i := range batch {
			if wanted(allowed, batch[i].Type) {
				if err := h.send(ctx, conn, &batch[i]); err != nil {
					return last, err
				}
			}
			last = batch[i].ID
		}
		if len(batch) < streamReplayBatch {
			return last, nil
		}
	}
}

func (h *EventsStreamHandler) send(ctx context.Context, conn *websocket.Conn, e *events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}

func parseTypes(raw string) map[events.EventType]bool {
	values := utils.ParseCSV(raw)
	if values == nil {
		return nil
	}
	allowed := make(map[events.EventType]bool, len(values))
	for _, t := range values {
		allowed[events.EventType(t)] = true
	}
	return allowed
}

func wanted(allowed map[events.EventType]bool, t events.EventType) bool {
	return allowed == nil || allowed[t]
}
