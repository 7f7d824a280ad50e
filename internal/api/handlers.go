package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mi-ganesh/Document-Editor/internal/metrics"
	"github.com/mi-ganesh/Document-Editor/internal/models"
	"github.com/mi-ganesh/Document-Editor/internal/session"
	"github.com/mi-ganesh/Document-Editor/internal/store"
	"github.com/mi-ganesh/Document-Editor/internal/utils"
)

// roomRelay is the part of relay.Relay the websocket handler drives.
type roomRelay interface {
	Join(ctx context.Context, c *session.Client, req models.JoinRequest)
	Edit(ctx context.Context, c *session.Client, change models.CodeChange)
	Disconnect(c *session.Client)
}

// documentReader is the part of the store the HTTP endpoints need.
type documentReader interface {
	Find(ctx context.Context, roomID string) (*models.Document, error)
	Ping(ctx context.Context) error
}

// Options configures the HTTP and websocket handlers. Zero durations disable
// keepalive; a zero StoreTimeout falls back to 5s.
type Options struct {
	AllowedOrigins []string
	StoreTimeout   time.Duration
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteTimeout   time.Duration
}

type Handlers struct {
	log      *zap.Logger
	relay    roomRelay
	store    documentReader
	upgrader websocket.Upgrader
	opts     Options
}

func NewHandlers(log *zap.Logger, r roomRelay, st documentReader, opts Options) *Handlers {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	allowed := make(map[string]struct{}, len(opts.AllowedOrigins))
	for _, o := range opts.AllowedOrigins {
		allowed[o] = struct{}{}
	}
	return &Handlers{
		log:   log,
		relay: r,
		store: st,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		}},
		opts: opts,
	}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	state := "Connected"
	if err := h.store.Ping(ctx); err != nil {
		state = "Disconnected"
	}
	utils.JSON(w, http.StatusOK, models.HealthResponse{Status: "OK", MongoDB: state})
}

// Download returns the room's persisted text as a code.txt attachment.
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	ctx, cancel := context.WithTimeout(r.Context(), h.opts.StoreTimeout)
	defer cancel()

	doc, err := h.store.Find(ctx, roomID)
	if errors.Is(err, store.ErrNotFound) {
		utils.Text(w, http.StatusNotFound, "Room not found")
		return
	}
	if err != nil {
		h.log.Error("download failed", zap.String("roomId", roomID), zap.Error(err))
		utils.Text(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	w.Header().Set("Content-Disposition", "attachment; filename=code.txt")
	utils.Text(w, http.StatusOK, doc.Code)
}

/*** Collab WebSocket: join / code-change / disconnect ***/
func (h *Handlers) CollabWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	client := session.NewClient(conn)
	if h.opts.WriteTimeout > 0 {
		client.WriteTimeout = h.opts.WriteTimeout
	}
	metrics.ActiveConnections.Inc()
	defer metrics.ActiveConnections.Dec()
	defer h.relay.Disconnect(client)

	stop := h.startKeepalive(conn, client)
	defer stop()

	ctx := r.Context()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var frame models.WSFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			client.Send(errFrame("malformed_frame"))
			continue
		}

		switch frame.Type {
		case models.EventJoin:
			var req models.JoinRequest
			if err := marshal(frame.Data, &req); err != nil {
				client.Send(errFrame("invalid_join"))
				continue
			}
			h.relay.Join(ctx, client, req)

		case models.EventCodeChange:
			var change models.CodeChange
			if err := marshal(frame.Data, &change); err != nil {
				client.Send(errFrame("invalid_code_change"))
				continue
			}
			h.relay.Edit(ctx, client, change)

		case models.EventSyncCode:
			var push models.SyncCode
			if err := marshal(frame.Data, &push); err != nil {
				client.Send(errFrame("invalid_sync_code"))
				continue
			}
			h.log.Debug("ignoring sync-code",
				zap.String("socketId", client.ID), zap.String("target", push.SocketID), zap.Int("bytes", len(push.Code)))

		default:
			client.Send(errFrame("unknown_type"))
		}
	}
}

// startKeepalive pings the peer and closes connections that stop answering.
func (h *Handlers) startKeepalive(conn *websocket.Conn, client *session.Client) func() {
	if h.opts.PingInterval <= 0 || h.opts.PongWait <= 0 {
		return func() {}
	}
	_ = conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	})

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(h.opts.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := client.Ping(); err != nil {
					return
				}
			}
		}
	}()
	return func() { close(done) }
}

func marshal(in any, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func errFrame(msg string) models.WSFrame {
	return models.WSFrame{Type: models.EventError, Data: models.ErrorPayload{Message: msg}}
}
