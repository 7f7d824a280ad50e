// Package relay routes room events between connections and the document store.
package relay

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mi-ganesh/Document-Editor/internal/metrics"
	"github.com/mi-ganesh/Document-Editor/internal/models"
	"github.com/mi-ganesh/Document-Editor/internal/session"
	"github.com/mi-ganesh/Document-Editor/internal/store"
)

// RoomSet is the connection grouping the relay reads and mutates.
type RoomSet interface {
	Join(roomID string, c *session.Client)
	Members(roomID string) []*session.Client
	RoomsOf(c *session.Client) []string
	LeaveAll(c *session.Client)
	Broadcast(roomID string, except *session.Client, frame models.WSFrame)
}

// Publisher forwards an edit to relays running in other processes.
type Publisher interface {
	Publish(ctx context.Context, roomID, code string) error
}

type Options struct {
	// PersistSync makes Edit wait for the upsert instead of queueing it.
	PersistSync  bool
	StoreTimeout time.Duration
	Publisher    Publisher
}

type Relay struct {
	log       *zap.Logger
	store     store.DocumentStore
	rooms     RoomSet
	presence  *session.Presence
	publisher Publisher

	persistSync bool
	timeout     time.Duration
	writer      *docWriter
}

func New(log *zap.Logger, st store.DocumentStore, rooms RoomSet, opts Options) *Relay {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	r := &Relay{
		log:         log,
		store:       st,
		rooms:       rooms,
		presence:    session.NewPresence(),
		publisher:   opts.Publisher,
		persistSync: opts.PersistSync,
		timeout:     opts.StoreTimeout,
	}
	r.writer = newDocWriter(r.persist)
	return r
}

// Join registers c under username in roomID, sends it the current document
// and refreshes the roster of every member.
func (r *Relay) Join(ctx context.Context, c *session.Client, req models.JoinRequest) {
	metrics.RelayEvents.WithLabelValues(models.EventJoin).Inc()

	r.presence.Set(c.ID, req.Username)
	r.rooms.Join(req.RoomID, c)

	code := ""
	storeCtx, cancel := context.WithTimeout(ctx, r.timeout)
	doc, err := r.store.FindOrCreate(storeCtx, req.RoomID)
	cancel()
	if err != nil {
		metrics.PersistFailures.WithLabelValues("find_or_create").Inc()
		r.log.Error("room join: load document failed",
			zap.String("roomId", req.RoomID), zap.String("socketId", c.ID), zap.Error(err))
	} else {
		code = doc.Code
	}

	c.Send(models.WSFrame{Type: models.EventCodeChange, Data: models.CodePayload{Code: code}})

	members := r.rooms.Members(req.RoomID)
	clients := make([]models.ClientInfo, 0, len(members))
	for _, m := range members {
		clients = append(clients, models.ClientInfo{SocketID: m.ID, Username: r.presence.Username(m.ID)})
	}
	joined := models.WSFrame{
		Type: models.EventJoined,
		Data: models.JoinedPayload{Clients: clients, Username: req.Username, SocketID: c.ID},
	}
	r.rooms.Broadcast(req.RoomID, nil, joined)

	r.log.Info("client joined room",
		zap.String("roomId", req.RoomID), zap.String("socketId", c.ID),
		zap.String("username", req.Username), zap.Int("members", len(members)))
}

// Edit relays the full text to the other members of the room first and
// persists it afterwards.
func (r *Relay) Edit(ctx context.Context, c *session.Client, change models.CodeChange) {
	metrics.RelayEvents.WithLabelValues(models.EventCodeChange).Inc()

	frame := models.WSFrame{Type: models.EventCodeChange, Data: models.CodePayload{Code: change.Code}}
	r.rooms.Broadcast(change.RoomID, c, frame)

	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, change.RoomID, change.Code); err != nil {
			r.log.Warn("fan-out publish failed", zap.String("roomId", change.RoomID), zap.Error(err))
		} else {
			metrics.FanoutMessages.WithLabelValues("out").Inc()
		}
	}

	if r.persistSync {
		r.persist(change.RoomID, change.Code)
		return
	}
	r.writer.enqueue(change.RoomID, change.Code)
}

// Disconnect announces c's departure to every room it was in, then forgets it.
func (r *Relay) Disconnect(c *session.Client) {
	metrics.RelayEvents.WithLabelValues(models.EventDisconnected).Inc()

	username := r.presence.Username(c.ID)
	frame := models.WSFrame{
		Type: models.EventDisconnected,
		Data: models.DisconnectedPayload{SocketID: c.ID, Username: username},
	}
	rooms := r.rooms.RoomsOf(c)
	for _, roomID := range rooms {
		r.rooms.Broadcast(roomID, c, frame)
	}
	r.rooms.LeaveAll(c)
	r.presence.Remove(c.ID)

	r.log.Info("client disconnected",
		zap.String("socketId", c.ID), zap.String("username", username), zap.Strings("rooms", rooms))
}

// DeliverRemote hands an edit made on another instance to the local members of its room.
func (r *Relay) DeliverRemote(edit models.RemoteEdit) {
	metrics.FanoutMessages.WithLabelValues("in").Inc()
	frame := models.WSFrame{Type: models.EventCodeChange, Data: models.CodePayload{Code: edit.Code}}
	r.rooms.Broadcast(edit.RoomID, nil, frame)
}

// PresenceCount reports how many connections have declared a username.
func (r *Relay) PresenceCount() int { return r.presence.Len() }

// Close waits for queued document writes to finish.
func (r *Relay) Close(ctx context.Context) error {
	return r.writer.flush(ctx)
}

func (r *Relay) persist(roomID, code string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.store.Upsert(ctx, roomID, code); err != nil {
		metrics.PersistFailures.WithLabelValues("upsert").Inc()
		r.log.Error("save code failed", zap.String("roomId", roomID), zap.Error(err))
	}
}
