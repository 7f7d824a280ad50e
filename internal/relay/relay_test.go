package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mi-ganesh/Document-Editor/internal/models"
	"github.com/mi-ganesh/Document-Editor/internal/session"
	"github.com/mi-ganesh/Document-Editor/internal/store"
)

type fakeStore struct {
	mu        sync.Mutex
	docs      map[string]string
	creates   int
	upserts   int
	findErr   error
	upsertErr error
	onUpsert  func(roomID, code string)
}

func newFakeStore() *fakeStore { return &fakeStore{docs: make(map[string]string)} }

func (f *fakeStore) FindOrCreate(_ context.Context, roomID string) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	code, ok := f.docs[roomID]
	if !ok {
		f.docs[roomID] = ""
		f.creates++
	}
	return &models.Document{RoomID: roomID, Code: code}, nil
}

func (f *fakeStore) Find(_ context.Context, roomID string) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	code, ok := f.docs[roomID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &models.Document{RoomID: roomID, Code: code}, nil
}

func (f *fakeStore) Upsert(_ context.Context, roomID, code string) error {
	if f.onUpsert != nil {
		f.onUpsert(roomID, code)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.docs[roomID] = code
	f.upserts++
	return nil
}

func (f *fakeStore) Ping(context.Context) error  { return nil }
func (f *fakeStore) Close(context.Context) error { return nil }

func (f *fakeStore) code(roomID string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	code, ok := f.docs[roomID]
	return code, ok
}

type fakePublisher struct {
	mu    sync.Mutex
	edits []models.CodeChange
	err   error
}

func (p *fakePublisher) Publish(_ context.Context, roomID, code string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.edits = append(p.edits, models.CodeChange{RoomID: roomID, Code: code})
	return p.err
}

type frameCapture struct {
	mu     sync.Mutex
	frames []models.WSFrame
}

func (c *frameCapture) hook(frame models.WSFrame) {
	c.mu.Lock()
	c.frames = append(c.frames, frame)
	c.mu.Unlock()
}

func (c *frameCapture) list() []models.WSFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.WSFrame, len(c.frames))
	copy(out, c.frames)
	return out
}

func (c *frameCapture) ofType(typ string) []models.WSFrame {
	var out []models.WSFrame
	for _, f := range c.list() {
		if f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}

func (c *frameCapture) reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}

func newTestClient() (*session.Client, *frameCapture) {
	c := session.NewClient(nil)
	capture := &frameCapture{}
	c.SetSendHook(capture.hook)
	return c, capture
}

func newTestRelay(st store.DocumentStore, opts Options) (*Relay, *session.Hub) {
	hub := session.NewHub()
	return New(zap.NewNop(), st, hub, opts), hub
}

func TestJoinNewRoomCreatesEmptyDocumentAndAcksOnce(t *testing.T) {
	st := newFakeStore()
	r, _ := newTestRelay(st, Options{})
	c, capture := newTestClient()

	r.Join(context.Background(), c, models.JoinRequest{RoomID: "room-1", Username: "alice"})

	if st.creates != 1 {
		t.Fatalf("expected exactly one document created, got %d", st.creates)
	}
	if code, ok := st.code("room-1"); !ok || code != "" {
		t.Fatalf("expected empty document, got %q ok=%v", code, ok)
	}
	acks := capture.ofType(models.EventCodeChange)
	if len(acks) != 1 || acks[0].Data.(models.CodePayload).Code != "" {
		t.Fatalf("expected one empty join ack, got %#v", acks)
	}
	joined := capture.ofType(models.EventJoined)
	if len(joined) != 1 {
		t.Fatalf("expected one joined announcement, got %d", len(joined))
	}
	payload := joined[0].Data.(models.JoinedPayload)
	if payload.Username != "alice" || payload.SocketID != c.ID || len(payload.Clients) != 1 {
		t.Fatalf("unexpected joined payload: %#v", payload)
	}
}

func TestJoinSendsStoredCodeToJoinerOnly(t *testing.T) {
	st := newFakeStore()
	st.docs["room"] = "print('hi')"
	r, _ := newTestRelay(st, Options{})
	first, firstCap := newTestClient()
	second, secondCap := newTestClient()

	r.Join(context.Background(), first, models.JoinRequest{RoomID: "room", Username: "a"})
	firstCap.reset()
	r.Join(context.Background(), second, models.JoinRequest{RoomID: "room", Username: "b"})

	if got := secondCap.ofType(models.EventCodeChange); len(got) != 1 || got[0].Data.(models.CodePayload).Code != "print('hi')" {
		t.Fatalf("joiner should receive stored code, got %#v", got)
	}
	if got := firstCap.ofType(models.EventCodeChange); len(got) != 0 {
		t.Fatalf("existing member should not receive the join ack, got %#v", got)
	}
	if st.creates != 0 {
		t.Fatalf("existing document must not be recreated")
	}
}

func TestJoinRosterIsCumulative(t *testing.T) {
	r, _ := newTestRelay(newFakeStore(), Options{})
	names := []string{"alice", "bob", "carol"}
	var clients []*session.Client
	var captures []*frameCapture

	for i, name := range names {
		c, capture := newTestClient()
		clients = append(clients, c)
		captures = append(captures, capture)
		for _, existing := range captures {
			existing.reset()
		}

		r.Join(context.Background(), c, models.JoinRequest{RoomID: "room", Username: name})

		for j, capture := range captures {
			joined := capture.ofType(models.EventJoined)
			if len(joined) != 1 {
				t.Fatalf("join %d: member %d expected one announcement, got %d", i, j, len(joined))
			}
			payload := joined[0].Data.(models.JoinedPayload)
			if payload.Username != name || payload.SocketID != c.ID {
				t.Fatalf("join %d: unexpected joiner in payload %#v", i, payload)
			}
			if len(payload.Clients) != i+1 {
				t.Fatalf("join %d: expected %d clients, got %d", i, i+1, len(payload.Clients))
			}
			for k, info := range payload.Clients {
				if info.SocketID != clients[k].ID || info.Username != names[k] {
					t.Fatalf("join %d: roster entry %d = %#v", i, k, info)
				}
			}
		}
	}
}

func TestJoinAllowsDuplicateUsernames(t *testing.T) {
	r, _ := newTestRelay(newFakeStore(), Options{})
	a, _ := newTestClient()
	b, bCap := newTestClient()

	r.Join(context.Background(), a, models.JoinRequest{RoomID: "room", Username: "sam"})
	r.Join(context.Background(), b, models.JoinRequest{RoomID: "room", Username: "sam"})

	payload := bCap.ofType(models.EventJoined)[0].Data.(models.JoinedPayload)
	if len(payload.Clients) != 2 || payload.Clients[0].Username != "sam" || payload.Clients[1].Username != "sam" {
		t.Fatalf("expected both sams in roster, got %#v", payload.Clients)
	}
	if r.PresenceCount() != 2 {
		t.Fatalf("expected two presence entries, got %d", r.PresenceCount())
	}
}

func TestJoinStoreFailureStillJoins(t *testing.T) {
	st := newFakeStore()
	st.findErr = errors.New("mongo down")
	r, hub := newTestRelay(st, Options{})
	c, capture := newTestClient()

	r.Join(context.Background(), c, models.JoinRequest{RoomID: "room", Username: "alice"})

	acks := capture.ofType(models.EventCodeChange)
	if len(acks) != 1 || acks[0].Data.(models.CodePayload).Code != "" {
		t.Fatalf("expected empty fallback ack, got %#v", acks)
	}
	if len(capture.ofType(models.EventJoined)) != 1 {
		t.Fatalf("expected joined announcement despite store failure")
	}
	if members := hub.Members("room"); len(members) != 1 || members[0] != c {
		t.Fatalf("expected client to be in room, got %v", members)
	}
}

func TestEditBroadcastsToOthersAndPersists(t *testing.T) {
	st := newFakeStore()
	r, _ := newTestRelay(st, Options{PersistSync: true})
	sender, senderCap := newTestClient()
	peer1, peer1Cap := newTestClient()
	peer2, peer2Cap := newTestClient()
	outsider, outsiderCap := newTestClient()

	for _, c := range []*session.Client{sender, peer1, peer2} {
		r.Join(context.Background(), c, models.JoinRequest{RoomID: "room", Username: "u"})
	}
	r.Join(context.Background(), outsider, models.JoinRequest{RoomID: "elsewhere", Username: "o"})
	for _, capture := range []*frameCapture{senderCap, peer1Cap, peer2Cap, outsiderCap} {
		capture.reset()
	}

	r.Edit(context.Background(), sender, models.CodeChange{RoomID: "room", Code: "x = 1"})

	for i, capture := range []*frameCapture{peer1Cap, peer2Cap} {
		got := capture.list()
		if len(got) != 1 || got[0].Type != models.EventCodeChange || got[0].Data.(models.CodePayload).Code != "x = 1" {
			t.Fatalf("peer %d: unexpected frames %#v", i, got)
		}
	}
	if got := senderCap.list(); len(got) != 0 {
		t.Fatalf("sender must not receive its own edit, got %#v", got)
	}
	if got := outsiderCap.list(); len(got) != 0 {
		t.Fatalf("other rooms must not receive the edit, got %#v", got)
	}
	if code, _ := st.code("room"); code != "x = 1" {
		t.Fatalf("expected persisted code, got %q", code)
	}
}

func TestEditBroadcastsBeforePersisting(t *testing.T) {
	st := newFakeStore()
	r, _ := newTestRelay(st, Options{PersistSync: true})
	sender, _ := newTestClient()
	peer, peerCap := newTestClient()
	r.Join(context.Background(), sender, models.JoinRequest{RoomID: "room", Username: "a"})
	r.Join(context.Background(), peer, models.JoinRequest{RoomID: "room", Username: "b"})
	peerCap.reset()

	var seenAtPersist int
	st.onUpsert = func(string, string) { seenAtPersist = len(peerCap.list()) }

	r.Edit(context.Background(), sender, models.CodeChange{RoomID: "room", Code: "y"})

	if seenAtPersist != 1 {
		t.Fatalf("expected broadcast to complete before persistence, peer had %d frames", seenAtPersist)
	}
}

func TestEditPersistFailureDoesNotAffectBroadcast(t *testing.T) {
	st := newFakeStore()
	st.upsertErr = errors.New("write failed")
	r, _ := newTestRelay(st, Options{PersistSync: true})
	sender, _ := newTestClient()
	peer, peerCap := newTestClient()
	r.Join(context.Background(), sender, models.JoinRequest{RoomID: "room", Username: "a"})
	r.Join(context.Background(), peer, models.JoinRequest{RoomID: "room", Username: "b"})
	peerCap.reset()

	r.Edit(context.Background(), sender, models.CodeChange{RoomID: "room", Code: "lost"})

	if got := peerCap.ofType(models.EventCodeChange); len(got) != 1 {
		t.Fatalf("expected broadcast despite persistence failure, got %#v", got)
	}
	if code, _ := st.code("room"); code != "" {
		t.Fatalf("expected storage to keep old text, got %q", code)
	}
}

func TestEditCreatesDocumentWhenMissing(t *testing.T) {
	st := newFakeStore()
	r, _ := newTestRelay(st, Options{PersistSync: true})
	c, _ := newTestClient()

	r.Edit(context.Background(), c, models.CodeChange{RoomID: "never-joined", Code: "hello"})

	if code, ok := st.code("never-joined"); !ok || code != "hello" {
		t.Fatalf("expected upsert to create document, got %q ok=%v", code, ok)
	}
}

func TestAsyncEditsConvergeToLastEditPerRoom(t *testing.T) {
	st := newFakeStore()
	st.onUpsert = func(string, string) { time.Sleep(time.Millisecond) }
	r, _ := newTestRelay(st, Options{})
	c, _ := newTestClient()

	for i := 1; i <= 50; i++ {
		r.Edit(context.Background(), c, models.CodeChange{RoomID: "a", Code: fmt.Sprintf("a-%d", i)})
		r.Edit(context.Background(), c, models.CodeChange{RoomID: "b", Code: fmt.Sprintf("b-%d", i)})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	if code, _ := st.code("a"); code != "a-50" {
		t.Fatalf("room a: expected last edit, got %q", code)
	}
	if code, _ := st.code("b"); code != "b-50" {
		t.Fatalf("room b: expected last edit, got %q", code)
	}
}

func TestEditPublishesToFanout(t *testing.T) {
	pub := &fakePublisher{}
	r, _ := newTestRelay(newFakeStore(), Options{PersistSync: true, Publisher: pub})
	c, _ := newTestClient()

	r.Edit(context.Background(), c, models.CodeChange{RoomID: "room", Code: "z"})

	if len(pub.edits) != 1 || pub.edits[0].RoomID != "room" || pub.edits[0].Code != "z" {
		t.Fatalf("unexpected published edits: %#v", pub.edits)
	}
}

func TestEditPublishFailureStillPersists(t *testing.T) {
	st := newFakeStore()
	pub := &fakePublisher{err: errors.New("redis down")}
	r, _ := newTestRelay(st, Options{PersistSync: true, Publisher: pub})
	c, _ := newTestClient()

	r.Edit(context.Background(), c, models.CodeChange{RoomID: "room", Code: "kept"})

	if code, _ := st.code("room"); code != "kept" {
		t.Fatalf("expected persisted code, got %q", code)
	}
}

func TestDisconnectAnnouncesOncePerRoom(t *testing.T) {
	r, hub := newTestRelay(newFakeStore(), Options{})
	leaver, _ := newTestClient()
	peerA, peerACap := newTestClient()
	peerB, peerBCap := newTestClient()

	ctx := context.Background()
	r.Join(ctx, leaver, models.JoinRequest{RoomID: "a", Username: "leaver"})
	r.Join(ctx, leaver, models.JoinRequest{RoomID: "b", Username: "leaver"})
	r.Join(ctx, peerA, models.JoinRequest{RoomID: "a", Username: "pa"})
	r.Join(ctx, peerB, models.JoinRequest{RoomID: "b", Username: "pb"})
	peerACap.reset()
	peerBCap.reset()

	r.Disconnect(leaver)

	for name, capture := range map[string]*frameCapture{"a": peerACap, "b": peerBCap} {
		got := capture.ofType(models.EventDisconnected)
		if len(got) != 1 {
			t.Fatalf("room %s: expected one departure, got %d", name, len(got))
		}
		payload := got[0].Data.(models.DisconnectedPayload)
		if payload.SocketID != leaver.ID || payload.Username != "leaver" {
			t.Fatalf("room %s: unexpected payload %#v", name, payload)
		}
	}
	if rooms := hub.RoomsOf(leaver); len(rooms) != 0 {
		t.Fatalf("expected leaver removed from rooms, got %v", rooms)
	}
	if r.PresenceCount() != 2 {
		t.Fatalf("expected presence entry removed, got %d entries", r.PresenceCount())
	}

	newcomer, newcomerCap := newTestClient()
	r.Join(ctx, newcomer, models.JoinRequest{RoomID: "a", Username: "n"})
	payload := newcomerCap.ofType(models.EventJoined)[0].Data.(models.JoinedPayload)
	for _, info := range payload.Clients {
		if info.SocketID == leaver.ID {
			t.Fatalf("disconnected client still in roster: %#v", payload.Clients)
		}
	}
}

func TestDisconnectWithoutJoin(t *testing.T) {
	r, _ := newTestRelay(newFakeStore(), Options{})
	c, capture := newTestClient()

	r.Disconnect(c)

	if len(capture.list()) != 0 || r.PresenceCount() != 0 {
		t.Fatalf("disconnect without join should be a no-op")
	}
}

func TestDeliverRemoteReachesAllLocalMembers(t *testing.T) {
	st := newFakeStore()
	r, _ := newTestRelay(st, Options{PersistSync: true})
	a, aCap := newTestClient()
	b, bCap := newTestClient()
	r.Join(context.Background(), a, models.JoinRequest{RoomID: "room", Username: "a"})
	r.Join(context.Background(), b, models.JoinRequest{RoomID: "room", Username: "b"})
	aCap.reset()
	bCap.reset()

	r.DeliverRemote(models.RemoteEdit{Origin: "other", RoomID: "room", Code: "remote"})

	for _, capture := range []*frameCapture{aCap, bCap} {
		got := capture.ofType(models.EventCodeChange)
		if len(got) != 1 || got[0].Data.(models.CodePayload).Code != "remote" {
			t.Fatalf("expected remote edit delivered, got %#v", got)
		}
	}
	if st.upserts != 0 {
		t.Fatalf("remote edits must not be persisted again")
	}
}

type broadcastCall struct {
	roomID string
	except *session.Client
	typ    string
}

// recordingRooms wraps a hub and records every broadcast.
type recordingRooms struct {
	*session.Hub
	mu    sync.Mutex
	calls []broadcastCall
}

func (r *recordingRooms) Broadcast(roomID string, except *session.Client, frame models.WSFrame) {
	r.mu.Lock()
	r.calls = append(r.calls, broadcastCall{roomID: roomID, except: except, typ: frame.Type})
	r.mu.Unlock()
	r.Hub.Broadcast(roomID, except, frame)
}

func TestRelayBroadcastsThroughRoomSet(t *testing.T) {
	rooms := &recordingRooms{Hub: session.NewHub()}
	r := New(zap.NewNop(), newFakeStore(), rooms, Options{PersistSync: true})
	a, _ := newTestClient()
	b, _ := newTestClient()
	ctx := context.Background()

	r.Join(ctx, a, models.JoinRequest{RoomID: "room", Username: "a"})
	r.Join(ctx, b, models.JoinRequest{RoomID: "room", Username: "b"})
	r.Edit(ctx, a, models.CodeChange{RoomID: "room", Code: "x"})
	r.DeliverRemote(models.RemoteEdit{Origin: "other", RoomID: "room", Code: "y"})
	r.Disconnect(b)

	want := []broadcastCall{
		{"room", nil, models.EventJoined},
		{"room", nil, models.EventJoined},
		{"room", a, models.EventCodeChange},
		{"room", nil, models.EventCodeChange},
		{"room", b, models.EventDisconnected},
	}
	if len(rooms.calls) != len(want) {
		t.Fatalf("expected %d broadcasts, got %#v", len(want), rooms.calls)
	}
	for i, call := range want {
		if rooms.calls[i] != call {
			t.Fatalf("broadcast %d: expected %#v, got %#v", i, call, rooms.calls[i])
		}
	}
}
