package models

// Event names carried in WSFrame.Type.
const (
	EventJoin         = "join"
	EventJoined       = "joined"
	EventCodeChange   = "code-change"
	EventSyncCode     = "sync-code"
	EventDisconnected = "disconnected"
	EventError        = "error"
)

// Document is the persisted text of one room.
type Document struct {
	RoomID string `json:"roomId" bson:"roomId"`
	Code   string `json:"code" bson:"code"`
}

type WSFrame struct {
	Type string      `json:"type"` // "join","code-change","sync-code","joined","disconnected","error"
	Data interface{} `json:"data"`
}

/*** Client -> server payloads ***/
type JoinRequest struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

type CodeChange struct {
	RoomID string `json:"roomId"`
	Code   string `json:"code"`
}

// SyncCode is sent by clients to push their buffer to a peer. The server ignores it.
type SyncCode struct {
	Code     string `json:"code"`
	SocketID string `json:"socketId"`
}

/*** Server -> client payloads ***/
type CodePayload struct {
	Code string `json:"code"`
}

type ClientInfo struct {
	SocketID string `json:"socketId"`
	Username string `json:"username"`
}

type JoinedPayload struct {
	Clients  []ClientInfo `json:"clients"`
	Username string       `json:"username"`
	SocketID string       `json:"socketId"`
}

type DisconnectedPayload struct {
	SocketID string `json:"socketId"`
	Username string `json:"username"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// RemoteEdit is an edit travelling between server instances over the fan-out bus.
type RemoteEdit struct {
	Origin string `json:"origin"`
	RoomID string `json:"roomId"`
	Code   string `json:"code"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	MongoDB string `json:"mongoDB"`
}
