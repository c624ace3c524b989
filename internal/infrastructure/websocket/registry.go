package websocket

import (
	"sync"

	"arcade-system/internal/domain"
	"arcade-system/pkg/logger"
)

// Registry owns the connection/session bookkeeping: which connection
// belongs to which user and which rooms it has joined. Every mutation is
// serialized behind one lock; deregistering removes all memberships
// atomically and a room with zero members is removed.
type Registry struct {
	conns  map[string]domain.Connection            // connID -> connection
	byUser map[int64]map[string]domain.Connection  // userID -> connID -> connection
	rooms  map[string]map[string]domain.Connection // room -> connID -> connection
	joined map[string]map[string]struct{}          // connID -> rooms
	mutex  sync.RWMutex
	log    logger.Logger
}

func NewRegistry(log logger.Logger) *Registry {
	return &Registry{
		conns:  make(map[string]domain.Connection),
		byUser: make(map[int64]map[string]domain.Connection),
		rooms:  make(map[string]map[string]domain.Connection),
		joined: make(map[string]map[string]struct{}),
		log:    log,
	}
}

func (r *Registry) Register(conn domain.Connection) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.conns[conn.ID()] = conn
	if r.byUser[conn.UserID()] == nil {
		r.byUser[conn.UserID()] = make(map[string]domain.Connection)
	}
	r.byUser[conn.UserID()][conn.ID()] = conn
	r.joined[conn.ID()] = make(map[string]struct{})

	r.log.Info("Connection registered", "conn_id", conn.ID(), "user_id", conn.UserID())
}

// Deregister is idempotent; a second call for the same id is a no-op.
func (r *Registry) Deregister(connID string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	conn, exists := r.conns[connID]
	if !exists {
		return
	}

	for room := range r.joined[connID] {
		r.removeFromRoom(connID, room)
	}
	delete(r.joined, connID)

	if userConns, exists := r.byUser[conn.UserID()]; exists {
		delete(userConns, connID)
		if len(userConns) == 0 {
			delete(r.byUser, conn.UserID())
		}
	}
	delete(r.conns, connID)

	r.log.Info("Connection deregistered", "conn_id", connID, "user_id", conn.UserID())
}

func (r *Registry) JoinRoom(connID, room string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	conn, exists := r.conns[connID]
	if !exists {
		return
	}
	if r.rooms[room] == nil {
		r.rooms[room] = make(map[string]domain.Connection)
	}
	r.rooms[room][connID] = conn
	r.joined[connID][room] = struct{}{}
}

func (r *Registry) LeaveRoom(connID, room string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.conns[connID]; !exists {
		return
	}
	r.removeFromRoom(connID, room)
	delete(r.joined[connID], room)
}

// removeFromRoom requires the write lock.
func (r *Registry) removeFromRoom(connID, room string) {
	if members, exists := r.rooms[room]; exists {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
}

func (r *Registry) MembersOf(room string) []domain.Connection {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var members []domain.Connection
	for _, conn := range r.rooms[room] {
		members = append(members, conn)
	}
	return members
}

func (r *Registry) ConnectionsOf(userID int64) []domain.Connection {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var conns []domain.Connection
	for _, conn := range r.byUser[userID] {
		conns = append(conns, conn)
	}
	return conns
}

func (r *Registry) IsUserOnline(userID int64) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.byUser[userID]) > 0
}

func (r *Registry) SendToRoom(room string, frame []byte) {
	for _, conn := range r.MembersOf(room) {
		if err := conn.Send(frame); err != nil {
			r.log.Debug("Failed to send to room member", "room", room,
				"conn_id", conn.ID(), "error", err)
		}
	}
}

func (r *Registry) SendToUser(userID int64, frame []byte) {
	for _, conn := range r.ConnectionsOf(userID) {
		if err := conn.Send(frame); err != nil {
			r.log.Debug("Failed to send to user", "user_id", userID,
				"conn_id", conn.ID(), "error", err)
		}
	}
}

func (r *Registry) SendToAll(frame []byte) {
	r.mutex.RLock()
	conns := make([]domain.Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	r.mutex.RUnlock()

	for _, conn := range conns {
		if err := conn.Send(frame); err != nil {
			r.log.Debug("Failed to send broadcast", "conn_id", conn.ID(), "error", err)
		}
	}
}

// CloseAll closes every connection during shutdown.
func (r *Registry) CloseAll() {
	r.mutex.Lock()
	conns := make([]domain.Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	r.mutex.Unlock()

	for _, conn := range conns {
		if err := conn.Close(); err != nil {
			r.log.Debug("Failed to close connection", "conn_id", conn.ID(), "error", err)
		}
	}
}
