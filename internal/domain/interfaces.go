package domain

import (
	"context"
	"time"
)

// DomainService is the narrow boundary to persistent storage and query
// logic. One method per command tag; the core never embeds storage logic.
// The caller id is always the authenticated id resolved by the gateway,
// never a client-supplied value.
type DomainService interface {
	Search(ctx context.Context, callerID int64, query string) ([]UserSummary, error)
	Self(ctx context.Context, callerID int64) (*UserProfile, error)
	Chats(ctx context.Context, callerID int64) (*ChatList, error)
	User(ctx context.Context, callerID, userID int64) (*UserProfile, error)
	DirectMessages(ctx context.Context, callerID, userID int64) ([]Message, error)
	Channel(ctx context.Context, callerID, channelID int64) (*Channel, error)
	ChannelMessages(ctx context.Context, callerID, channelID int64) ([]Message, error)
	ChannelMembers(ctx context.Context, callerID, channelID int64) ([]ChannelMember, error)
	ChannelRestrictions(ctx context.Context, callerID, channelID int64) ([]Restriction, error)

	UpdateName(ctx context.Context, callerID int64, name string) error
	BlockUser(ctx context.Context, callerID, targetID int64) error
	UnblockUser(ctx context.Context, callerID, targetID int64) error
	SendFriendRequest(ctx context.Context, callerID, targetID int64) error
	AcceptFriendRequest(ctx context.Context, callerID, targetID int64) error
	DeclineFriendRequest(ctx context.Context, callerID, targetID int64) error
	RemoveFriend(ctx context.Context, callerID, targetID int64) error
	SendDirectMessage(ctx context.Context, callerID, targetID int64, content string) (*Message, error)

	CreateChannel(ctx context.Context, callerID int64, name, password string, isPrivate bool) (*Channel, error)
	DeleteChannel(ctx context.Context, callerID, channelID int64) error
	JoinChannel(ctx context.Context, callerID, channelID int64, password string) error
	LeaveChannel(ctx context.Context, callerID, channelID int64) error
	AddChannelMember(ctx context.Context, callerID, channelID, targetID int64) error
	RemoveChannelMember(ctx context.Context, callerID, channelID, targetID int64) error
	UpdateChannelMemberRole(ctx context.Context, callerID, channelID, targetID int64, role ChannelRole) error
	AddChannelRestriction(ctx context.Context, callerID, channelID, targetID int64, kind RestrictionKind, duration time.Duration) error
	UpdateChannelName(ctx context.Context, callerID, channelID int64, name string) error
	UpdateChannelPassword(ctx context.Context, callerID, channelID int64, password string) error
	UpdateChannelIsPrivate(ctx context.Context, callerID, channelID int64, isPrivate bool) error
	SendChannelMessage(ctx context.Context, callerID, channelID int64, content string) (*Message, error)
}

// Connection is one registered transport connection. Send must not block
// the caller; a slow consumer drops frames for that connection only.
type Connection interface {
	ID() string
	UserID() int64
	Send(frame []byte) error
	Close() error
}

// ConnectionRegistry maps connections to users and rooms and fans frames
// out to them. All mutation is serialized behind one lock; no operation
// blocks.
type ConnectionRegistry interface {
	Register(conn Connection)
	Deregister(connID string)
	JoinRoom(connID, room string)
	LeaveRoom(connID, room string)
	MembersOf(room string) []Connection
	ConnectionsOf(userID int64) []Connection
	IsUserOnline(userID int64) bool
	SendToRoom(room string, frame []byte)
	SendToUser(userID int64, frame []byte)
	SendToAll(frame []byte)
	CloseAll()
}

// InvalidationBus publishes cache-invalidation notices. Delivery is
// best-effort and fire-and-forget; per-room ordering follows publish
// order.
type InvalidationBus interface {
	ToUser(userID int64, notice Notice)
	ToRoom(room string, notice Notice)
	ToAll(notice Notice)
}

// SessionStore resolves the out-of-band session token presented at the
// websocket handshake to an authenticated user id.
type SessionStore interface {
	UserID(ctx context.Context, token string) (int64, error)
}

// GameStarter creates an authoritative game session for a matched pair
// and returns its id.
type GameStarter interface {
	StartSession(mode GameMode, playerA, playerB int64) (string, error)
}
