package domain

import (
	"sort"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Millis is a point in time carried on the wire as integer epoch milliseconds.
type Millis int64

func TimeToMillis(t time.Time) Millis {
	return Millis(t.UnixMilli())
}

func (m Millis) Time() time.Time {
	return time.UnixMilli(int64(m))
}

// IDSet is an unordered collection of unique ids. It encodes as a sorted
// array so that encoding the same logical set is always byte-identical.
type IDSet map[int64]struct{}

func NewIDSet(ids ...int64) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s IDSet) Contains(id int64) bool {
	_, ok := s[id]
	return ok
}

func (s IDSet) Add(id int64) {
	s[id] = struct{}{}
}

func (s IDSet) Sorted() []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s IDSet) EncodeMsgpack(enc *msgpack.Encoder) error {
	ids := s.Sorted()
	if err := enc.EncodeArrayLen(len(ids)); err != nil {
		return err
	}
	for _, id := range ids {
		if err := enc.EncodeInt(id); err != nil {
			return err
		}
	}
	return nil
}

func (s *IDSet) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	set := make(IDSet, n)
	for i := 0; i < n; i++ {
		id, err := dec.DecodeInt64()
		if err != nil {
			return err
		}
		set[id] = struct{}{}
	}
	*s = set
	return nil
}

type UserSummary struct {
	ID        int64  `msgpack:"id"`
	Name      string `msgpack:"name"`
	AvatarURL string `msgpack:"avatar_url"`
}

type UserProfile struct {
	ID               int64  `msgpack:"id"`
	Name             string `msgpack:"name"`
	AvatarURL        string `msgpack:"avatar_url"`
	FriendIDs        IDSet  `msgpack:"friend_ids"`
	BlockedIDs       IDSet  `msgpack:"blocked_ids"`
	PendingFriendIDs IDSet  `msgpack:"pending_friend_ids"`
	CreatedAt        Millis `msgpack:"created_at"`
}

type Message struct {
	ID       int64  `msgpack:"id"`
	AuthorID int64  `msgpack:"author_id"`
	Content  string `msgpack:"content"`
	SentAt   Millis `msgpack:"sent_at"`
}

type Channel struct {
	ID          int64  `msgpack:"id"`
	Name        string `msgpack:"name"`
	OwnerID     int64  `msgpack:"owner_id"`
	IsPrivate   bool   `msgpack:"is_private"`
	HasPassword bool   `msgpack:"has_password"`
	CreatedAt   Millis `msgpack:"created_at"`
}

type ChannelRole string

const (
	RoleOwner  ChannelRole = "owner"
	RoleAdmin  ChannelRole = "admin"
	RoleMember ChannelRole = "member"
)

type ChannelMember struct {
	UserID int64       `msgpack:"user_id"`
	Name   string      `msgpack:"name"`
	Role   ChannelRole `msgpack:"role"`
}

type RestrictionKind string

const (
	RestrictionBan  RestrictionKind = "ban"
	RestrictionMute RestrictionKind = "mute"
)

type Restriction struct {
	UserID    int64           `msgpack:"user_id"`
	Kind      RestrictionKind `msgpack:"kind"`
	ExpiresAt Millis          `msgpack:"expires_at"`
}

// ChatList is the caller's sidebar view: friends plus joined channels.
type ChatList struct {
	Friends  []UserSummary `msgpack:"friends"`
	Channels []Channel     `msgpack:"channels"`
}

type GameMode string

const (
	ModeClassic GameMode = "CLASSIC"
	ModeBoost   GameMode = "BOOST"
	ModeGift    GameMode = "GIFT"
)

func (m GameMode) Valid() bool {
	switch m {
	case ModeClassic, ModeBoost, ModeGift:
		return true
	}
	return false
}

// PresencePhase is the matchmaking state of one user. A user is in exactly
// one phase at a time; Playing is reachable only through MatchmakingWait
// or InvitationWait.
type PresencePhase string

const (
	PhaseIdle            PresencePhase = "idle"
	PhaseMatchmakingWait PresencePhase = "matchmaking_wait"
	PhaseInvitationWait  PresencePhase = "invitation_wait"
	PhasePlaying         PresencePhase = "playing"
)
