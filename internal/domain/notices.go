package domain

import "fmt"

// NoticeKind identifies what cached data went stale. The audience is
// derived from the kind and ids, never carried in the payload.
type NoticeKind string

const (
	NoticeSelf           NoticeKind = "SELF"
	NoticeOtherUser      NoticeKind = "OTHER_USER"
	NoticeChannel        NoticeKind = "CHANNEL"
	NoticeChannelMembers NoticeKind = "CHANNEL_MEMBERS"
	NoticeDirectMessages NoticeKind = "DIRECT_MESSAGES"
)

// Notice is an ephemeral cache-invalidation message. It is pushed and
// forgotten, never persisted.
type Notice struct {
	Kind      NoticeKind `msgpack:"kind"`
	UserID    int64      `msgpack:"user_id,omitempty"`
	ChannelID int64      `msgpack:"channel_id,omitempty"`
	PeerID    int64      `msgpack:"peer_id,omitempty"`
}

func SelfNotice() Notice {
	return Notice{Kind: NoticeSelf}
}

func OtherUserNotice(userID int64) Notice {
	return Notice{Kind: NoticeOtherUser, UserID: userID}
}

func ChannelNotice(channelID int64) Notice {
	return Notice{Kind: NoticeChannel, ChannelID: channelID}
}

func ChannelMembersNotice(channelID int64) Notice {
	return Notice{Kind: NoticeChannelMembers, ChannelID: channelID}
}

// DirectMessagesNotice normalizes the pair so both directions of a
// conversation produce the same notice.
func DirectMessagesNotice(a, b int64) Notice {
	if a > b {
		a, b = b, a
	}
	return Notice{Kind: NoticeDirectMessages, UserID: a, PeerID: b}
}

// Room naming. Rooms are lazily created on first join and removed when
// empty; these helpers are the only place names are formatted.

func UserRoom(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

func ChannelRoom(channelID int64) string {
	return fmt.Sprintf("channel:%d", channelID)
}

func GameRoom(gameID string) string {
	return fmt.Sprintf("game:%s", gameID)
}
