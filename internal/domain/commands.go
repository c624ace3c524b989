package domain

// CommandTag identifies one request shape of the tagged command protocol.
// The set is closed: every tag listed here has exactly one handler and one
// result shape, asserted by the router's exhaustiveness test.
type CommandTag string

const (
	TagSearch                  CommandTag = "SEARCH"
	TagGetSelf                 CommandTag = "GET_SELF"
	TagGetChats                CommandTag = "GET_CHATS"
	TagGetUser                 CommandTag = "GET_USER"
	TagGetDirectMessages       CommandTag = "GET_DIRECT_MESSAGES"
	TagGetChannel              CommandTag = "GET_CHANNEL"
	TagGetChannelMessages      CommandTag = "GET_CHANNEL_MESSAGES"
	TagGetChannelMembers       CommandTag = "GET_CHANNEL_MEMBERS"
	TagGetChannelRestrictions  CommandTag = "GET_CHANNEL_RESTRICTIONS"
	TagUpdateName              CommandTag = "UPDATE_NAME"
	TagBlockUser               CommandTag = "BLOCK_USER"
	TagUnblockUser             CommandTag = "UNBLOCK_USER"
	TagSendFriendRequest       CommandTag = "SEND_FRIEND_REQUEST"
	TagAcceptFriendRequest     CommandTag = "ACCEPT_FRIEND_REQUEST"
	TagDeclineFriendRequest    CommandTag = "DECLINE_FRIEND_REQUEST"
	TagRemoveFriend            CommandTag = "REMOVE_FRIEND"
	TagSendDirectMessage       CommandTag = "SEND_DIRECT_MESSAGE"
	TagCreateChannel           CommandTag = "CREATE_CHANNEL"
	TagDeleteChannel           CommandTag = "DELETE_CHANNEL"
	TagJoinChannel             CommandTag = "JOIN_CHANNEL"
	TagLeaveChannel            CommandTag = "LEAVE_CHANNEL"
	TagAddChannelMember        CommandTag = "ADD_CHANNEL_MEMBER"
	TagRemoveChannelMember     CommandTag = "REMOVE_CHANNEL_MEMBER"
	TagUpdateChannelMemberRole CommandTag = "UPDATE_CHANNEL_MEMBER_ROLE"
	TagAddChannelRestriction   CommandTag = "ADD_CHANNEL_RESTRICTION"
	TagUpdateChannelName       CommandTag = "UPDATE_CHANNEL_NAME"
	TagUpdateChannelPassword   CommandTag = "UPDATE_CHANNEL_PASSWORD"
	TagUpdateChannelIsPrivate  CommandTag = "UPDATE_CHANNEL_IS_PRIVATE"
	TagSendChannelMessage      CommandTag = "SEND_CHANNEL_MESSAGE"
)

// AllCommandTags is the closed tag set, in protocol order.
var AllCommandTags = []CommandTag{
	TagSearch,
	TagGetSelf,
	TagGetChats,
	TagGetUser,
	TagGetDirectMessages,
	TagGetChannel,
	TagGetChannelMessages,
	TagGetChannelMembers,
	TagGetChannelRestrictions,
	TagUpdateName,
	TagBlockUser,
	TagUnblockUser,
	TagSendFriendRequest,
	TagAcceptFriendRequest,
	TagDeclineFriendRequest,
	TagRemoveFriend,
	TagSendDirectMessage,
	TagCreateChannel,
	TagDeleteChannel,
	TagJoinChannel,
	TagLeaveChannel,
	TagAddChannelMember,
	TagRemoveChannelMember,
	TagUpdateChannelMemberRole,
	TagAddChannelRestriction,
	TagUpdateChannelName,
	TagUpdateChannelPassword,
	TagUpdateChannelIsPrivate,
	TagSendChannelMessage,
}

// Result tags not tied to a single command.
const (
	TagError           = "ERROR"
	TagValidationError = "VALIDATION_ERROR"
)

// Event tags of the lighter-weight game/matchmaking protocol.
const (
	EventJoinMatchmaking  = "joinMatchmaking"
	EventLeaveMatchmaking = "leaveMatchmaking"
	EventSendGameInvite   = "sendGameInvite"
	EventCancelGameInvite = "cancelGameInvite"
	EventAcceptInvitation = "acceptInvitation"
	EventRefuseInvitation = "refuseInvitation"
	EventMovePadUp        = "movePadUp"
	EventMovePadDown      = "movePadDown"
	EventStopPad          = "stopPad"

	// server -> client
	EventNewInvitation     = "newInvitation"
	EventCancelInvitation  = "cancelInvitation"
	EventGameStarting      = "gameStarting"
	EventInitialState      = "initialState"
	EventUpdateCanvas      = "updateCanvas"
	EventStateChanged      = "stateChanged"
	EventCacheInvalidation = "cache_invalidation"
)

// Command payloads.

type SearchCommand struct {
	Query string `msgpack:"query"`
}

type TargetUserCommand struct {
	UserID int64 `msgpack:"user_id"`
}

type TargetChannelCommand struct {
	ChannelID int64 `msgpack:"channel_id"`
}

type UpdateNameCommand struct {
	Name string `msgpack:"name"`
}

type SendDirectMessageCommand struct {
	UserID  int64  `msgpack:"user_id"`
	Content string `msgpack:"content"`
}

type CreateChannelCommand struct {
	Name      string `msgpack:"name"`
	Password  string `msgpack:"password"`
	IsPrivate bool   `msgpack:"is_private"`
}

type JoinChannelCommand struct {
	ChannelID int64  `msgpack:"channel_id"`
	Password  string `msgpack:"password"`
}

type ChannelMemberCommand struct {
	ChannelID int64 `msgpack:"channel_id"`
	UserID    int64 `msgpack:"user_id"`
}

type UpdateChannelMemberRoleCommand struct {
	ChannelID int64       `msgpack:"channel_id"`
	UserID    int64       `msgpack:"user_id"`
	Role      ChannelRole `msgpack:"role"`
}

type AddChannelRestrictionCommand struct {
	ChannelID  int64           `msgpack:"channel_id"`
	UserID     int64           `msgpack:"user_id"`
	Kind       RestrictionKind `msgpack:"kind"`
	DurationMS int64           `msgpack:"duration_ms"`
}

type UpdateChannelNameCommand struct {
	ChannelID int64  `msgpack:"channel_id"`
	Name      string `msgpack:"name"`
}

type UpdateChannelPasswordCommand struct {
	ChannelID int64  `msgpack:"channel_id"`
	Password  string `msgpack:"password"`
}

type UpdateChannelIsPrivateCommand struct {
	ChannelID int64 `msgpack:"channel_id"`
	IsPrivate bool  `msgpack:"is_private"`
}

type SendChannelMessageCommand struct {
	ChannelID int64  `msgpack:"channel_id"`
	Content   string `msgpack:"content"`
}

// Result payloads shared by multiple tags.

type SearchResult struct {
	Users []UserSummary `msgpack:"users"`
}

type MessagesResult struct {
	Messages []Message `msgpack:"messages"`
}

type ChannelMembersResult struct {
	Members []ChannelMember `msgpack:"members"`
}

type ChannelRestrictionsResult struct {
	Restrictions []Restriction `msgpack:"restrictions"`
}

// AckResult acknowledges a mutation that returns no data.
type AckResult struct {
	OK bool `msgpack:"ok"`
}

// ErrorResult carries a safe message for ERROR / VALIDATION_ERROR frames.
type ErrorResult struct {
	Message string `msgpack:"message"`
}

// Game event payloads.

type JoinMatchmakingEvent struct {
	Mode GameMode `msgpack:"mode"`
}

type SendGameInviteEvent struct {
	UserID int64    `msgpack:"user_id"`
	Mode   GameMode `msgpack:"mode"`
}

type InvitationEvent struct {
	InviteID string `msgpack:"invite_id"`
}

type NewInvitationEvent struct {
	InviteID  string   `msgpack:"invite_id"`
	InviterID int64    `msgpack:"inviter_id"`
	GameMode  GameMode `msgpack:"game_mode"`
}

type CancelInvitationEvent struct {
	InviteID string `msgpack:"invite_id"`
}

type GameStartingEvent struct {
	GameID string   `msgpack:"game_id"`
	Mode   GameMode `msgpack:"mode"`
}

type PadEvent struct {
	GameID string `msgpack:"game_id"`
}
