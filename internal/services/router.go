package services

import (
	"context"
	"errors"
	"time"

	"arcade-system/internal/domain"
	"arcade-system/internal/protocol"
	"arcade-system/pkg/logger"
)

const (
	commandTimeout = 10 * time.Second

	maxContentLen = 2000
	maxNameLen    = 64
	maxQueryLen   = 64
)

type handlerFunc func(ctx context.Context, caller domain.Connection, frame *protocol.Frame) (interface{}, error)

// Router dispatches decoded command frames to the Domain Service call
// mapped to their tag. The dispatch table is explicit; the tag set is
// closed and MissingHandlers lets tests assert exhaustiveness. Every
// command produces exactly one typed result; a failing command never
// tears the connection down.
type Router struct {
	svc      domain.DomainService
	registry domain.ConnectionRegistry
	bus      domain.InvalidationBus
	handlers map[domain.CommandTag]handlerFunc
	log      logger.Logger
}

func NewRouter(svc domain.DomainService, registry domain.ConnectionRegistry,
	bus domain.InvalidationBus, log logger.Logger) *Router {
	r := &Router{
		svc:      svc,
		registry: registry,
		bus:      bus,
		log:      log,
	}
	r.handlers = map[domain.CommandTag]handlerFunc{
		domain.TagSearch:                  r.handleSearch,
		domain.TagGetSelf:                 r.handleGetSelf,
		domain.TagGetChats:                r.handleGetChats,
		domain.TagGetUser:                 r.handleGetUser,
		domain.TagGetDirectMessages:       r.handleGetDirectMessages,
		domain.TagGetChannel:              r.handleGetChannel,
		domain.TagGetChannelMessages:      r.handleGetChannelMessages,
		domain.TagGetChannelMembers:       r.handleGetChannelMembers,
		domain.TagGetChannelRestrictions:  r.handleGetChannelRestrictions,
		domain.TagUpdateName:              r.handleUpdateName,
		domain.TagBlockUser:               r.handleBlockUser,
		domain.TagUnblockUser:             r.handleUnblockUser,
		domain.TagSendFriendRequest:       r.handleSendFriendRequest,
		domain.TagAcceptFriendRequest:     r.handleAcceptFriendRequest,
		domain.TagDeclineFriendRequest:    r.handleDeclineFriendRequest,
		domain.TagRemoveFriend:            r.handleRemoveFriend,
		domain.TagSendDirectMessage:       r.handleSendDirectMessage,
		domain.TagCreateChannel:           r.handleCreateChannel,
		domain.TagDeleteChannel:           r.handleDeleteChannel,
		domain.TagJoinChannel:             r.handleJoinChannel,
		domain.TagLeaveChannel:            r.handleLeaveChannel,
		domain.TagAddChannelMember:        r.handleAddChannelMember,
		domain.TagRemoveChannelMember:     r.handleRemoveChannelMember,
		domain.TagUpdateChannelMemberRole: r.handleUpdateChannelMemberRole,
		domain.TagAddChannelRestriction:   r.handleAddChannelRestriction,
		domain.TagUpdateChannelName:       r.handleUpdateChannelName,
		domain.TagUpdateChannelPassword:   r.handleUpdateChannelPassword,
		domain.TagUpdateChannelIsPrivate:  r.handleUpdateChannelIsPrivate,
		domain.TagSendChannelMessage:      r.handleSendChannelMessage,
	}
	return r
}

// MissingHandlers returns tags of the closed set with no handler wired.
// Asserted empty in tests.
func (r *Router) MissingHandlers() []domain.CommandTag {
	var missing []domain.CommandTag
	for _, tag := range domain.AllCommandTags {
		if _, ok := r.handlers[tag]; !ok {
			missing = append(missing, tag)
		}
	}
	return missing
}

// DispatchFrame executes one command frame and returns the encoded result
// frame. The caller's user id comes from the registered connection, never
// from the payload.
func (r *Router) DispatchFrame(caller domain.Connection, frame *protocol.Frame) []byte {
	handler, ok := r.handlers[domain.CommandTag(frame.Tag)]
	if !ok {
		return protocol.MustEncodeFrame(domain.TagValidationError, frame.Ref,
			domain.ErrorResult{Message: "unknown command tag"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	result, err := handler(ctx, caller, frame)
	if err != nil {
		return r.errorFrame(frame, err)
	}

	data, err := protocol.EncodeFrame(frame.Tag, frame.Ref, result)
	if err != nil {
		r.log.Error("Failed to encode result", "tag", frame.Tag, "error", err)
		return protocol.MustEncodeFrame(domain.TagError, frame.Ref,
			domain.ErrorResult{Message: "internal error"})
	}
	return data
}

func (r *Router) errorFrame(frame *protocol.Frame, err error) []byte {
	tag := domain.TagError
	if errors.Is(err, domain.ErrValidation) {
		tag = domain.TagValidationError
	} else if !errors.Is(err, domain.ErrNotFound) &&
		!errors.Is(err, domain.ErrNotAuthorized) &&
		!errors.Is(err, domain.ErrConflict) {
		r.log.Error("Command failed", "tag", frame.Tag, "error", err)
	}
	return protocol.MustEncodeFrame(tag, frame.Ref, domain.ErrorResult{Message: SafeMessage(err)})
}

// validationError carries a client-safe reason.
type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}

func (e *validationError) Is(target error) bool {
	return target == domain.ErrValidation
}

func invalid(msg string) error {
	return &validationError{msg: msg}
}

// SafeMessage maps an error to a message safe to return to a client.
func SafeMessage(err error) string {
	var vErr *validationError
	switch {
	case errors.As(err, &vErr):
		return vErr.msg
	case errors.Is(err, domain.ErrValidation):
		return "validation failed"
	case errors.Is(err, domain.ErrNotFound):
		return "not found"
	case errors.Is(err, domain.ErrNotAuthorized):
		return "not authorized"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	default:
		return "internal error"
	}
}

// Payload decoding helpers. A payload that cannot decode for its tag is a
// validation failure, not a dead connection.

func decodeInto(frame *protocol.Frame, v interface{}) error {
	if err := protocol.DecodePayload(frame, v); err != nil {
		return invalid("malformed payload")
	}
	return nil
}

func decodeTargetUser(frame *protocol.Frame) (int64, error) {
	var cmd domain.TargetUserCommand
	if err := decodeInto(frame, &cmd); err != nil {
		return 0, err
	}
	if cmd.UserID <= 0 {
		return 0, invalid("user_id must be positive")
	}
	return cmd.UserID, nil
}

func decodeTargetChannel(frame *protocol.Frame) (int64, error) {
	var cmd domain.TargetChannelCommand
	if err := decodeInto(frame, &cmd); err != nil {
		return 0, err
	}
	if cmd.ChannelID <= 0 {
		return 0, invalid("channel_id must be positive")
	}
	return cmd.ChannelID, nil
}

func checkText(field, value string, max int) error {
	if value == "" {
		return invalid(field + " required")
	}
	if len(value) > max {
		return invalid(field + " too long")
	}
	return nil
}

// Read commands.

func (r *Router) handleSearch(ctx context.Context, caller domain.Connection, frame *protocol.Frame) (interface{}, error) {
	var cmd domain.SearchCommand
	if err := decodeInto(frame, &cmd); err != nil {
		return nil, err
	}
	if err := checkText("query", cmd.Query, maxQueryLen); err != nil {
		return nil, err
	}
	users, err := r.svc.Search(ctx, caller.UserID(), cmd.Query)
	if err != nil {
		return nil, err
	}
	return domain.SearchResult{Users: users}, nil
}

func (r *Router) handleGetSelf(ctx context.Context, caller domain.Connection, _ *protocol.Frame) (interface{}, error) {
	return r.svc.Self(ctx, caller.UserID())
}

func (r *Router) handleGetChats(ctx context.Context, caller domain.Connection, _ *protocol.Frame) (interface{}, error) {
	return r.svc.Chats(ctx, caller.UserID())
}

func (r *Router) handleGetUser(ctx context.Context, caller domain.Connection, frame *protocol.Frame) (interface{}, error) {
	userID, err := decodeTargetUser(frame)
	if err != nil {
		return nil, err
	}
	return r.svc.User(ctx, caller.UserID(), userID)
}

func (r *Router) handleGetDirectMessages(ctx context.Context, caller domain.Connection, frame *protocol.Frame) (interface{}, error) {
	userID, err := decodeTargetUser(frame)
	if err != nil {
		return nil, err
	}
	messages, err := r.svc.DirectMessages(ctx, caller.UserID(), userID)
	if err != nil {
		return nil, err
	}
	return domain.MessagesResult{Messages: messages}, nil
}

func (r *Router) handleGetChannel(ctx context.Context, caller domain.Connection, frame *protocol.Frame) (interface{}, error) {
	channelID, err := decodeTargetChannel(frame)
	if err != nil {
		return nil, err
	}
	channel, err := r.svc.Channel(ctx, caller.UserID(), channelID)
	if err != nil {
		return nil, err
	}
	// Viewing a channel subscribes this connection to its push room.
	r.registry.JoinRoom(caller.ID(), domain.ChannelRoom(channelID))
	return channel, nil
}

func (r *Router) handleGetChannelMessages(ctx context.Context, caller domain.Connection, frame *protocol.Frame) (interface{}, error) {
	channelID, err := decodeTargetChannel(frame)
	if err != nil {
		return nil, err
	}
	messages, err := r.svc.ChannelMessages(ctx, caller.UserID(), channelID)
	if err != nil {
		return nil, err
	}
	return domain.MessagesResult{Messages: messages}, nil
}

func (r *Router) handleGetChannelMembers(ctx context.Context, caller domain.Connection, frame *protocol.Frame) (interface{}, error) {
	channelID, err := decodeTargetChannel(frame)
	if err != nil {
		return nil, err
	}
	members, err := r.svc.ChannelMembers(ctx, caller.UserID(), channelID)
	if err != nil {
		return nil, err
	}
	return domain.ChannelMembersResult{Members: members}, nil
}

func (r *Router) handleGetChannelRestrictions(ctx context.Context, caller domain.Connection, frame *protocol.Frame) (interface{}, error) {
	channelID, err := decodeTargetChannel(frame)
	if err != nil {
		return nil, err
	}
	restrictions, err := r.svc.ChannelRestrictions(ctx, caller.UserID(), channelID)
	if err != nil {
		return nil, err
	}
	return domain.ChannelRestrictionsResult{Restrictions: restrictions}, nil
}

// User mutations.

func (r *Router) handleUpdateName(ctx context.Context, caller domain.Connection, frame *protocol.Frame) (interface{}, error) {
	var cmd domain.UpdateNameCommand
	if err := decodeInto(frame, &cmd); err != nil {
		return nil, err
	}
	if err := checkText("name", cmd.Name, maxNameLen); err != nil {
		return nil, err
	}
	if err := r.svc.UpdateName(ctx, caller.UserID(), cmd.Name); err != nil {
		return nil, err
	}
	r.bus.ToUser(caller.UserID(), domain.SelfNotice())
	r.bus.ToAll(domain.OtherUserNotice(caller.UserID()))
	return domain.AckResult{OK: true}, nil
}

// relationshipMutation runs a two-user Domain Service call and publishes
// the SELF / OTHER_USER pair of notices on success.
func (r *Router) relationshipMutation(ctx context.Context, caller domain.Connection, frame *protocol.Frame,
	call func(ctx context.Context, callerID, targetID int64) error) (interface{}, error) {
	targetID, err := decodeTargetUser(frame)
	if err != nil {
		return nil, err
	}
	if targetID == caller.UserID() {
		return nil, invalid("cannot target yourself")
	}
	if err := call(ctx, caller.UserID(), targetID); err != nil {
		return nil, err
	}
	r.bus.ToUser(caller.UserID(), domain.SelfNotice())
	r.bus.ToUser(targetID, domain.OtherUserNotice(caller.UserID()))
	return domain.AckResult{OK: true}, nil
}

func (r *Router) handleBlockUser(ctx context.Context, caller domain.Connection, frame *protocol.Frame) (interface{}, error) {
	return r.relationshipMutation(ctx, caller, frame, r.svc.BlockUser)
}

func (r *Router) handleUnblockUser(ctx context.Context, caller domain.Connection, frame *protocol.Frame) (interface{}, error) {
	return r.relationshipMutation(ctx, caller, frame, r.svc.UnblockUser)
}

func (r *Router) handleSendFriendRequest(ctx context.Context, caller domain.Connection, frame *protocol.Frame) (interface{}, error) {
	return r.relationshipMutation(ctx, caller, frame, r.svc.SendFriendRequest)
}

func (r *Router) handleAcceptFriendRequest(ctx context.Context, caller domain.Connection, frame *protocol.Frame) (interface{}, error) {
	return r.relationshipMutation(ctx, caller, frame, r.svc.AcceptFriendRequest)
}

func (r *Router) handleDeclineFriendRequest(ctx context.Context, caller domain.Connection, frame *protocol.Frame) (interface{}, error) {
	return r.relationshipMutation(ctx, caller, frame, r.svc.DeclineFriendRequest)
}

func (r *Router) handleRemoveFriend(ctx context.Context, caller domain.Connection, frame *protocol.Frame) (interface{}, error) {
	return r.relationshipMutation(ctx, caller, frame, r.svc.RemoveFriend)
}

func (r *Router) handleSendDirectMessage(ctx context.Context, caller domain.Connection, frame *protocol.Frame) (interface{}, error) {
	var cmd domain.SendDirectMessageCommand
	if err := decodeInto(frame, &cmd); err != nil {
		return nil, err
	}
	if cmd.UserID <= 0 {
		return nil, invalid("user_id must be positive")
	}
	if err := checkText("content", cmd.Content, maxContentLen); err != nil {
		return nil, err
	}
	msg, err := r.svc.SendDirectMessage(ctx, caller.UserID(), cmd.UserID, cmd.Content)
	if err != nil {
		return nil, err
	}
	notice := domain.DirectMessagesNotice(caller.UserID(), cmd.UserID)
	r.bus.ToUser(caller.UserID(), notice)
	r.bus.ToUser(cmd.UserID, notice)
	return msg, nil
}

// Channel mutations. Channel-scoped notices go to the channel room, so
// the audience is resolved at invalidation time.

func (r *Router) handleCreateChannel(ctx context.Context, caller domain.Connection, frame *protocol.Frame) (interface{}, error) {
	var cmd domain.CreateChannelCommand
	if err := decodeInto(frame, &cmd); err != nil {
		return nil, err
	}
	if err := checkText("name", cmd.Name, maxNameLen); err != nil {
		return nil, err
	}
	channel, err := r.svc.CreateChannel(ctx, caller.UserID(), cmd.Name, cmd.Password, cmd.IsPrivate)
	if err != nil {
		return nil, err
	}
	r.bus.ToUser(caller.UserID(), domain.SelfNotice())
	return channel, nil
}

func (r *Router) handleDeleteChannel(ctx context.Context, caller domain.Connection, frame *protocol.Frame) (interface{}, error) {
	channelID, err := decodeTargetChannel(frame)
	if err != nil {
		return nil, err
	}
	if err := r.svc.DeleteChannel(ctx, caller.UserID(), channelID); err != nil {
		return nil, err
	}
	room := domain.ChannelRoom(channelID)
	r.bus.ToRoom(room, domain.ChannelNotice(channelID))
	for _, member := range r.registry.MembersOf(room) {
		r.registry.LeaveRoom(member.ID(), room)
	}
	return domain.AckResult{OK: true}, nil
}

func (r *Router) handleJoinChannel(ctx context.Context, caller domain.Connection, frame *protocol.Frame) (interface{}, error) {
	var cmd domain.JoinChannelCommand
	if err := decodeInto(frame, &cmd); err != nil {
		return nil, err
	}
	if cmd.ChannelID <= 0 {
		return nil, invalid("channel_id must be positive")
	}
	if err := r.svc.JoinChannel(ctx, caller.UserID(), cmd.ChannelID, cmd.Password); err != nil {
		return nil, err
	}
	r.registry.JoinRoom(caller.ID(), domain.ChannelRoom(cmd.ChannelID))
	r.bus.ToRoom(domain.ChannelRoom(cmd.ChannelID), domain.ChannelMembersNotice(cmd.ChannelID))
	r.bus.ToUser(caller.UserID(), domain.SelfNotice())
	return domain.AckResult{OK: true}, nil
}

func (r *Router) handleLeaveChannel(ctx context.Context, caller domain.Connection, frame *protocol.Frame) (interface{}, error) {
	channelID, err := decodeTargetChannel(frame)
	if err != nil {
		return nil, err
	}
	if err := r.svc.LeaveChannel(ctx, caller.UserID(), channelID); err != nil {
		return nil, err
	}
	room := domain.ChannelRoom(channelID)
	for _, conn := range r.registry.ConnectionsOf(caller.UserID()) {
		r.registry.LeaveRoom(conn.ID(), room)
	}
	r.bus.ToRoom(room, domain.ChannelMembersNotice(channelID))
	r.bus.ToUser(caller.UserID(), domain.SelfNotice())
	return domain.AckResult{OK: true}, nil
}

func (r *Router) handleAddChannelMember(ctx context.Context, caller domain.Connection, frame *protocol.Frame) (interface{}, error) {
	cmd, err := decodeChannelMember(frame)
	if err != nil {
		return nil, err
	}
	if err := r.svc.AddChannelMember(ctx, caller.UserID(), cmd.ChannelID, cmd.UserID); err != nil {
		return nil, err
	}
	r.bus.ToRoom(domain.ChannelRoom(cmd.ChannelID), domain.ChannelMembersNotice(cmd.ChannelID))
	r.bus.ToUser(cmd.UserID, domain.SelfNotice())
	return domain.AckResult{OK: true}, nil
}

func (r *Router) handleRemoveChannelMember(ctx context.Context, caller domain.Connection, frame *protocol.Frame) (interface{}, error) {
	cmd, err := decodeChannelMember(frame)
	if err != nil {
		return nil, err
	}
	if err := r.svc.RemoveChannelMember(ctx, caller.UserID(), cmd.ChannelID, cmd.UserID); err != nil {
		return nil, err
	}
	room := domain.ChannelRoom(cmd.ChannelID)
	for _, conn := range r.registry.ConnectionsOf(cmd.UserID) {
		r.registry.LeaveRoom(conn.ID(), room)
	}
	r.bus.ToRoom(room, domain.ChannelMembersNotice(cmd.ChannelID))
	r.bus.ToUser(cmd.UserID, domain.SelfNotice())
	return domain.AckResult{OK: true}, nil
}

func (r *Router) handleUpdateChannelMemberRole(ctx context.Context, caller domain.Connection, frame *protocol.Frame) (interface{}, error) {
	var cmd domain.UpdateChannelMemberRoleCommand
	if err := decodeInto(frame, &cmd); err != nil {
		return nil, err
	}
	if cmd.ChannelID <= 0 || cmd.UserID <= 0 {
		return nil, invalid("channel_id and user_id must be positive")
	}
	switch cmd.Role {
	case domain.RoleAdmin, domain.RoleMember:
	default:
		return nil, invalid("role must be admin or member")
	}
	if err := r.svc.UpdateChannelMemberRole(ctx, caller.UserID(), cmd.ChannelID, cmd.UserID, cmd.Role); err != nil {
		return nil, err
	}
	r.bus.ToRoom(domain.ChannelRoom(cmd.ChannelID), domain.ChannelMembersNotice(cmd.ChannelID))
	r.bus.ToUser(cmd.UserID, domain.SelfNotice())
	return domain.AckResult{OK: true}, nil
}

func (r *Router) handleAddChannelRestriction(ctx context.Context, caller domain.Connection, frame *protocol.Frame) (interface{}, error) {
	var cmd domain.AddChannelRestrictionCommand
	if err := decodeInto(frame, &cmd); err != nil {
		return nil, err
	}
	if cmd.ChannelID <= 0 || cmd.UserID <= 0 {
		return nil, invalid("channel_id and user_id must be positive")
	}
	switch cmd.Kind {
	case domain.RestrictionBan, domain.RestrictionMute:
	default:
		return nil, invalid("kind must be ban or mute")
	}
	if cmd.DurationMS <= 0 {
		return nil, invalid("duration_ms must be positive")
	}
	duration := time.Duration(cmd.DurationMS) * time.Millisecond
	if err := r.svc.AddChannelRestriction(ctx, caller.UserID(), cmd.ChannelID, cmd.UserID, cmd.Kind, duration); err != nil {
		return nil, err
	}
	r.bus.ToRoom(domain.ChannelRoom(cmd.ChannelID), domain.ChannelMembersNotice(cmd.ChannelID))
	r.bus.ToUser(cmd.UserID, domain.SelfNotice())
	return domain.AckResult{OK: true}, nil
}

func (r *Router) handleUpdateChannelName(ctx context.Context, caller domain.Connection, frame *protocol.Frame) (interface{}, error) {
	var cmd domain.UpdateChannelNameCommand
	if err := decodeInto(frame, &cmd); err != nil {
		return nil, err
	}
	if cmd.ChannelID <= 0 {
		return nil, invalid("channel_id must be positive")
	}
	if err := checkText("name", cmd.Name, maxNameLen); err != nil {
		return nil, err
	}
	if err := r.svc.UpdateChannelName(ctx, caller.UserID(), cmd.ChannelID, cmd.Name); err != nil {
		return nil, err
	}
	r.bus.ToRoom(domain.ChannelRoom(cmd.ChannelID), domain.ChannelNotice(cmd.ChannelID))
	return domain.AckResult{OK: true}, nil
}

func (r *Router) handleUpdateChannelPassword(ctx context.Context, caller domain.Connection, frame *protocol.Frame) (interface{}, error) {
	var cmd domain.UpdateChannelPasswordCommand
	if err := decodeInto(frame, &cmd); err != nil {
		return nil, err
	}
	if cmd.ChannelID <= 0 {
		return nil, invalid("channel_id must be positive")
	}
	if err := r.svc.UpdateChannelPassword(ctx, caller.UserID(), cmd.ChannelID, cmd.Password); err != nil {
		return nil, err
	}
	r.bus.ToRoom(domain.ChannelRoom(cmd.ChannelID), domain.ChannelNotice(cmd.ChannelID))
	return domain.AckResult{OK: true}, nil
}

func (r *Router) handleUpdateChannelIsPrivate(ctx context.Context, caller domain.Connection, frame *protocol.Frame) (interface{}, error) {
	var cmd domain.UpdateChannelIsPrivateCommand
	if err := decodeInto(frame, &cmd); err != nil {
		return nil, err
	}
	if cmd.ChannelID <= 0 {
		return nil, invalid("channel_id must be positive")
	}
	if err := r.svc.UpdateChannelIsPrivate(ctx, caller.UserID(), cmd.ChannelID, cmd.IsPrivate); err != nil {
		return nil, err
	}
	r.bus.ToRoom(domain.ChannelRoom(cmd.ChannelID), domain.ChannelNotice(cmd.ChannelID))
	return domain.AckResult{OK: true}, nil
}

func (r *Router) handleSendChannelMessage(ctx context.Context, caller domain.Connection, frame *protocol.Frame) (interface{}, error) {
	var cmd domain.SendChannelMessageCommand
	if err := decodeInto(frame, &cmd); err != nil {
		return nil, err
	}
	if cmd.ChannelID <= 0 {
		return nil, invalid("channel_id must be positive")
	}
	if err := checkText("content", cmd.Content, maxContentLen); err != nil {
		return nil, err
	}
	msg, err := r.svc.SendChannelMessage(ctx, caller.UserID(), cmd.ChannelID, cmd.Content)
	if err != nil {
		return nil, err
	}
	r.bus.ToRoom(domain.ChannelRoom(cmd.ChannelID), domain.ChannelNotice(cmd.ChannelID))
	return msg, nil
}

func decodeChannelMember(frame *protocol.Frame) (*domain.ChannelMemberCommand, error) {
	var cmd domain.ChannelMemberCommand
	if err := decodeInto(frame, &cmd); err != nil {
		return nil, err
	}
	if cmd.ChannelID <= 0 || cmd.UserID <= 0 {
		return nil, invalid("channel_id and user_id must be positive")
	}
	return &cmd, nil
}
