package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"arcade-system/internal/domain"

	mysqldrv "github.com/go-sql-driver/mysql"
)

// MySQLDomainService is the production adapter behind the Domain Service
// boundary. The realtime core only ever sees the interface; everything
// SQL lives here.
type MySQLDomainService struct {
	db *sql.DB
}

func NewMySQLDomainService(db *sql.DB) *MySQLDomainService {
	return &MySQLDomainService{db: db}
}

func (s *MySQLDomainService) Search(ctx context.Context, callerID int64, query string) ([]domain.UserSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, name, avatar_url FROM users
        WHERE name LIKE CONCAT('%', ?, '%') AND id != ?
        ORDER BY name LIMIT 20
    `, query, callerID)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	var users []domain.UserSummary
	for rows.Next() {
		var u domain.UserSummary
		if err := rows.Scan(&u.ID, &u.Name, &u.AvatarURL); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *MySQLDomainService) Self(ctx context.Context, callerID int64) (*domain.UserProfile, error) {
	return s.loadProfile(ctx, callerID)
}

func (s *MySQLDomainService) User(ctx context.Context, callerID, userID int64) (*domain.UserProfile, error) {
	blocked, err := s.isBlocked(ctx, userID, callerID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, domain.ErrNotFound
	}
	return s.loadProfile(ctx, userID)
}

func (s *MySQLDomainService) loadProfile(ctx context.Context, userID int64) (*domain.UserProfile, error) {
	var profile domain.UserProfile
	var createdAt time.Time

	err := s.db.QueryRowContext(ctx, `
        SELECT id, name, avatar_url, created_at FROM users WHERE id = ?
    `, userID).Scan(&profile.ID, &profile.Name, &profile.AvatarURL, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	profile.CreatedAt = domain.TimeToMillis(createdAt)

	profile.FriendIDs, err = s.idSet(ctx,
		`SELECT friend_id FROM friends WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	profile.BlockedIDs, err = s.idSet(ctx,
		`SELECT blocked_id FROM blocks WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	profile.PendingFriendIDs, err = s.idSet(ctx,
		`SELECT sender_id FROM friend_requests WHERE receiver_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (s *MySQLDomainService) idSet(ctx context.Context, query string, args ...interface{}) (domain.IDSet, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := domain.NewIDSet()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		set.Add(id)
	}
	return set, rows.Err()
}

func (s *MySQLDomainService) Chats(ctx context.Context, callerID int64) (*domain.ChatList, error) {
	list := &domain.ChatList{}

	rows, err := s.db.QueryContext(ctx, `
        SELECT u.id, u.name, u.avatar_url
        FROM friends f JOIN users u ON u.id = f.friend_id
        WHERE f.user_id = ? ORDER BY u.name
    `, callerID)
	if err != nil {
		return nil, fmt.Errorf("load friends: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var u domain.UserSummary
		if err := rows.Scan(&u.ID, &u.Name, &u.AvatarURL); err != nil {
			return nil, err
		}
		list.Friends = append(list.Friends, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	chRows, err := s.db.QueryContext(ctx, `
        SELECT c.id, c.name, c.owner_id, c.is_private, c.password != '', c.created_at
        FROM channel_members m JOIN channels c ON c.id = m.channel_id
        WHERE m.user_id = ? ORDER BY c.name
    `, callerID)
	if err != nil {
		return nil, fmt.Errorf("load channels: %w", err)
	}
	defer chRows.Close()
	for chRows.Next() {
		ch, err := scanChannel(chRows)
		if err != nil {
			return nil, err
		}
		list.Channels = append(list.Channels, *ch)
	}
	return list, chRows.Err()
}

func (s *MySQLDomainService) DirectMessages(ctx context.Context, callerID, userID int64) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, sender_id, content, sent_at FROM direct_messages
        WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
        ORDER BY sent_at, id
    `, callerID, userID, userID, callerID)
	if err != nil {
		return nil, fmt.Errorf("load direct messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (s *MySQLDomainService) Channel(ctx context.Context, callerID, channelID int64) (*domain.Channel, error) {
	if err := s.requireMember(ctx, channelID, callerID); err != nil {
		return nil, err
	}
	return s.loadChannel(ctx, channelID)
}

func (s *MySQLDomainService) loadChannel(ctx context.Context, channelID int64) (*domain.Channel, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT id, name, owner_id, is_private, password != '', created_at
        FROM channels WHERE id = ?
    `, channelID)
	ch, err := scanChannel(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("load channel %d: %w", channelID, err)
	}
	return ch, nil
}

func (s *MySQLDomainService) ChannelMessages(ctx context.Context, callerID, channelID int64) ([]domain.Message, error) {
	if err := s.requireMember(ctx, channelID, callerID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, author_id, content, sent_at FROM channel_messages
        WHERE channel_id = ? ORDER BY sent_at, id
    `, channelID)
	if err != nil {
		return nil, fmt.Errorf("load channel messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (s *MySQLDomainService) ChannelMembers(ctx context.Context, callerID, channelID int64) ([]domain.ChannelMember, error) {
	if err := s.requireMember(ctx, channelID, callerID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT m.user_id, u.name, m.role
        FROM channel_members m JOIN users u ON u.id = m.user_id
        WHERE m.channel_id = ? ORDER BY u.name
    `, channelID)
	if err != nil {
		return nil, fmt.Errorf("load channel members: %w", err)
	}
	defer rows.Close()

	var members []domain.ChannelMember
	for rows.Next() {
		var m domain.ChannelMember
		if err := rows.Scan(&m.UserID, &m.Name, &m.Role); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *MySQLDomainService) ChannelRestrictions(ctx context.Context, callerID, channelID int64) ([]domain.Restriction, error) {
	if err := s.requireRole(ctx, channelID, callerID, domain.RoleAdmin); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT user_id, kind, expires_at FROM channel_restrictions
        WHERE channel_id = ? AND expires_at > NOW() ORDER BY expires_at
    `, channelID)
	if err != nil {
		return nil, fmt.Errorf("load restrictions: %w", err)
	}
	defer rows.Close()

	var restrictions []domain.Restriction
	for rows.Next() {
		var r domain.Restriction
		var expiresAt time.Time
		if err := rows.Scan(&r.UserID, &r.Kind, &expiresAt); err != nil {
			return nil, err
		}
		r.ExpiresAt = domain.TimeToMillis(expiresAt)
		restrictions = append(restrictions, r)
	}
	return restrictions, rows.Err()
}

func (s *MySQLDomainService) UpdateName(ctx context.Context, callerID int64, name string) error {
	// Affected-row count is not checked: updating to the current name
	// reports zero rows on MySQL.
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET name = ? WHERE id = ?`, name, callerID)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("name taken: %w", domain.ErrConflict)
		}
		return fmt.Errorf("update name: %w", err)
	}
	return nil
}

func (s *MySQLDomainService) BlockUser(ctx context.Context, callerID, targetID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO blocks (user_id, blocked_id) VALUES (?, ?)`, callerID, targetID)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("already blocked: %w", domain.ErrConflict)
		}
		return fmt.Errorf("block user: %w", err)
	}
	// A block dissolves any friendship or pending requests between the two.
	s.db.ExecContext(ctx, `DELETE FROM friends WHERE (user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)`,
		callerID, targetID, targetID, callerID)
	s.db.ExecContext(ctx, `DELETE FROM friend_requests WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)`,
		callerID, targetID, targetID, callerID)
	return nil
}

func (s *MySQLDomainService) UnblockUser(ctx context.Context, callerID, targetID int64) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM blocks WHERE user_id = ? AND blocked_id = ?`, callerID, targetID)
	if err != nil {
		return fmt.Errorf("unblock user: %w", err)
	}
	return requireAffected(result)
}

func (s *MySQLDomainService) SendFriendRequest(ctx context.Context, callerID, targetID int64) error {
	blocked, err := s.isBlocked(ctx, targetID, callerID)
	if err != nil {
		return err
	}
	if blocked {
		return domain.ErrNotFound
	}
	friends, err := s.areFriends(ctx, callerID, targetID)
	if err != nil {
		return err
	}
	if friends {
		return fmt.Errorf("already friends: %w", domain.ErrConflict)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO friend_requests (sender_id, receiver_id, created_at) VALUES (?, ?, NOW())
    `, callerID, targetID)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("request pending: %w", domain.ErrConflict)
		}
		return fmt.Errorf("send friend request: %w", err)
	}
	return nil
}

func (s *MySQLDomainService) AcceptFriendRequest(ctx context.Context, callerID, targetID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM friend_requests WHERE sender_id = ? AND receiver_id = ?`, targetID, callerID)
	if err != nil {
		return fmt.Errorf("accept friend request: %w", err)
	}
	if err := requireAffected(result); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO friends (user_id, friend_id) VALUES (?, ?), (?, ?)`,
		callerID, targetID, targetID, callerID); err != nil {
		return fmt.Errorf("create friendship: %w", err)
	}
	return tx.Commit()
}

func (s *MySQLDomainService) DeclineFriendRequest(ctx context.Context, callerID, targetID int64) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM friend_requests WHERE sender_id = ? AND receiver_id = ?`, targetID, callerID)
	if err != nil {
		return fmt.Errorf("decline friend request: %w", err)
	}
	return requireAffected(result)
}

func (s *MySQLDomainService) RemoveFriend(ctx context.Context, callerID, targetID int64) error {
	result, err := s.db.ExecContext(ctx, `
        DELETE FROM friends WHERE (user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)
    `, callerID, targetID, targetID, callerID)
	if err != nil {
		return fmt.Errorf("remove friend: %w", err)
	}
	return requireAffected(result)
}

func (s *MySQLDomainService) SendDirectMessage(ctx context.Context, callerID, targetID int64, content string) (*domain.Message, error) {
	blocked, err := s.isBlocked(ctx, targetID, callerID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, domain.ErrNotAuthorized
	}

	sentAt := time.Now()
	result, err := s.db.ExecContext(ctx, `
        INSERT INTO direct_messages (sender_id, receiver_id, content, sent_at) VALUES (?, ?, ?, ?)
    `, callerID, targetID, content, sentAt)
	if err != nil {
		return nil, fmt.Errorf("send direct message: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &domain.Message{
		ID:       id,
		AuthorID: callerID,
		Content:  content,
		SentAt:   domain.TimeToMillis(sentAt),
	}, nil
}

func (s *MySQLDomainService) CreateChannel(ctx context.Context, callerID int64, name, password string, isPrivate bool) (*domain.Channel, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	createdAt := time.Now()
	result, err := tx.ExecContext(ctx, `
        INSERT INTO channels (name, owner_id, is_private, password, created_at) VALUES (?, ?, ?, ?, ?)
    `, name, callerID, isPrivate, password, createdAt)
	if err != nil {
		if isDuplicate(err) {
			return nil, fmt.Errorf("channel name taken: %w", domain.ErrConflict)
		}
		return nil, fmt.Errorf("create channel: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
        INSERT INTO channel_members (channel_id, user_id, role) VALUES (?, ?, ?)
    `, id, callerID, domain.RoleOwner); err != nil {
		return nil, fmt.Errorf("add channel owner: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &domain.Channel{
		ID:          id,
		Name:        name,
		OwnerID:     callerID,
		IsPrivate:   isPrivate,
		HasPassword: password != "",
		CreatedAt:   domain.TimeToMillis(createdAt),
	}, nil
}

func (s *MySQLDomainService) DeleteChannel(ctx context.Context, callerID, channelID int64) error {
	if err := s.requireRole(ctx, channelID, callerID, domain.RoleOwner); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, query := range []string{
		`DELETE FROM channel_messages WHERE channel_id = ?`,
		`DELETE FROM channel_restrictions WHERE channel_id = ?`,
		`DELETE FROM channel_members WHERE channel_id = ?`,
		`DELETE FROM channels WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, query, channelID); err != nil {
			return fmt.Errorf("delete channel: %w", err)
		}
	}
	return tx.Commit()
}

func (s *MySQLDomainService) JoinChannel(ctx context.Context, callerID, channelID int64, password string) error {
	var isPrivate bool
	var storedPassword string
	err := s.db.QueryRowContext(ctx,
		`SELECT is_private, password FROM channels WHERE id = ?`, channelID).
		Scan(&isPrivate, &storedPassword)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("load channel %d: %w", channelID, err)
	}
	if isPrivate {
		return fmt.Errorf("channel is invite-only: %w", domain.ErrNotAuthorized)
	}
	if storedPassword != "" && storedPassword != password {
		return fmt.Errorf("wrong password: %w", domain.ErrNotAuthorized)
	}
	if banned, err := s.hasRestriction(ctx, channelID, callerID, domain.RestrictionBan); err != nil {
		return err
	} else if banned {
		return fmt.Errorf("banned from channel: %w", domain.ErrNotAuthorized)
	}

	_, err = s.db.ExecContext(ctx, `
        INSERT INTO channel_members (channel_id, user_id, role) VALUES (?, ?, ?)
    `, channelID, callerID, domain.RoleMember)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("already a member: %w", domain.ErrConflict)
		}
		return fmt.Errorf("join channel: %w", err)
	}
	return nil
}

func (s *MySQLDomainService) LeaveChannel(ctx context.Context, callerID, channelID int64) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM channel_members WHERE channel_id = ? AND user_id = ?`, channelID, callerID)
	if err != nil {
		return fmt.Errorf("leave channel: %w", err)
	}
	return requireAffected(result)
}

func (s *MySQLDomainService) AddChannelMember(ctx context.Context, callerID, channelID, targetID int64) error {
	if err := s.requireRole(ctx, channelID, callerID, domain.RoleAdmin); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO channel_members (channel_id, user_id, role) VALUES (?, ?, ?)
    `, channelID, targetID, domain.RoleMember)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("already a member: %w", domain.ErrConflict)
		}
		return fmt.Errorf("add channel member: %w", err)
	}
	return nil
}

func (s *MySQLDomainService) RemoveChannelMember(ctx context.Context, callerID, channelID, targetID int64) error {
	if err := s.requireRole(ctx, channelID, callerID, domain.RoleAdmin); err != nil {
		return err
	}
	if err := s.forbidTargetingOwner(ctx, channelID, targetID); err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM channel_members WHERE channel_id = ? AND user_id = ?`, channelID, targetID)
	if err != nil {
		return fmt.Errorf("remove channel member: %w", err)
	}
	return requireAffected(result)
}

func (s *MySQLDomainService) UpdateChannelMemberRole(ctx context.Context, callerID, channelID, targetID int64, role domain.ChannelRole) error {
	if err := s.requireRole(ctx, channelID, callerID, domain.RoleOwner); err != nil {
		return err
	}
	if err := s.forbidTargetingOwner(ctx, channelID, targetID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
        UPDATE channel_members SET role = ? WHERE channel_id = ? AND user_id = ?
    `, role, channelID, targetID)
	if err != nil {
		return fmt.Errorf("update member role: %w", err)
	}
	return nil
}

func (s *MySQLDomainService) AddChannelRestriction(ctx context.Context, callerID, channelID, targetID int64, kind domain.RestrictionKind, duration time.Duration) error {
	if err := s.requireRole(ctx, channelID, callerID, domain.RoleAdmin); err != nil {
		return err
	}
	if err := s.forbidTargetingOwner(ctx, channelID, targetID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO channel_restrictions (channel_id, user_id, kind, expires_at) VALUES (?, ?, ?, ?)
        ON DUPLICATE KEY UPDATE expires_at = VALUES(expires_at)
    `, channelID, targetID, kind, time.Now().Add(duration))
	if err != nil {
		return fmt.Errorf("add restriction: %w", err)
	}
	if kind == domain.RestrictionBan {
		s.db.ExecContext(ctx,
			`DELETE FROM channel_members WHERE channel_id = ? AND user_id = ?`, channelID, targetID)
	}
	return nil
}

func (s *MySQLDomainService) UpdateChannelName(ctx context.Context, callerID, channelID int64, name string) error {
	if err := s.requireRole(ctx, channelID, callerID, domain.RoleOwner); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE channels SET name = ? WHERE id = ?`, name, channelID)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("channel name taken: %w", domain.ErrConflict)
		}
		return fmt.Errorf("update channel name: %w", err)
	}
	return nil
}

func (s *MySQLDomainService) UpdateChannelPassword(ctx context.Context, callerID, channelID int64, password string) error {
	if err := s.requireRole(ctx, channelID, callerID, domain.RoleOwner); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE channels SET password = ? WHERE id = ?`, password, channelID)
	if err != nil {
		return fmt.Errorf("update channel password: %w", err)
	}
	return nil
}

func (s *MySQLDomainService) UpdateChannelIsPrivate(ctx context.Context, callerID, channelID int64, isPrivate bool) error {
	if err := s.requireRole(ctx, channelID, callerID, domain.RoleOwner); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE channels SET is_private = ? WHERE id = ?`, isPrivate, channelID)
	if err != nil {
		return fmt.Errorf("update channel visibility: %w", err)
	}
	return nil
}

func (s *MySQLDomainService) SendChannelMessage(ctx context.Context, callerID, channelID int64, content string) (*domain.Message, error) {
	if err := s.requireMember(ctx, channelID, callerID); err != nil {
		return nil, err
	}
	if muted, err := s.hasRestriction(ctx, channelID, callerID, domain.RestrictionMute); err != nil {
		return nil, err
	} else if muted {
		return nil, fmt.Errorf("muted in channel: %w", domain.ErrNotAuthorized)
	}

	sentAt := time.Now()
	result, err := s.db.ExecContext(ctx, `
        INSERT INTO channel_messages (channel_id, author_id, content, sent_at) VALUES (?, ?, ?, ?)
    `, channelID, callerID, content, sentAt)
	if err != nil {
		return nil, fmt.Errorf("send channel message: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &domain.Message{
		ID:       id,
		AuthorID: callerID,
		Content:  content,
		SentAt:   domain.TimeToMillis(sentAt),
	}, nil
}

// Helpers.

func (s *MySQLDomainService) isBlocked(ctx context.Context, blockerID, blockedID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM blocks WHERE user_id = ? AND blocked_id = ?`,
		blockerID, blockedID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check block: %w", err)
	}
	return count > 0, nil
}

func (s *MySQLDomainService) areFriends(ctx context.Context, a, b int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM friends WHERE user_id = ? AND friend_id = ?`, a, b).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check friendship: %w", err)
	}
	return count > 0, nil
}

func (s *MySQLDomainService) requireMember(ctx context.Context, channelID, userID int64) error {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM channel_members WHERE channel_id = ? AND user_id = ?`,
		channelID, userID).Scan(&count)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("not a channel member: %w", domain.ErrNotAuthorized)
	}
	return nil
}

// requireRole checks the caller holds at least the given role; owner
// outranks admin.
func (s *MySQLDomainService) requireRole(ctx context.Context, channelID, userID int64, minimum domain.ChannelRole) error {
	var role domain.ChannelRole
	err := s.db.QueryRowContext(ctx,
		`SELECT role FROM channel_members WHERE channel_id = ? AND user_id = ?`,
		channelID, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("not a channel member: %w", domain.ErrNotAuthorized)
		}
		return fmt.Errorf("check role: %w", err)
	}
	if role == domain.RoleOwner {
		return nil
	}
	if minimum == domain.RoleAdmin && role == domain.RoleAdmin {
		return nil
	}
	if minimum == domain.RoleMember {
		return nil
	}
	return fmt.Errorf("insufficient role: %w", domain.ErrNotAuthorized)
}

func (s *MySQLDomainService) forbidTargetingOwner(ctx context.Context, channelID, targetID int64) error {
	var role domain.ChannelRole
	err := s.db.QueryRowContext(ctx,
		`SELECT role FROM channel_members WHERE channel_id = ? AND user_id = ?`,
		channelID, targetID).Scan(&role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("check target role: %w", err)
	}
	if role == domain.RoleOwner {
		return fmt.Errorf("cannot target channel owner: %w", domain.ErrNotAuthorized)
	}
	return nil
}

func (s *MySQLDomainService) hasRestriction(ctx context.Context, channelID, userID int64, kind domain.RestrictionKind) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
        SELECT COUNT(*) FROM channel_restrictions
        WHERE channel_id = ? AND user_id = ? AND kind = ? AND expires_at > NOW()
    `, channelID, userID, kind).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check restriction: %w", err)
	}
	return count > 0, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanChannel(row rowScanner) (*domain.Channel, error) {
	var ch domain.Channel
	var createdAt time.Time
	if err := row.Scan(&ch.ID, &ch.Name, &ch.OwnerID, &ch.IsPrivate, &ch.HasPassword, &createdAt); err != nil {
		return nil, err
	}
	ch.CreatedAt = domain.TimeToMillis(createdAt)
	return &ch, nil
}

func scanMessages(rows *sql.Rows) ([]domain.Message, error) {
	var messages []domain.Message
	for rows.Next() {
		var m domain.Message
		var sentAt time.Time
		if err := rows.Scan(&m.ID, &m.AuthorID, &m.Content, &sentAt); err != nil {
			return nil, err
		}
		m.SentAt = domain.TimeToMillis(sentAt)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func isDuplicate(err error) bool {
	var mysqlErr *mysqldrv.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
