package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

//go:embed schema.sql
var schema string

const dsnParams = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite works best with a single writer connection; it also serializes
	// membership transactions.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &SQLiteStore{db: db}, nil
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema on an in-memory database.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Set connection pool limits before setup so :memory: stays on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// ApplySchema creates all tables and indexes if they do not exist.
func ApplySchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Migrate applies the embedded schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const selectRoom = `SELECT id, name, type, leader_id, created_at FROM rooms`

func scanRoom(row rowScanner) (*store.Room, error) {
	var room store.Room
	var roomType string
	if err := row.Scan(&room.ID, &room.Name, &roomType, &room.LeaderID, &room.CreatedAt); err != nil {
		return nil, err
	}
	room.Type = store.RoomType(roomType)
	return &room, nil
}

// ==== UserStore implementation ====

// UpsertUser creates a user or updates its display name.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *store.User) error {
	query := `
		INSERT INTO users (id, display_name)
		VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET display_name = excluded.display_name
	`
	if _, err := s.db.ExecContext(ctx, query, user.ID, user.DisplayName); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*store.User, error) {
	query := `
		SELECT id, display_name, created_at
		FROM users
		WHERE id = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(&user.ID, &user.DisplayName, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// ==== RoomStore implementation ====

// EnsureRoom inserts the room unless it already exists.
func (s *SQLiteStore) EnsureRoom(ctx context.Context, room *store.Room) (*store.Room, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	stored, created, err := ensureRoomTx(ctx, tx, room)
	if err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit transaction: %w", err)
	}
	return stored, created, nil
}

func ensureRoomTx(ctx context.Context, tx *sql.Tx, room *store.Room) (*store.Room, bool, error) {
	query := `
		INSERT OR IGNORE INTO rooms (id, name, type, leader_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := tx.ExecContext(ctx, query, room.ID, room.Name, string(room.Type), room.LeaderID, room.CreatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("insert room: %w", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("get rows affected: %w", err)
	}

	stored, err := scanRoom(tx.QueryRowContext(ctx, selectRoom+` WHERE id = ?`, room.ID))
	if err != nil {
		return nil, false, fmt.Errorf("query room: %w", err)
	}
	return stored, inserted == 1, nil
}

// GetRoom retrieves a room by ID.
func (s *SQLiteStore) GetRoom(ctx context.Context, id string) (*store.Room, error) {
	room, err := scanRoom(s.db.QueryRowContext(ctx, selectRoom+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("room %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query room: %w", err)
	}
	return room, nil
}

// RoomExists checks whether a room row exists.
func (s *SQLiteStore) RoomExists(ctx context.Context, id string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM rooms WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query room: %w", err)
	}
	return true, nil
}

// RenameRoom updates the room name.
func (s *SQLiteStore) RenameRoom(ctx context.Context, id, name string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE rooms SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("update room name: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("room %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// SetLeader moves leadership if currentLeaderID still leads and newLeaderID is a member.
func (s *SQLiteStore) SetLeader(ctx context.Context, roomID, currentLeaderID, newLeaderID string) error {
	query := `
		UPDATE rooms SET leader_id = ?
		WHERE id = ? AND leader_id = ?
		  AND EXISTS (SELECT 1 FROM room_members WHERE room_id = ? AND user_id = ?)
	`
	result, err := s.db.ExecContext(ctx, query, newLeaderID, roomID, currentLeaderID, roomID, newLeaderID)
	if err != nil {
		return fmt.Errorf("update room leader: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("room %s led by %s: %w", roomID, currentLeaderID, store.ErrNotFound)
	}
	return nil
}

// DeleteRoomIfEmpty deletes the room iff it has no members.
func (s *SQLiteStore) DeleteRoomIfEmpty(ctx context.Context, id string) (bool, error) {
	query := `
		DELETE FROM rooms
		WHERE id = ?
		  AND NOT EXISTS (SELECT 1 FROM room_members WHERE room_id = ?)
	`
	result, err := s.db.ExecContext(ctx, query, id, id)
	if err != nil {
		return false, fmt.Errorf("delete room: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return rows == 1, nil
}

// ==== MembershipStore implementation ====

const insertMember = `
	INSERT OR IGNORE INTO room_members (user_id, room_id, room_name, joined_at)
	VALUES (?, ?, ?, ?)
`

// JoinRoom ensures the room exists and inserts the membership in one transaction.
func (s *SQLiteStore) JoinRoom(ctx context.Context, room *store.Room, m *store.Membership) (*store.Room, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	stored, _, err := ensureRoomTx(ctx, tx, room)
	if err != nil {
		return nil, false, err
	}

	result, err := tx.ExecContext(ctx, insertMember, m.UserID, stored.ID, m.RoomName, m.JoinedAt)
	if err != nil {
		return nil, false, fmt.Errorf("insert room member: %w", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("get rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit transaction: %w", err)
	}
	return stored, inserted == 1, nil
}

// AddMember inserts the membership into an existing room.
func (s *SQLiteStore) AddMember(ctx context.Context, m *store.Membership) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM rooms WHERE id = ?`, m.RoomID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("room %s: %w", m.RoomID, store.ErrNotFound)
		}
		return false, fmt.Errorf("query room: %w", err)
	}

	result, err := tx.ExecContext(ctx, insertMember, m.UserID, m.RoomID, m.RoomName, m.JoinedAt)
	if err != nil {
		return false, fmt.Errorf("insert room member: %w", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit transaction: %w", err)
	}
	return inserted == 1, nil
}

// RemoveMember deletes the membership, promoting a successor when asked to.
func (s *SQLiteStore) RemoveMember(ctx context.Context, roomID, userID string, promote bool) (bool, string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, "", fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	var leaderID string
	err = tx.QueryRowContext(ctx, `SELECT leader_id FROM rooms WHERE id = ?`, roomID).Scan(&leaderID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, "", fmt.Errorf("query room leader: %w", err)
	}

	var newLeaderID string
	if err == nil && leaderID == userID {
		successorQuery := `
			SELECT user_id FROM room_members
			WHERE room_id = ? AND user_id <> ?
			ORDER BY joined_at ASC, rowid ASC
			LIMIT 1
		`
		var successor string
		switch scanErr := tx.QueryRowContext(ctx, successorQuery, roomID, userID).Scan(&successor); {
		case scanErr == nil:
			if !promote {
				return false, "", store.ErrLeaderRemoval
			}
			if _, err := tx.ExecContext(ctx, `UPDATE rooms SET leader_id = ? WHERE id = ?`, successor, roomID); err != nil {
				return false, "", fmt.Errorf("promote successor: %w", err)
			}
			newLeaderID = successor
		case errors.Is(scanErr, sql.ErrNoRows):
			// last member; the room is deleted by the caller
		default:
			return false, "", fmt.Errorf("query successor: %w", scanErr)
		}
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM room_members WHERE user_id = ? AND room_id = ?`, userID, roomID)
	if err != nil {
		return false, "", fmt.Errorf("delete room member: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return false, "", fmt.Errorf("get rows affected: %w", err)
	}
	if deleted == 0 {
		// Rolls back any promotion above.
		return false, "", nil
	}

	if err := tx.Commit(); err != nil {
		return false, "", fmt.Errorf("commit transaction: %w", err)
	}
	return true, newLeaderID, nil
}

// IsMember checks if user is a member of the room.
func (s *SQLiteStore) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	query := `
		SELECT 1 FROM room_members
		WHERE user_id = ? AND room_id = ?
	`
	var exists int
	err := s.db.QueryRowContext(ctx, query, userID, roomID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query membership: %w", err)
	}
	return true, nil
}

// CountMembers returns the number of memberships of the room.
func (s *SQLiteStore) CountMembers(ctx context.Context, roomID string) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM room_members WHERE room_id = ?`, roomID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return count, nil
}

// ListMembers lists all memberships of a room ordered by join time.
func (s *SQLiteStore) ListMembers(ctx context.Context, roomID string) ([]*store.Membership, error) {
	query := `
		SELECT user_id, room_id, room_name, joined_at
		FROM room_members
		WHERE room_id = ?
		ORDER BY joined_at ASC, rowid ASC
	`
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []*store.Membership
	for rows.Next() {
		var m store.Membership
		var roomName sql.NullString
		if err := rows.Scan(&m.UserID, &m.RoomID, &roomName, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		if roomName.Valid {
			m.RoomName = &roomName.String
		}
		members = append(members, &m)
	}

	return members, rows.Err()
}

// ListUserRooms lists rooms the user belongs to with live member counts.
func (s *SQLiteStore) ListUserRooms(ctx context.Context, userID string) ([]*store.UserRoom, error) {
	query := `
		SELECT r.id, r.name, r.type, r.leader_id, r.created_at, m.room_name, m.joined_at,
		       (SELECT COUNT(*) FROM room_members c WHERE c.room_id = r.id)
		FROM room_members m
		JOIN rooms r ON r.id = m.room_id
		WHERE m.user_id = ?
		ORDER BY m.joined_at ASC, r.id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query user rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*store.UserRoom
	for rows.Next() {
		var ur store.UserRoom
		var roomType string
		var roomName sql.NullString
		if err := rows.Scan(
			&ur.Room.ID,
			&ur.Room.Name,
			&roomType,
			&ur.Room.LeaderID,
			&ur.Room.CreatedAt,
			&roomName,
			&ur.JoinedAt,
			&ur.MemberCount,
		); err != nil {
			return nil, fmt.Errorf("scan user room: %w", err)
		}
		ur.Room.Type = store.RoomType(roomType)
		if roomName.Valid {
			ur.RoomName = &roomName.String
		}
		rooms = append(rooms, &ur)
	}

	return rooms, rows.Err()
}

// ==== MessageStore implementation ====

// SaveMessage persists a message to storage.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	query := `
		INSERT INTO messages (type, room_id, sender_id, content, recipient_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, msg.Type, msg.RoomID, msg.SenderID, msg.Content, msg.RecipientID, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	msg.ID = id
	return nil
}

// ListMessages returns the most recent limit messages of a room, oldest first.
// A non-positive limit returns the whole history.
func (s *SQLiteStore) ListMessages(ctx context.Context, roomID string, limit int) ([]*store.Message, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `
		SELECT id, type, room_id, sender_id, content, recipient_id, created_at
		FROM messages
		WHERE room_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		var msg store.Message
		var content, recipient sql.NullString
		if err := rows.Scan(&msg.ID, &msg.Type, &msg.RoomID, &msg.SenderID, &content, &recipient, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if content.Valid {
			msg.Content = &content.String
		}
		if recipient.Valid {
			msg.RecipientID = &recipient.String
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to get chronological order
	for i := 0; i < len(messages)/2; i++ {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}

	return messages, nil
}

// Ensure SQLiteStore implements store.Store
var _ store.Store = (*SQLiteStore)(nil)
