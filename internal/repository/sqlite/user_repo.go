package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/prn-tf/castellan/internal/domain"
	"github.com/prn-tf/castellan/internal/repository"
)

// userRepository implements repository.UserRepository for SQLite.
type userRepository struct {
	db *DB
}

// NewUserRepository creates a new SQLite user repository.
func NewUserRepository(db *DB) repository.UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, name, email, password_hash, is_blocked, last_login, created_at, updated_at`

// Create creates a new user.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (name, email, password_hash, is_blocked, last_login, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		user.Name,
		user.Email,
		user.PasswordHash,
		boolToInt(user.IsBlocked),
		formatNullTime(user.LastLogin),
		user.CreatedAt.Format(time.RFC3339),
		user.UpdatedAt.Format(time.RFC3339),
	)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: email already exists", repository.ErrConflict)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	user.ID = id

	return nil
}

// GetByID retrieves a user by ID.
func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail retrieves a user by email. The email column carries the NOCASE
// collation, so equality here is case-insensitive.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	return r.scanUser(r.db.QueryRowContext(ctx, query, email))
}

// Update updates an existing user.
func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	user.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE users
		SET name = ?, email = ?, password_hash = ?, is_blocked = ?, last_login = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		user.Name,
		user.Email,
		user.PasswordHash,
		boolToInt(user.IsBlocked),
		formatNullTime(user.LastLogin),
		user.UpdatedAt.Format(time.RFC3339),
		user.ID,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: email already exists", repository.ErrConflict)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Delete deletes a user by ID.
func (r *userRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// List returns users matching the options, filtered, sorted, and paginated
// in the query layer.
func (r *userRepository) List(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.User], error) {
	where, args := buildListFilter(opts)

	var total int64
	countQuery := `SELECT COUNT(*) FROM users` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	query := `SELECT ` + userColumns + ` FROM users` + where +
		` ORDER BY ` + sortClause(opts) + ` LIMIT ? OFFSET ?`
	args = append(args, opts.PageSize, opts.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := r.scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return &repository.ListResult[domain.User]{
		Items:    users,
		Total:    total,
		Page:     opts.Page,
		PageSize: opts.PageSize,
	}, nil
}

// ExistsByEmail checks if a user with the given email exists (case-insensitive).
func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE email = ?`, email).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check email existence: %w", err)
	}
	return count > 0, nil
}

// buildListFilter returns the WHERE clause and arguments for list options.
// instr avoids LIKE wildcard escaping for the substring search.
func buildListFilter(opts repository.ListOptions) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if opts.SearchTerm != "" {
		conds = append(conds, `(instr(lower(name), lower(?)) > 0 OR instr(lower(email), lower(?)) > 0)`)
		args = append(args, opts.SearchTerm, opts.SearchTerm)
	}
	if opts.IsBlocked != nil {
		conds = append(conds, `is_blocked = ?`)
		args = append(args, boolToInt(*opts.IsBlocked))
	}

	if len(conds) == 0 {
		return "", nil
	}
	where := " WHERE " + conds[0]
	for _, c := range conds[1:] {
		where += " AND " + c
	}
	return where, args
}

// sortClause maps the sort key to a column. Ties always break by id
// ascending so pagination is stable. last_login is RFC3339 text, which
// sorts chronologically.
func sortClause(opts repository.ListOptions) string {
	col := "id"
	switch opts.SortBy {
	case repository.SortByName:
		col = "name COLLATE NOCASE"
	case repository.SortByEmail:
		col = "email"
	case repository.SortByLastLogin:
		col = "last_login"
	}

	dir := "ASC"
	if opts.Descending {
		dir = "DESC"
	}

	if col == "id" {
		return "id " + dir
	}
	if opts.SortBy == repository.SortByLastLogin {
		// SQLite and PostgreSQL disagree on default NULL placement;
		// never-logged-in users always sort last in either direction.
		return "last_login IS NULL, last_login " + dir + ", id ASC"
	}
	return col + " " + dir + ", id ASC"
}

func (r *userRepository) scanUser(row *sql.Row) (*domain.User, error) {
	user := &domain.User{}
	var isBlocked int
	var lastLogin sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&isBlocked,
		&lastLogin,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	fillUserTimes(user, isBlocked, lastLogin, createdAt, updatedAt)
	return user, nil
}

func (r *userRepository) scanUserRow(rows *sql.Rows) (*domain.User, error) {
	user := &domain.User{}
	var isBlocked int
	var lastLogin sql.NullString
	var createdAt, updatedAt string

	err := rows.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&isBlocked,
		&lastLogin,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	fillUserTimes(user, isBlocked, lastLogin, createdAt, updatedAt)
	return user, nil
}

func fillUserTimes(user *domain.User, isBlocked int, lastLogin sql.NullString, createdAt, updatedAt string) {
	user.IsBlocked = isBlocked != 0
	if lastLogin.Valid {
		if t, err := time.Parse(time.RFC3339, lastLogin.String); err == nil {
			user.LastLogin = &t
		}
	}
	user.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	user.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
}

// boolToInt converts a boolean to an integer (SQLite doesn't have native boolean).
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// formatNullTime renders a nullable timestamp for storage.
func formatNullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// Ensure userRepository implements repository.UserRepository.
var _ repository.UserRepository = (*userRepository)(nil)
