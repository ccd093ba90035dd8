package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/linemk/rewards-wallet/internal/domain/models"
)

const userColumns = `user_id, telegram_id, first_name, last_name, username, photo_url,
	balance, card_earnings, referral_earnings, is_admin, referral_code, created_at, updated_at`

type UserStorage interface {
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	// GetOrCreateUser возвращает пользователя, создавая его с нулевым балансом при первом обращении.
	GetOrCreateUser(ctx context.Context, userID string) (*models.User, error)
	// UpsertTelegramUser создает пользователя или обновляет его профиль; баланс не затрагивается.
	UpsertTelegramUser(ctx context.Context, user *models.User) (*models.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
	CountUsers(ctx context.Context) (int, error)
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserStorage {
	return &userRepository{db: db}
}

// rowScanner покрывает *sql.Row и *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.UserID, &user.TelegramID, &user.FirstName, &user.LastName, &user.Username, &user.PhotoURL,
		&user.Balance, &user.CardEarnings, &user.ReferralEarnings, &user.IsAdmin, &user.ReferralCode,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepository) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE user_id = $1", userID)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// GetOrCreateUser опирается на первичный ключ: два параллельных вызова не создадут две строки
func (r *userRepository) GetOrCreateUser(ctx context.Context, userID string) (*models.User, error) {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO users (user_id, referral_code) VALUES ($1, $1) ON CONFLICT (user_id) DO NOTHING",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return r.GetUserByID(ctx, userID)
}

func (r *userRepository) UpsertTelegramUser(ctx context.Context, user *models.User) (*models.User, error) {
	query := `INSERT INTO users (user_id, telegram_id, first_name, last_name, username, photo_url, referral_code, is_admin)
		VALUES ($1, $2, $3, $4, $5, $6, $1, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			telegram_id = EXCLUDED.telegram_id,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			username = EXCLUDED.username,
			photo_url = EXCLUDED.photo_url,
			is_admin = EXCLUDED.is_admin,
			updated_at = NOW()
		RETURNING ` + userColumns
	row := r.db.QueryRowContext(ctx, query,
		user.UserID, user.TelegramID, user.FirstName, user.LastName, user.Username, user.PhotoURL, user.IsAdmin,
	)
	saved, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return saved, nil
}

func (r *userRepository) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0, limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}
