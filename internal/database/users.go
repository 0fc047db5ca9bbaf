package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/adityar2309/Vehicle-Parking-App/internal/models"
)

// UpsertUser создает или обновляет пользователя по факту идентичности,
// который поставляет внешний слой аутентификации
func (db *DB) UpsertUser(ctx context.Context, user *models.User) error {
	query := `
        INSERT INTO users (id, username, email, role, chat_id, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            username = excluded.username,
            email = CASE WHEN excluded.email != '' THEN excluded.email ELSE email END,
            role = excluded.role,
            chat_id = CASE WHEN excluded.chat_id != 0 THEN excluded.chat_id ELSE chat_id END,
            updated_at = excluded.updated_at
    `

	now := time.Now()
	_, err := db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.Role,
		user.ChatID,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// GetUser возвращает пользователя по ID
func (db *DB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	query := `
        SELECT id, username, email, role, chat_id, last_login, last_booking, created_at, updated_at
        FROM users WHERE id = ?
    `

	var user models.User
	err := db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Role,
		&user.ChatID,
		&user.LastLogin,
		&user.LastBooking,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// TouchLastLogin обновляет время последнего входа
func (db *DB) TouchLastLogin(ctx context.Context, userID int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET last_login = ?, updated_at = ? WHERE id = ?`,
		time.Now(), time.Now(), userID)
	return err
}

// TouchLastBooking обновляет время последнего бронирования
func (db *DB) TouchLastBooking(ctx context.Context, userID int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET last_booking = ?, updated_at = ? WHERE id = ?`,
		time.Now(), time.Now(), userID)
	return err
}

// GetInactiveUsers возвращает пользователей без входа с loginCutoff или
// без бронирования с bookingCutoff — кандидатов на напоминание
func (db *DB) GetInactiveUsers(ctx context.Context, loginCutoff, bookingCutoff time.Time) ([]*models.User, error) {
	query := `
        SELECT id, username, email, role, chat_id, last_login, last_booking, created_at, updated_at
        FROM users
        WHERE role = ? AND chat_id != 0
          AND (last_login IS NULL OR last_login < ?
               OR last_booking IS NULL OR last_booking < ?)
        ORDER BY id
    `

	rows, err := db.QueryContext(ctx, query, models.RoleUser, loginCutoff, bookingCutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query inactive users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var user models.User
		err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.Email,
			&user.Role,
			&user.ChatID,
			&user.LastLogin,
			&user.LastBooking,
			&user.CreatedAt,
			&user.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &user)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}
