package database

import (
	"context"
	"fmt"

	"github.com/adityar2309/Vehicle-Parking-App/internal/models"
)

// RecordActivity пишет строку в журнал действий
func (db *DB) RecordActivity(ctx context.Context, activity *models.Activity) error {
	result, err := db.ExecContext(ctx,
		`INSERT INTO activities (user_id, type, data) VALUES (?, ?, ?)`,
		activity.UserID, activity.Type, activity.Data)
	if err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	activity.ID = id
	return nil
}

// GetUserActivities возвращает последние записи журнала пользователя,
// опционально по типу
func (db *DB) GetUserActivities(ctx context.Context, userID int64, activityType string, limit int) ([]*models.Activity, error) {
	if limit <= 0 || limit > models.MaxPaginationSize {
		limit = 20
	}

	query := `SELECT id, user_id, type, data, created_at FROM activities WHERE user_id = ?`
	args := []any{userID}
	if activityType != "" {
		query += ` AND type = ?`
		args = append(args, activityType)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	var activities []*models.Activity
	for rows.Next() {
		var a models.Activity
		if err := rows.Scan(&a.ID, &a.UserID, &a.Type, &a.Data, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return activities, nil
}
