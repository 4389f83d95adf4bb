package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"telereply/internal/entities"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ScheduleRepository persists scheduled broadcasts. Target lists are stored
// as JSONB columns.
type ScheduleRepository struct {
	db *pgxpool.Pool
}

func NewScheduleRepository(db *pgxpool.Pool) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

func (r *ScheduleRepository) GetSchedules(ctx context.Context, ownerID string) ([]entities.ScheduledMessage, error) {
	return r.query(ctx, `
		SELECT id, owner_id, message, time_of_day, chat_ids, usernames, active, last_sent_date
		FROM scheduled_messages WHERE owner_id = $1 ORDER BY time_of_day, id`, ownerID)
}

// ActiveSchedules returns every active schedule across all tenants, for the
// scheduler tick.
func (r *ScheduleRepository) ActiveSchedules(ctx context.Context) ([]entities.ScheduledMessage, error) {
	return r.query(ctx, `
		SELECT id, owner_id, message, time_of_day, chat_ids, usernames, active, last_sent_date
		FROM scheduled_messages WHERE active ORDER BY id`)
}

// UpsertSchedule inserts or replaces a schedule. A new schedule (empty id)
// gets a fresh uuid and a null last-sent date; updating an existing one also
// resets last-sent, matching create semantics.
func (r *ScheduleRepository) UpsertSchedule(ctx context.Context, msg entities.ScheduledMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	chatIDs, err := json.Marshal(msg.ChatIDs)
	if err != nil {
		return fmt.Errorf("marshal chat ids: %w", err)
	}
	usernames, err := json.Marshal(msg.Usernames)
	if err != nil {
		return fmt.Errorf("marshal usernames: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO scheduled_messages (id, owner_id, message, time_of_day, chat_ids, usernames, active, last_sent_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL)
		ON CONFLICT (id) DO UPDATE SET
			message = EXCLUDED.message,
			time_of_day = EXCLUDED.time_of_day,
			chat_ids = EXCLUDED.chat_ids,
			usernames = EXCLUDED.usernames,
			active = EXCLUDED.active,
			last_sent_date = NULL
		WHERE scheduled_messages.owner_id = EXCLUDED.owner_id`,
		msg.ID, msg.OwnerID, msg.Message, msg.Time, chatIDs, usernames, msg.Active)
	return err
}

func (r *ScheduleRepository) DeleteSchedule(ctx context.Context, ownerID, id string) error {
	_, err := r.db.Exec(ctx,
		"DELETE FROM scheduled_messages WHERE id = $1 AND owner_id = $2", id, ownerID)
	return err
}

func (r *ScheduleRepository) MarkScheduleSent(ctx context.Context, id, date string) error {
	_, err := r.db.Exec(ctx,
		"UPDATE scheduled_messages SET last_sent_date = $2 WHERE id = $1", id, date)
	return err
}

func (r *ScheduleRepository) query(ctx context.Context, sql string, args ...any) ([]entities.ScheduledMessage, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entities.ScheduledMessage
	for rows.Next() {
		var (
			msg       entities.ScheduledMessage
			chatIDs   []byte
			usernames []byte
			lastSent  *string
		)
		if err := rows.Scan(&msg.ID, &msg.OwnerID, &msg.Message, &msg.Time, &chatIDs, &usernames, &msg.Active, &lastSent); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(chatIDs, &msg.ChatIDs); err != nil {
			return nil, fmt.Errorf("unmarshal chat ids for %s: %w", msg.ID, err)
		}
		if err := json.Unmarshal(usernames, &msg.Usernames); err != nil {
			return nil, fmt.Errorf("unmarshal usernames for %s: %w", msg.ID, err)
		}
		if lastSent != nil {
			msg.LastSentDate = *lastSent
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}
