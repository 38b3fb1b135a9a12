package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NotifySupportHandler resolves a support assignment into an email task.
type NotifySupportHandler struct {
	pool   *pgxpool.Pool
	client *Client
	logger *slog.Logger
}

// NewNotifySupportHandler constructs the handler.
func NewNotifySupportHandler(pool *pgxpool.Pool, client *Client, logger *slog.Logger) *NotifySupportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotifySupportHandler{pool: pool, client: client, logger: logger}
}

// Handle processes TaskTypeNotifySupport tasks. It looks up the event
// and the assignee and enqueues the actual mail delivery.
func (h *NotifySupportHandler) Handle(ctx context.Context, t *asynq.Task) error {
	var payload NotifySupportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	var (
		email     string
		username  string
		dateStart time.Time
		location  *string
	)
	err := h.pool.QueryRow(ctx, `
		SELECT u.email, u.username, e.event_date_start, e.location
		FROM events e, users u
		WHERE e.id = $1 AND u.id = $2`,
		payload.EventID, payload.SupportID,
	).Scan(&email, &username, &dateStart, &location)
	if err != nil {
		h.logger.Warn("notify support lookup",
			slog.Int64("event_id", payload.EventID),
			slog.Any("error", err))
		return asynq.SkipRetry
	}

	where := "to be confirmed"
	if location != nil {
		where = *location
	}
	body := fmt.Sprintf("Hello %s,\n\nYou are now in charge of event #%d starting %s at %s.\n",
		username, payload.EventID, dateStart.Format("2006-01-02 15:04"), where)

	_, err = h.client.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      email,
		Subject: fmt.Sprintf("Event #%d assigned to you", payload.EventID),
		Body:    body,
	})
	return err
}
