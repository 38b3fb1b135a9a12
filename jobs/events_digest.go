package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// EventsDigestHandler compiles the nightly list of events under signed
// contracts that still have no support contact and mails it to the
// management distribution address.
type EventsDigestHandler struct {
	pool    *pgxpool.Pool
	client  *Client
	logger  *slog.Logger
	to      string
	printer *message.Printer
}

// NewEventsDigestHandler constructs the handler. to is the distribution
// address receiving the digest.
func NewEventsDigestHandler(pool *pgxpool.Pool, client *Client, logger *slog.Logger, to string) *EventsDigestHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventsDigestHandler{
		pool:    pool,
		client:  client,
		logger:  logger,
		to:      to,
		printer: message.NewPrinter(language.English),
	}
}

type digestRow struct {
	EventID   int64
	Company   string
	DateStart time.Time
	Attendees int
	Remaining float64
}

// Handle processes TaskTypeEventsDigest tasks.
func (h *EventsDigestHandler) Handle(ctx context.Context, t *asynq.Task) error {
	if len(t.Payload()) != 0 {
		var discard struct{}
		if err := json.Unmarshal(t.Payload(), &discard); err != nil {
			return asynq.SkipRetry
		}
	}

	rows, err := h.pool.Query(ctx, `
		SELECT e.id, cl.company_name, e.event_date_start, e.attendees, co.amount_remaining
		FROM events e
		JOIN contracts co ON co.id = e.contract_id
		JOIN clients cl ON cl.id = co.client_id
		WHERE e.support_contact_id IS NULL AND co.status = 'Signed'
		ORDER BY e.event_date_start`)
	if err != nil {
		return fmt.Errorf("jobs: digest query: %w", err)
	}
	defer rows.Close()

	var pending []digestRow
	for rows.Next() {
		var row digestRow
		if err := rows.Scan(&row.EventID, &row.Company, &row.DateStart, &row.Attendees, &row.Remaining); err != nil {
			return fmt.Errorf("jobs: digest scan: %w", err)
		}
		pending = append(pending, row)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("jobs: digest query: %w", err)
	}

	if len(pending) == 0 {
		h.logger.Info("events digest", slog.Int("unassigned", 0))
		return nil
	}

	var b strings.Builder
	b.WriteString("Events awaiting a support contact:\n\n")
	for _, row := range pending {
		h.printer.Fprintf(&b, "  #%d  %s  %s  %d attendees  %.2f outstanding\n",
			row.EventID, row.Company, row.DateStart.Format("2006-01-02"), row.Attendees, row.Remaining)
	}

	_, err = h.client.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      h.to,
		Subject: h.printer.Sprintf("%d events awaiting support assignment", len(pending)),
		Body:    b.String(),
	})
	if err != nil {
		return err
	}

	h.logger.Info("events digest", slog.Int("unassigned", len(pending)))
	return nil
}
