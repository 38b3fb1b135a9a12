package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeNotifySupport announces a support assignment to the assignee.
	TaskTypeNotifySupport = "crm:notify_support"
	// TaskTypeEventsDigest compiles the unassigned-events digest for Management.
	TaskTypeEventsDigest = "crm:events_digest"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// HandleSendEmailTask processes TaskTypeSendEmail tasks.
func HandleSendEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	// Placeholder: deliver through SMTP/Mailpit once the relay is provisioned.
	fmt.Printf("[jobs] send email to %s subject=%s\n", payload.To, payload.Subject)
	return nil
}

// NotifySupportPayload identifies the event and its newly assigned
// support contact.
type NotifySupportPayload struct {
	EventID   int64 `json:"event_id"`
	SupportID int64 `json:"support_id"`
}

// NewNotifySupportTask constructs an Asynq task.
func NewNotifySupportTask(payload NotifySupportPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeNotifySupport, data), nil
}

// NewEventsDigestTask constructs the digest task. The digest carries no
// payload; the handler queries current state when it runs.
func NewEventsDigestTask() *asynq.Task {
	return asynq.NewTask(TaskTypeEventsDigest, nil)
}
