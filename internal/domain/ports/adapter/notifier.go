package adapter

import "context"

// Attachment is an in-memory file attached to an outbound message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Notifier is the best-effort outbound channel for OTP codes and receipts.
// Send never returns an error: delivery failure is reported as false only,
// and must never fail or delay the surrounding payment operation.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string, attachments ...Attachment) bool
}

// TaskRunner queues fire-and-forget background work.
// Run reports false when the task was dropped instead of queued.
type TaskRunner interface {
	Run(task func(ctx context.Context)) bool
}
