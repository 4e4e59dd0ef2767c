// Package messaging abstracts the chat transport used to deliver files and
// notifications to subjects. The real bot transport lives outside this
// service; deployments plug their own Messenger in, and everything else
// programs against the interface.
package messaging

import (
	"context"
	"log/slog"
)

// Messenger sends files and plain text to a subject over the chat transport.
type Messenger interface {
	// SendFile delivers the stored file identified by fileRef with the given
	// caption.
	SendFile(ctx context.Context, subjectID int64, fileRef, caption string) error
	// SendText delivers a plain notification message.
	SendText(ctx context.Context, subjectID int64, text string) error
}

// LogMessenger is the default transport: it records every send in the
// structured log and reports success. Useful for development and for
// deployments where delivery is handled by an external relay tailing the
// log.
type LogMessenger struct {
	logger *slog.Logger
}

// NewLogMessenger returns a Messenger that logs instead of sending.
func NewLogMessenger() *LogMessenger {
	return &LogMessenger{logger: slog.Default().With("component", "log-messenger")}
}

func (m *LogMessenger) SendFile(_ context.Context, subjectID int64, fileRef, caption string) error {
	m.logger.Info("file send",
		"subject_id", subjectID,
		"file_ref", fileRef,
		"caption", caption,
	)
	return nil
}

func (m *LogMessenger) SendText(_ context.Context, subjectID int64, text string) error {
	m.logger.Info("text send", "subject_id", subjectID, "text", text)
	return nil
}
