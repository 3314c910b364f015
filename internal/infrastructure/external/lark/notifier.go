package lark

import (
	"context"
	"errors"
	"fmt"

	"github.com/garyjia/e-approval/internal/application/port"
	"go.uber.org/zap"
)

// Notifier implements port.Notifier by messaging each recipient on Lark.
// Recipients without a messenger id are skipped.
type Notifier struct {
	sender        MessageSender
	directory     port.Directory
	receiveIDType string
	logger        *zap.Logger
}

// NewNotifier creates a new Lark notifier
func NewNotifier(sender MessageSender, directory port.Directory, receiveIDType string, logger *zap.Logger) *Notifier {
	if receiveIDType == "" {
		receiveIDType = "open_id"
	}
	return &Notifier{
		sender:        sender,
		directory:     directory,
		receiveIDType: receiveIDType,
		logger:        logger,
	}
}

// Notify implements port.Notifier
func (n *Notifier) Notify(ctx context.Context, msg port.Notification) error {
	if msg.Document == nil || len(msg.Recipients) == 0 {
		return nil
	}

	ids := append([]int64{msg.ActorID}, msg.Recipients...)
	employees, err := n.directory.GetEmployees(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to load recipients: %w", err)
	}

	actor := ""
	if e, ok := employees[msg.ActorID]; ok {
		actor = e.Name
	}
	text := Render(msg, actor)

	var errs []error
	for _, id := range msg.Recipients {
		e, ok := employees[id]
		if !ok || e.MessengerID == "" {
			n.logger.Debug("Recipient has no messenger id",
				zap.Int64("employee_id", id),
				zap.String("event", msg.Event))
			continue
		}
		if _, err := n.sender.SendText(ctx, n.receiveIDType, e.MessengerID, text); err != nil {
			errs = append(errs, fmt.Errorf("employee %d: %w", id, err))
			continue
		}
		n.logger.Info("Notification sent",
			zap.String("event", msg.Event),
			zap.Int64("document_id", msg.Document.ID),
			zap.Int64("employee_id", id))
	}
	return errors.Join(errs...)
}

// Render formats the message body for an event
func Render(msg port.Notification, actorName string) string {
	doc := msg.Document
	var text string
	switch msg.Event {
	case port.EventApprovalRequested:
		text = fmt.Sprintf("[%s] %s is waiting for your approval (level %d/%d).", doc.DocumentNo, doc.Title, doc.CurrentLevel, doc.TotalLevel)
	case port.EventSlotDelegated:
		text = fmt.Sprintf("[%s] %s was delegated to you by %s.", doc.DocumentNo, doc.Title, actorName)
	case port.EventDocumentApproved:
		text = fmt.Sprintf("[%s] %s has been approved.", doc.DocumentNo, doc.Title)
	case port.EventDocumentRejected:
		text = fmt.Sprintf("[%s] %s was rejected by %s.", doc.DocumentNo, doc.Title, actorName)
	case port.EventDocumentWithdrawn:
		text = fmt.Sprintf("[%s] %s was withdrawn by the requester.", doc.DocumentNo, doc.Title)
	default:
		text = fmt.Sprintf("[%s] %s: %s", doc.DocumentNo, doc.Title, msg.Event)
	}
	if msg.Comment != "" {
		text += "\nComment: " + msg.Comment
	}
	return text
}
