// Package notify turns domain events into tenant notifications.
//
// Delivery is not implemented: the default Sender only logs the message.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mmynk/flatlease/internal/event"
)

// Message is one outbound notification.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender logs messages instead of sending them.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(_ context.Context, msg Message) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification (not sent)", "to", msg.To, "subject", msg.Subject)
	return nil
}

// EventTypes are the events that can produce a notification.
var EventTypes = []string{
	event.TypeContractCreated,
	event.TypeContractRenewed,
	event.TypeContractCancelled,
	event.TypeContractModified,
	event.TypeContractStatusChanged,
	event.TypeContractExpiring,
	event.TypePaymentRecorded,
}

// Notifier is an eventbus.Handler that renders events into messages.
type Notifier struct {
	sender Sender
	logger *slog.Logger
}

// New creates a Notifier. A nil sender logs messages.
func New(sender Sender, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	if sender == nil {
		sender = LogSender{Logger: logger}
	}
	return &Notifier{sender: sender, logger: logger}
}

// HandleEvent implements eventbus.Handler.
func (n *Notifier) HandleEvent(ctx context.Context, evt event.DomainEvent) error {
	msg, ok, err := render(evt)
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", evt.EventType, err)
	}
	if !ok {
		return nil
	}
	if msg.To == "" {
		n.logger.Debug("notification skipped, no recipient", "event_type", evt.EventType, "event_id", evt.ID)
		return nil
	}
	return n.sender.Send(ctx, msg)
}

// render builds the message for evt. ok is false for events that do not
// notify anyone.
func render(evt event.DomainEvent) (msg Message, ok bool, err error) {
	switch evt.EventType {
	case event.TypeContractCreated:
		var p event.ContractCreatedPayload
		if err := evt.Decode(&p); err != nil {
			return msg, false, err
		}
		return Message{
			To:      p.TenantEmail,
			Subject: "Your rental contract has been created",
			Body: fmt.Sprintf("Dear %s,\n\nYour contract runs from %s to %s at a monthly rent of %s.",
				p.TenantName, p.StartDate, p.EndDate, p.MonthlyRent.StringFixed(2)),
		}, true, nil

	case event.TypeContractRenewed:
		var p event.ContractRenewedPayload
		if err := evt.Decode(&p); err != nil {
			return msg, false, err
		}
		return Message{
			To:      p.TenantEmail,
			Subject: "Your rental contract has been renewed",
			Body: fmt.Sprintf("Dear %s,\n\nYour contract is renewed from %s until %s. Monthly rent: %s (previously %s).",
				p.TenantName, p.NewStartDate, p.NewEndDate, p.NewRent.StringFixed(2), p.PreviousRent.StringFixed(2)),
		}, true, nil

	case event.TypeContractCancelled:
		var p event.ContractCancelledPayload
		if err := evt.Decode(&p); err != nil {
			return msg, false, err
		}
		body := fmt.Sprintf("Dear %s,\n\nYour contract was cancelled effective %s. Reason: %s.", p.TenantName, p.EffectiveDate, p.Reason)
		if p.RefundDeposit {
			body += " Your security deposit will be refunded."
		}
		return Message{To: p.TenantEmail, Subject: "Your rental contract has been cancelled", Body: body}, true, nil

	case event.TypeContractModified:
		var p event.ContractModifiedPayload
		if err := evt.Decode(&p); err != nil {
			return msg, false, err
		}
		return Message{
			To:      p.TenantEmail,
			Subject: "Your rental contract has been modified",
			Body: fmt.Sprintf("Dear %s,\n\nYour contract terms change effective %s. Monthly rent: %s. Reason: %s.",
				p.TenantName, p.EffectiveDate, p.NewRent.StringFixed(2), p.Reason),
		}, true, nil

	case event.TypeContractStatusChanged:
		var p event.ContractStatusChangedPayload
		if err := evt.Decode(&p); err != nil {
			return msg, false, err
		}
		if p.To != "EXPIRED" {
			return msg, false, nil
		}
		return Message{
			To:      p.TenantEmail,
			Subject: "Your rental contract has expired",
			Body:    fmt.Sprintf("Dear %s,\n\nYour contract has reached its end date.", p.TenantName),
		}, true, nil

	case event.TypeContractExpiring:
		var p event.ContractExpiringPayload
		if err := evt.Decode(&p); err != nil {
			return msg, false, err
		}
		subject := "Your rental contract ends soon"
		if p.Urgent {
			subject = fmt.Sprintf("Urgent: your rental contract ends in %d days", p.DaysLeft)
		}
		body := fmt.Sprintf("Dear %s,\n\nYour contract ends on %s.", p.TenantName, p.EndDate)
		if p.Renewable {
			body += " Contact the building office to renew it."
		}
		return Message{To: p.TenantEmail, Subject: subject, Body: body}, true, nil

	case event.TypePaymentRecorded:
		var p event.PaymentRecordedPayload
		if err := evt.Decode(&p); err != nil {
			return msg, false, err
		}
		return Message{
			To:      p.TenantEmail,
			Subject: "Payment received",
			Body: fmt.Sprintf("Dear %s,\n\nWe received your payment of %s. Remaining balance: %s.",
				p.TenantName, p.Amount.StringFixed(2), p.NewOutstanding.StringFixed(2)),
		}, true, nil
	}
	return msg, false, nil
}
