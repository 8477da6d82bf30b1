package service

import (
	"fmt"

	"github.com/kursadbilgin/booking-engine/internal/domain"
)

// PlainRenderer produces minimal single-line message bodies. Deployments that
// need localized or templated copy supply their own Renderer.
type PlainRenderer struct{}

func NewPlainRenderer() *PlainRenderer {
	return &PlainRenderer{}
}

func (r *PlainRenderer) Render(t domain.NotificationType, _ domain.Channel, msgCtx MessageContext) (string, error) {
	date := msgCtx.Date.Format("2006-01-02")

	switch t {
	case domain.TypeConfirmation:
		return fmt.Sprintf("Your %s appointment is booked for %s at %s.", msgCtx.ServiceName, date, msgCtx.Time), nil
	case domain.TypeReminder:
		return fmt.Sprintf("Reminder: your %s appointment is on %s at %s.", msgCtx.ServiceName, date, msgCtx.Time), nil
	case domain.TypeReschedule:
		prev := msgCtx.PreviousDate.Format("2006-01-02")
		return fmt.Sprintf("Your %s appointment moved from %s %s to %s at %s.",
			msgCtx.ServiceName, prev, msgCtx.PreviousTime, date, msgCtx.Time), nil
	case domain.TypeCancellation:
		if msgCtx.Reason != nil && *msgCtx.Reason != "" {
			return fmt.Sprintf("Your %s appointment on %s at %s was cancelled: %s.",
				msgCtx.ServiceName, date, msgCtx.Time, *msgCtx.Reason), nil
		}
		return fmt.Sprintf("Your %s appointment on %s at %s was cancelled.", msgCtx.ServiceName, date, msgCtx.Time), nil
	default:
		return "", fmt.Errorf("%w: no template for notification type %q", domain.ErrValidation, t)
	}
}
