package provider

import (
	"context"

	"github.com/kursadbilgin/booking-engine/internal/domain"
)

// Provider is the outbound notification delivery port. Implementations own
// the wire protocol to the SMS/WhatsApp/email transport; the engine only sees
// success or a classified error.
type Provider interface {
	Send(ctx context.Context, notification domain.Notification) (*ProviderResponse, error)
}

// ProviderResponse stores delivery call metadata for audit and persistence.
type ProviderResponse struct {
	StatusCode int
	Body       string
	MessageID  string
}
