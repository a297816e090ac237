package email

import "context"

// Provider hands notification content to an external delivery system. The
// invitation contract ends at "token persisted and handed off"; delivery is
// not this service's concern.
type Provider interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return nil
}
