package core

import "context"

type (
	SMSMessage struct {
		To   string // E.164 phone number
		Body string
	}

	// SMSService is any service that can deliver text messages to phones.
	SMSService interface {
		Send(ctx context.Context, msg SMSMessage) error
	}
)
