package smssvc

import (
	"context"
	"sync"

	"github.com/maktab-uz/maktab/core"
)

type consoleService struct {
	logger        core.Logger
	disableOutput bool
}

var _ core.SMSService = (*consoleService)(nil)

// NewConsoleService logs messages instead of sending them. Used in DEV.
func NewConsoleService(logger core.Logger) core.SMSService {
	return &consoleService{logger: logger}
}

func (svc consoleService) Send(_ context.Context, msg core.SMSMessage) error {
	if !svc.disableOutput {
		svc.logger.Info("SMS to "+msg.To, map[string]interface{}{"to": msg.To, "body": msg.Body})
	}
	return nil
}

// ConsoleServiceMock keeps every message it is asked to send.
type ConsoleServiceMock struct {
	consoleService
	mu   sync.Mutex
	sent []core.SMSMessage
}

func NewConsoleServiceMock() *ConsoleServiceMock {
	return &ConsoleServiceMock{consoleService: consoleService{disableOutput: true}}
}

func (svc *ConsoleServiceMock) Send(ctx context.Context, msg core.SMSMessage) error {
	svc.mu.Lock()
	svc.sent = append(svc.sent, msg)
	svc.mu.Unlock()
	return svc.consoleService.Send(ctx, msg)
}

// SentMessages returns a copy of the messages sent so far.
func (svc *ConsoleServiceMock) SentMessages() []core.SMSMessage {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]core.SMSMessage(nil), svc.sent...)
}

// Last returns the last message sent to phone.
func (svc *ConsoleServiceMock) Last(phone string) (core.SMSMessage, bool) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	for i := len(svc.sent) - 1; i >= 0; i-- {
		if svc.sent[i].To == phone {
			return svc.sent[i], true
		}
	}
	return core.SMSMessage{}, false
}

func (svc *ConsoleServiceMock) Reset() {
	svc.mu.Lock()
	svc.sent = nil
	svc.mu.Unlock()
}
