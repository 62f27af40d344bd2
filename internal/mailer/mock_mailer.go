package mailer

import "sync"

// SentEmail captures one Send call: who it was addressed to, which template
// rendered it and the data handed to that template.
type SentEmail struct {
	Recipient    string
	TemplateFile string
	Data         any
}

// MockMailer records sends instead of talking to an SMTP server. Safe for
// concurrent use; notifications are dispatched from background goroutines.
type MockMailer struct {
	mu   sync.Mutex
	sent []SentEmail
}

func NewMockMailer() *MockMailer {
	return &MockMailer{}
}

func (m *MockMailer) Send(recipient, templateFile string, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sent = append(m.sent, SentEmail{
		Recipient:    recipient,
		TemplateFile: templateFile,
		Data:         data,
	})

	return nil
}

// GetSentEmails returns a snapshot of everything recorded so far.
func (m *MockMailer) GetSentEmails() []SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()

	sent := make([]SentEmail, len(m.sent))
	copy(sent, m.sent)
	return sent
}
