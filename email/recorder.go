package email

import (
	"context"
	"regexp"
	"sync"
)

// Message is one captured email.
type Message struct {
	Recipient string
	Subject   string
	Body      string
}

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

// Recorder captures messages in memory. FailWith makes Send fail.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	err      error
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Send(_ context.Context, recipient, subject, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.messages = append(r.messages, Message{Recipient: recipient, Subject: subject, Body: body})
	return nil
}

// FailWith makes subsequent sends return err. A nil err restores delivery.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

// Messages returns a copy of everything captured so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// LastCode returns the first six-digit number in the latest message to
// recipient.
func (r *Recorder) LastCode(recipient string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.messages) - 1; i >= 0; i-- {
		if r.messages[i].Recipient != recipient {
			continue
		}
		if code := codePattern.FindString(r.messages[i].Body); code != "" {
			return code, true
		}
		return "", false
	}
	return "", false
}
