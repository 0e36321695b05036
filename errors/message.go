package errors

import (
	"fmt"
	"strings"
	"sync"
)

// Message is a single problem attributed to the declaration or injection
// site it came from. Two messages are the same when source and text match.
type Message struct {
	Code   ErrorCode `json:"code" yaml:"code"`
	Source string    `json:"source,omitempty" yaml:"source,omitempty"`
	Text   string    `json:"text" yaml:"text"`
	Cause  error     `json:"-" yaml:"-"`
}

func (m Message) String() string {
	if m.Code == "" {
		return m.Text
	}
	return fmt.Sprintf("[%s] %s", m.Code, m.Text)
}

func (m Message) identity() string {
	return m.Source + "\x00" + m.Text
}

// Collector accumulates messages. Adding never fails and never aborts the
// caller, so every problem of a configuration is reported at once.
type Collector struct {
	mu       sync.Mutex
	messages []Message
	seen     map[string]struct{}
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{seen: make(map[string]struct{})}
}

// Add records a message.
func (c *Collector) Add(code ErrorCode, source, text string, cause error) {
	c.AddMessage(Message{Code: code, Source: source, Text: text, Cause: cause})
}

// Addf records a message with a formatted text.
func (c *Collector) Addf(code ErrorCode, source, format string, args ...any) {
	c.AddMessage(Message{Code: code, Source: source, Text: fmt.Sprintf(format, args...)})
}

// AddMessage records m unless an identical message is already present.
func (c *Collector) AddMessage(m Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen == nil {
		c.seen = make(map[string]struct{})
	}
	id := m.identity()
	if _, dup := c.seen[id]; dup {
		return
	}
	c.seen[id] = struct{}{}
	c.messages = append(c.messages, m)
}

// AddError records err. Aggregated errors contribute each of their messages.
func (c *Collector) AddError(source string, err error) {
	switch e := err.(type) {
	case nil:
		return
	case *CreationError:
		for _, m := range e.Messages {
			c.AddMessage(m)
		}
	case *ProvisionError:
		for _, m := range e.Messages {
			if m.Source == "" {
				m.Source = source
			}
			c.AddMessage(m)
		}
	default:
		c.Add(CodeOf(err, ErrCodeConfiguration), source, err.Error(), err)
	}
}

// Merge copies every message of other into c.
func (c *Collector) Merge(other *Collector) {
	for _, m := range other.Messages() {
		c.AddMessage(m)
	}
}

// Messages returns a copy of the recorded messages in insertion order.
func (c *Collector) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of recorded messages.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// HasErrors reports whether any message was recorded.
func (c *Collector) HasErrors() bool { return c.Len() > 0 }

// Err returns the aggregate CreationError, or nil when nothing was recorded.
func (c *Collector) Err() error {
	messages := c.Messages()
	if len(messages) == 0 {
		return nil
	}
	return &CreationError{Messages: messages}
}

// formatMessages renders numbered messages followed by the error count.
func formatMessages(header string, messages []Message, frames func(Message) []string) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString(":\n\n")
	for i, m := range messages {
		fmt.Fprintf(&b, "%d) %s\n", i+1, m)
		for _, f := range frames(m) {
			fmt.Fprintf(&b, "  %s\n", f)
		}
		if m.Cause != nil && !strings.Contains(m.Text, MessageOf(m.Cause)) {
			fmt.Fprintf(&b, "  caused by: %v\n", m.Cause)
		}
		b.WriteString("\n")
	}
	if len(messages) == 1 {
		b.WriteString("1 error")
	} else {
		fmt.Fprintf(&b, "%d errors", len(messages))
	}
	return b.String()
}
