package errors

// CreationError is the single aggregate failure returned when an injector
// cannot be created. It lists every configuration problem found.
type CreationError struct {
	Messages []Message
}

func (e *CreationError) Error() string {
	return formatMessages("injector creation failed", e.Messages, func(m Message) []string {
		if m.Source == "" {
			return nil
		}
		return []string{"at " + m.Source}
	})
}

// Unwrap exposes the causes of all messages.
func (e *CreationError) Unwrap() []error {
	return causes(e.Messages)
}

func causes(messages []Message) []error {
	var out []error
	for _, m := range messages {
		if m.Cause != nil {
			out = append(out, m.Cause)
		}
	}
	return out
}
