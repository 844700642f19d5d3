package domain

const WelcomeBody = "**Chat cleared! 🧹**\nReady for new questions. Upload documents or ask me anything!"

// Transcript is an append-only message log. The zero value is an empty
// transcript. Append never mutates the receiver's backing array.
type Transcript struct {
	messages []Message
}

func NewTranscript(messages ...Message) Transcript {
	return Transcript{messages: append([]Message(nil), messages...)}
}

// WelcomeTranscript is the state a cleared chat resets to.
func WelcomeTranscript() Transcript {
	return NewTranscript(AssistantMessage(WelcomeBody))
}

func (t Transcript) Append(m Message) Transcript {
	next := make([]Message, len(t.messages), len(t.messages)+1)
	copy(next, t.messages)
	return Transcript{messages: append(next, m)}
}

func (t Transcript) Len() int {
	return len(t.messages)
}

func (t Transcript) Messages() []Message {
	return append([]Message(nil), t.messages...)
}

// Last returns the most recent message, if any.
func (t Transcript) Last() (Message, bool) {
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// LastFrom returns the most recent message with the given origin.
func (t Transcript) LastFrom(origin Origin) (Message, bool) {
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].Origin == origin {
			return t.messages[i], true
		}
	}
	return Message{}, false
}
