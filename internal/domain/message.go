package domain

type Origin string

const (
	OriginUser      Origin = "user"
	OriginAssistant Origin = "assistant"
)

type MessageKind string

const (
	MessageKindNormal MessageKind = "normal"
	MessageKindError  MessageKind = "error"
)

// Message is a single transcript entry. Body holds the raw text; markup is
// applied at render time.
type Message struct {
	Origin Origin
	Body   string
	Kind   MessageKind
}

func UserMessage(body string) Message {
	return Message{Origin: OriginUser, Body: body, Kind: MessageKindNormal}
}

func AssistantMessage(body string) Message {
	return Message{Origin: OriginAssistant, Body: body, Kind: MessageKindNormal}
}

func AssistantError(body string) Message {
	return Message{Origin: OriginAssistant, Body: body, Kind: MessageKindError}
}

func (m Message) IsError() bool {
	return m.Kind == MessageKindError
}
