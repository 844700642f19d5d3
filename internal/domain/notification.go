package domain

type NotificationLevel string

const (
	NotificationSuccess NotificationLevel = "success"
	NotificationError   NotificationLevel = "error"
	NotificationInfo    NotificationLevel = "info"
)

func (l NotificationLevel) Icon() string {
	switch l {
	case NotificationSuccess:
		return "✔"
	case NotificationError:
		return "✖"
	default:
		return "ℹ"
	}
}

type NotificationPhase string

const (
	PhaseEntering NotificationPhase = "entering"
	PhaseVisible  NotificationPhase = "visible"
	PhaseLeaving  NotificationPhase = "leaving"
	PhaseRemoved  NotificationPhase = "removed"
)

type Notification struct {
	ID    string
	Level NotificationLevel
	Text  string
	Phase NotificationPhase
}
