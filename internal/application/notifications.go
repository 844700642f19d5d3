package application

import (
	"time"

	"github.com/bnema/docqa-cli/internal/domain"
	"github.com/bnema/docqa-cli/internal/ports"
	"github.com/google/uuid"
)

// NotificationTiming controls the notification lifecycle: entering until
// EnterDelay, visible until Display, then leaving for Exit before removal.
// EnterDelay and Display are both measured from creation.
type NotificationTiming struct {
	EnterDelay time.Duration
	Display    time.Duration
	Exit       time.Duration
}

func DefaultNotificationTiming() NotificationTiming {
	return NotificationTiming{
		EnterDelay: 100 * time.Millisecond,
		Display:    3 * time.Second,
		Exit:       300 * time.Millisecond,
	}
}

func (t NotificationTiming) withDefaults() NotificationTiming {
	defaults := DefaultNotificationTiming()
	if t.EnterDelay <= 0 {
		t.EnterDelay = defaults.EnterDelay
	}
	if t.Display <= 0 {
		t.Display = defaults.Display
	}
	if t.Exit <= 0 {
		t.Exit = defaults.Exit
	}
	return t
}

// DismissWindow is the total time a notification stays in state.
func (t NotificationTiming) DismissWindow() time.Duration {
	return t.Display + t.Exit
}

type notifier struct {
	clock    ports.Clock
	timing   NotificationTiming
	dispatch func(...Event) State
}

func (n notifier) show(level domain.NotificationLevel, text string) string {
	id := uuid.NewString()
	n.dispatch(NotificationAdded{Notification: domain.Notification{
		ID:    id,
		Level: level,
		Text:  text,
		Phase: domain.PhaseEntering,
	}})

	n.clock.AfterFunc(n.timing.EnterDelay, func() {
		n.dispatch(NotificationPhaseChanged{ID: id, Phase: domain.PhaseVisible})
	})
	n.clock.AfterFunc(n.timing.Display, func() {
		n.dispatch(NotificationPhaseChanged{ID: id, Phase: domain.PhaseLeaving})
		n.clock.AfterFunc(n.timing.Exit, func() {
			n.dispatch(NotificationPhaseChanged{ID: id, Phase: domain.PhaseRemoved})
		})
	})

	return id
}
