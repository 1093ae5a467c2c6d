package status

import (
	"github.com/gen2brain/beeep"

	"github.com/entrhq/portalkeeper/pkg/logging"
)

const desktopTitle = "portalkeeper"

// Desktop sends OS notifications for transitions and failed recoveries.
// Listening and progress events are left to the console.
type Desktop struct {
	notify func(title, message string) error
	log    *logging.Logger
}

// NewDesktop creates a desktop notifier backed by beeep.
func NewDesktop(log *logging.Logger) *Desktop {
	if log == nil {
		log = logging.Discard()
	}
	return &Desktop{
		notify: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
		log: log,
	}
}

func (d *Desktop) send(message string) {
	if err := d.notify(desktopTitle, message); err != nil {
		d.log.Warnf("desktop notification failed: %v", err)
	}
}

// Listening is not notified.
func (d *Desktop) Listening() {}

// Transition notifies the new connectivity state.
func (d *Desktop) Transition(disconnected bool) {
	if disconnected {
		d.send(MsgDisconnected)
		return
	}
	d.send(MsgReconnected)
}

// RecoveryStarted is not notified.
func (d *Desktop) RecoveryStarted() {}

// RecoverySucceeded is not notified; the following transition is.
func (d *Desktop) RecoverySucceeded() {}

// RecoveryFailed notifies the failure.
func (d *Desktop) RecoveryFailed(err error) {
	d.send("Connection failed @" + err.Error())
}
