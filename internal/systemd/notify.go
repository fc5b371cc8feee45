// Package systemd reports service state to the systemd supervisor.
package systemd

import (
	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/smazurov/videosaver/internal/logging"
)

// Notifier sends sd_notify messages. Outside a Type=notify unit every call
// is a no-op.
type Notifier struct {
	logger logging.Logger
	notify func(state string) (bool, error)
}

// NewNotifier returns a Notifier bound to $NOTIFY_SOCKET.
func NewNotifier(logger logging.Logger) *Notifier {
	return &Notifier{
		logger: logger,
		notify: func(state string) (bool, error) {
			return daemon.SdNotify(false, state)
		},
	}
}

// Ready tells systemd the recorder finished starting up.
func (n *Notifier) Ready() { n.send(daemon.SdNotifyReady) }

// Stopping tells systemd a shutdown is in progress.
func (n *Notifier) Stopping() { n.send(daemon.SdNotifyStopping) }

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(msg string) { n.send("STATUS=" + msg) }

func (n *Notifier) send(state string) {
	sent, err := n.notify(state)
	if err != nil {
		n.logger.Warn("sd_notify failed", "state", state, "error", err)
		return
	}
	if sent {
		n.logger.Debug("sd_notify sent", "state", state)
	}
}
