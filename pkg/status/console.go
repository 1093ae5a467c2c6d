package status

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Status line text
const (
	MsgListening     = "Start listening..."
	MsgReconnected   = "Network connection is reestablished successfully!"
	MsgDisconnected  = "Network connection is disconnected..."
	MsgReconnecting  = "Reconnecting ..."
	MsgLoginComplete = "Connection reestablished successfully."
	MsgRetrying      = "Retrying..."
)

var (
	brightGreen = lipgloss.Color("10")
	brightRed   = lipgloss.Color("9")
	mutedGray   = lipgloss.Color("#6B7280")

	timeStyle  = lipgloss.NewStyle().Foreground(mutedGray)
	upStyle    = lipgloss.NewStyle().Foreground(brightGreen).Italic(true)
	downStyle  = lipgloss.NewStyle().Foreground(brightRed).Italic(true)
	plainStyle = lipgloss.NewStyle()
)

// Console writes timestamped status lines to a terminal.
type Console struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// NewConsole creates a console reporter writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w, now: time.Now}
}

func (c *Console) line(style lipgloss.Style, format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stamp := timeStyle.Render("[" + c.now().Format("15:04:05") + "]")
	fmt.Fprintf(c.w, "%s %s\n", stamp, style.Render(fmt.Sprintf(format, args...)))
}

// Listening prints the startup line.
func (c *Console) Listening() {
	c.line(plainStyle, MsgListening)
}

// Transition prints the new connectivity state.
func (c *Console) Transition(disconnected bool) {
	if disconnected {
		c.line(downStyle, MsgDisconnected)
		return
	}
	c.line(upStyle, MsgReconnected)
}

// RecoveryStarted prints that a portal login is underway.
func (c *Console) RecoveryStarted() {
	c.line(plainStyle, MsgReconnecting)
}

// RecoverySucceeded prints that the login went through.
func (c *Console) RecoverySucceeded() {
	c.line(plainStyle, MsgLoginComplete)
}

// RecoveryFailed prints the failure and that the next cycle retries.
func (c *Console) RecoveryFailed(err error) {
	c.line(plainStyle, "Connection failed @%v", err)
	c.line(plainStyle, MsgRetrying)
}
