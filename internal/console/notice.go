package console

import (
	"fmt"
	"time"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a user-facing message queued by an operation and handed to the
// presentation layer on the next Notices call.
type Notice struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// maxNotices bounds the queue for consoles nobody drains.
const maxNotices = 50

func (c *Console) notify(level Level, format string, args ...any) {
	n := Notice{Level: level, Message: fmt.Sprintf(format, args...), At: time.Now()}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.notices = append(c.notices, n)
	if len(c.notices) > maxNotices {
		c.notices = c.notices[len(c.notices)-maxNotices:]
	}
}

// Notices drains the pending notices, oldest first.
func (c *Console) Notices() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.notices
	c.notices = nil
	if out == nil {
		out = []Notice{}
	}
	return out
}
