package executor

import "log/slog"

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice is a transient, user-visible notification.
type Notice struct {
	Level   Level
	Message string
}

// Notifier receives notices while the connection lock is held, so
// implementations must not call back into the Connection or Coordinator.
type Notifier interface {
	Notify(Notice)
}

type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// LogNotifier reports notices through logger.
func LogNotifier(logger *slog.Logger) Notifier {
	return NotifierFunc(func(n Notice) {
		if n.Level == LevelError {
			logger.Warn("notice", "level", string(n.Level), "msg", n.Message)
			return
		}
		logger.Info("notice", "level", string(n.Level), "msg", n.Message)
	})
}

const (
	msgConnected     = "Connected to execution server"
	msgConnError     = "Connection error"
	msgExecError     = "Execution error occurred"
	msgNotConnected  = "Not connected to execution server"
	msgSubmitted     = "Code sent for execution"
	msgSendFailed    = "Failed to send code"
	msgEditorCleared = "Editor cleared"
)
