package sim

import "log"

// LogHook traces kernel activity through a standard library logger. It
// satisfies Hook and can be registered on any Hookable kernel object.
type LogHook struct {
	*log.Logger
}

// NewLogHook creates a LogHook writing through logger.
func NewLogHook(logger *log.Logger) *LogHook {
	return &LogHook{Logger: logger}
}

// Func logs a one-line trace of the hook context.
func (h *LogHook) Func(ctx HookCtx) {
	h.Printf("[%s] %v", ctx.Pos.Name, ctx.Item)
}
