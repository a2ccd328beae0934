package sim

// HookPos identifies a point in the kernel's execution at which hooks may
// be invoked.
type HookPos struct {
	Name string
}

// HookCtx carries the information available at the site a hook fires.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   interface{}
	Detail interface{}
}

// Hookable is implemented by kernel objects that accept Hooks.
type Hookable interface {
	AcceptHook(hook Hook)
}

// Hook is invoked by a Hookable at one or more HookPos.
type Hook interface {
	Func(ctx HookCtx)
}

// HookPosBeforeTick marks a scheduler about to drive a tick.
var HookPosBeforeTick = &HookPos{Name: "Before Tick"}

// HookPosAfterTick marks a scheduler having finished a tick.
var HookPosAfterTick = &HookPos{Name: "After Tick"}

// HookPosInputSent marks the ticker handing an Input to update_component.
var HookPosInputSent = &HookPos{Name: "Input Sent"}

// HookPosOutputReceived marks the ticker receiving an Output for propagation.
var HookPosOutputReceived = &HookPos{Name: "Output Received"}

// HookPosWakeScheduled marks a component being added to the wake queue.
var HookPosWakeScheduled = &HookPos{Name: "Wake Scheduled"}

// HookableBase implements Hookable and provides InvokeHook for embedders.
type HookableBase struct {
	hooks []Hook
}

// NewHookableBase creates an empty HookableBase.
func NewHookableBase() *HookableBase {
	return &HookableBase{hooks: make([]Hook, 0)}
}

// AcceptHook registers a hook.
func (h *HookableBase) AcceptHook(hook Hook) {
	h.hooks = append(h.hooks, hook)
}

// InvokeHook runs every registered hook with ctx.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hooks {
		hook.Func(ctx)
	}
}
