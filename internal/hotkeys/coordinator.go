package hotkeys

import (
	"fmt"
	"log/slog"
	"sync"

	"webdock/internal/platform"
)

// Binding pairs an action with its accelerator and trigger callback for
// backend registration.
type Binding struct {
	Action    ActionID
	Accel     Accelerator
	OnTrigger func()
}

// Backend registers the active shortcut set with one OS mechanism.
//
// Rebind replaces the whole active set in one call. The native backend
// registers each binding individually; the bus backend issues a single
// session-scoped bind request. Per-binding conflicts are logged inside the
// backend and leave that binding inert; only mechanism-level failures return
// an error, in which case the backend's previous set stays registered.
type Backend interface {
	Rebind(bindings []Binding) error
	Close() error
}

// Store is the persisted hotkey state collaborator. Implemented by the
// settings store; tests substitute a map-backed fake.
type Store interface {
	HotkeyEnabled(id string) bool
	Accelerator(id string) string
	SetHotkeyEnabled(id string, enabled bool) error
	SetAccelerator(id string, accelerator string) error
}

// actionState is the per-action registration state machine payload.
type actionState struct {
	enabled bool
	accel   Accelerator
}

// Coordinator owns the five logical hotkey actions and keeps the backend's
// registered set in sync with them. All mutations happen under mu, so a
// rebind is atomic from the point of view of other components: they observe
// either the old or the new registration, never a half-applied one.
type Coordinator struct {
	plan    platform.Plan
	backend Backend
	store   Store
	// onAction receives triggered action ids. Called from backend goroutines.
	onAction func(ActionID)

	mu      sync.Mutex
	actions map[ActionID]*actionState
	started bool
}

// NewCoordinator creates a coordinator for the given plan. backend may be nil
// only when plan.Mode is ModeDisabled.
func NewCoordinator(plan platform.Plan, backend Backend, store Store, onAction func(ActionID)) *Coordinator {
	return &Coordinator{
		plan:     plan,
		backend:  backend,
		store:    store,
		onAction: onAction,
		actions:  map[ActionID]*actionState{},
	}
}

// Plan returns the registration plan the coordinator was built with.
// Exposed for diagnostics; the Disabled mode is visible here, not an error.
func (c *Coordinator) Plan() platform.Plan { return c.plan }

// Start loads persisted per-action state and performs the initial
// registration. Registration failures are logged and never returned: a
// conflicting binding stays inert until the user rebinds it.
func (c *Coordinator) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true

	for _, id := range ActionIDs {
		state := &actionState{enabled: true}
		if c.store != nil {
			state.enabled = c.store.HotkeyEnabled(string(id))
		}
		spec := ""
		if c.store != nil {
			spec = c.store.Accelerator(string(id))
		}
		if spec == "" {
			spec = DefaultAccelerator(id)
		}
		accel, err := ParseAccelerator(spec)
		if err != nil {
			slog.Warn("[HOTKEY] stored accelerator invalid, falling back to default",
				"action", id, "accelerator", spec, "error", err)
			accel, err = ParseAccelerator(DefaultAccelerator(id))
			if err != nil {
				// Defaults are compile-time constants; a parse failure here is a bug.
				slog.Error("[HOTKEY] default accelerator invalid", "action", id, "error", err)
				continue
			}
		}
		state.accel = accel
		c.actions[id] = state
	}

	if c.plan.Mode == platform.ModeDisabled {
		slog.Info("[HOTKEY] global shortcuts disabled for this session",
			"desktopEnvironment", c.plan.Bus.DesktopEnvironment)
		return
	}
	c.rebindLocked()
}

// Stop unregisters everything and closes the backend.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return
	}
	c.started = false
	if c.backend == nil {
		return
	}
	if err := c.backend.Rebind(nil); err != nil {
		slog.Warn("[HOTKEY] unregister on stop failed", "error", err)
	}
	if err := c.backend.Close(); err != nil {
		slog.Warn("[HOTKEY] backend close failed", "error", err)
	}
}

// Actions returns a snapshot of all actions in stable order.
func (c *Coordinator) Actions() []Action {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Action, 0, len(ActionIDs))
	for _, id := range ActionIDs {
		state, ok := c.actions[id]
		if !ok {
			continue
		}
		out = append(out, Action{
			ID:                 id,
			Enabled:            state.enabled,
			Accelerator:        state.accel.Normalized(),
			DefaultAccelerator: DefaultAccelerator(id),
		})
	}
	return out
}

// SetEnabled enables or disables one action, rebinds, and persists the flag.
// Persistence happens after mu is released: the settings store notifies its
// listeners synchronously, and a listener may call back into this
// coordinator.
func (c *Coordinator) SetEnabled(id ActionID, enabled bool) error {
	if !ValidActionID(id) {
		return fmt.Errorf("unknown hotkey action %q", id)
	}

	c.mu.Lock()
	state, ok := c.actions[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("hotkey action %q not initialized", id)
	}
	if state.enabled == enabled {
		c.mu.Unlock()
		return nil
	}
	state.enabled = enabled
	c.rebindLocked()
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.SetHotkeyEnabled(string(id), enabled); err != nil {
			slog.Warn("[HOTKEY] failed to persist enabled flag", "action", id, "error", err)
		}
	}
	return nil
}

// SetAccelerator validates and applies a new accelerator for one action.
// A parse failure is returned to the caller (the settings UI shows it); a
// registration failure is logged and the previous working set is restored.
func (c *Coordinator) SetAccelerator(id ActionID, spec string) error {
	if !ValidActionID(id) {
		return fmt.Errorf("unknown hotkey action %q", id)
	}
	accel, err := ParseAccelerator(spec)
	if err != nil {
		return err
	}

	c.mu.Lock()
	state, ok := c.actions[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("hotkey action %q not initialized", id)
	}

	previous := state.accel
	state.accel = accel
	if !c.rebindLocked() {
		// Retain the previous working binding when the new set cannot be
		// registered as a whole.
		state.accel = previous
		c.rebindLocked()
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	// Persist outside mu, same as SetEnabled: store listeners run on this
	// goroutine and may re-enter the coordinator.
	if c.store != nil {
		if err := c.store.SetAccelerator(string(id), accel.Normalized()); err != nil {
			slog.Warn("[HOTKEY] failed to persist accelerator", "action", id, "error", err)
		}
	}
	return nil
}

// rebindLocked pushes the current enabled set to the backend. Returns false
// when the backend rejected the set as a whole. Caller must hold mu.
func (c *Coordinator) rebindLocked() bool {
	if !c.started || c.backend == nil || c.plan.Mode == platform.ModeDisabled {
		return true
	}

	bindings := make([]Binding, 0, len(ActionIDs))
	for _, id := range ActionIDs {
		state, ok := c.actions[id]
		if !ok || !state.enabled || state.accel.IsZero() {
			continue
		}
		action := id
		bindings = append(bindings, Binding{
			Action: action,
			Accel:  state.accel,
			OnTrigger: func() {
				if c.onAction != nil {
					c.onAction(action)
				}
			},
		})
	}

	if err := c.backend.Rebind(bindings); err != nil {
		slog.Warn("[HOTKEY] rebind failed, keeping previous registration",
			"mode", c.plan.Mode, "error", err)
		return false
	}
	slog.Debug("[HOTKEY] rebind applied", "mode", c.plan.Mode, "count", len(bindings))
	return true
}
