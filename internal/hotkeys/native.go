package hotkeys

import (
	"log/slog"
	"sync"
	"time"

	"golang.design/x/hotkey"
)

// keyRepeatDebounce suppresses OS key-repeat events so holding the
// accelerator down fires the action once.
const keyRepeatDebounce = 250 * time.Millisecond

// keyByToken maps normalized key tokens to the native key codes.
// INVARIANT: immutable after init.
var keyByToken = map[string]hotkey.Key{
	"SPACE":  hotkey.KeySpace,
	"TAB":    hotkey.KeyTab,
	"ENTER":  hotkey.KeyReturn,
	"ESC":    hotkey.KeyEscape,
	"DELETE": hotkey.KeyDelete,
	"LEFT":   hotkey.KeyLeft,
	"RIGHT":  hotkey.KeyRight,
	"UP":     hotkey.KeyUp,
	"DOWN":   hotkey.KeyDown,
	"0":      hotkey.Key0,
	"1":      hotkey.Key1,
	"2":      hotkey.Key2,
	"3":      hotkey.Key3,
	"4":      hotkey.Key4,
	"5":      hotkey.Key5,
	"6":      hotkey.Key6,
	"7":      hotkey.Key7,
	"8":      hotkey.Key8,
	"9":      hotkey.Key9,
	"A":      hotkey.KeyA,
	"B":      hotkey.KeyB,
	"C":      hotkey.KeyC,
	"D":      hotkey.KeyD,
	"E":      hotkey.KeyE,
	"F":      hotkey.KeyF,
	"G":      hotkey.KeyG,
	"H":      hotkey.KeyH,
	"I":      hotkey.KeyI,
	"J":      hotkey.KeyJ,
	"K":      hotkey.KeyK,
	"L":      hotkey.KeyL,
	"M":      hotkey.KeyM,
	"N":      hotkey.KeyN,
	"O":      hotkey.KeyO,
	"P":      hotkey.KeyP,
	"Q":      hotkey.KeyQ,
	"R":      hotkey.KeyR,
	"S":      hotkey.KeyS,
	"T":      hotkey.KeyT,
	"U":      hotkey.KeyU,
	"V":      hotkey.KeyV,
	"W":      hotkey.KeyW,
	"X":      hotkey.KeyX,
	"Y":      hotkey.KeyY,
	"Z":      hotkey.KeyZ,
	"F1":     hotkey.KeyF1,
	"F2":     hotkey.KeyF2,
	"F3":     hotkey.KeyF3,
	"F4":     hotkey.KeyF4,
	"F5":     hotkey.KeyF5,
	"F6":     hotkey.KeyF6,
	"F7":     hotkey.KeyF7,
	"F8":     hotkey.KeyF8,
	"F9":     hotkey.KeyF9,
	"F10":    hotkey.KeyF10,
	"F11":    hotkey.KeyF11,
	"F12":    hotkey.KeyF12,
}

// nativeRegistration holds one live OS registration and its listener.
type nativeRegistration struct {
	hk     *hotkey.Hotkey
	stopCh chan struct{}
	action ActionID
}

// NativeBackend registers shortcuts directly with the OS global-shortcut
// facility. Rebind never fails as a whole: per-binding conflicts (another
// application already owns the combination) are logged and leave that single
// binding inert.
type NativeBackend struct {
	mu     sync.Mutex
	active []*nativeRegistration
}

// NewNativeBackend creates an empty native backend.
func NewNativeBackend() *NativeBackend {
	return &NativeBackend{}
}

// Rebind replaces the registered set. Existing registrations are dropped
// first so that an accelerator moving between actions never conflicts with
// its own previous registration.
func (b *NativeBackend) Rebind(bindings []Binding) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.unregisterAllLocked()
	for _, binding := range bindings {
		reg, err := registerNative(binding)
		if err != nil {
			// Conflict with another application's binding: inert until rebound.
			slog.Warn("[HOTKEY] native registration failed",
				"action", binding.Action,
				"accelerator", binding.Accel.Normalized(),
				"error", err)
			continue
		}
		b.active = append(b.active, reg)
		slog.Debug("[HOTKEY] native registration active",
			"action", binding.Action, "accelerator", binding.Accel.Normalized())
	}
	return nil
}

// Close unregisters everything.
func (b *NativeBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unregisterAllLocked()
	return nil
}

func (b *NativeBackend) unregisterAllLocked() {
	for _, reg := range b.active {
		close(reg.stopCh)
		if err := reg.hk.Unregister(); err != nil {
			slog.Warn("[HOTKEY] native unregister failed", "action", reg.action, "error", err)
		}
	}
	b.active = nil
}

func registerNative(binding Binding) (*nativeRegistration, error) {
	key, ok := keyByToken[binding.Accel.Key()]
	if !ok {
		return nil, &unsupportedKeyError{token: binding.Accel.Key()}
	}

	hk := hotkey.New(nativeModifiers(binding.Accel), key)
	if err := hk.Register(); err != nil {
		return nil, err
	}

	reg := &nativeRegistration{
		hk:     hk,
		stopCh: make(chan struct{}),
		action: binding.Action,
	}
	go listenNative(hk, reg.stopCh, binding.OnTrigger)
	return reg, nil
}

func listenNative(hk *hotkey.Hotkey, stopCh <-chan struct{}, onTrigger func()) {
	var lastKeydown time.Time
	for {
		select {
		case <-stopCh:
			return
		case _, ok := <-hk.Keydown():
			if !ok {
				return
			}
			now := time.Now()
			if now.Sub(lastKeydown) < keyRepeatDebounce {
				continue
			}
			lastKeydown = now
			if onTrigger != nil {
				onTrigger()
			}
		}
	}
}

type unsupportedKeyError struct {
	token string
}

func (e *unsupportedKeyError) Error() string {
	return "key " + e.token + " has no native key code"
}
