package windowmgr

import (
	"errors"
	"math"
	"sync"
	"testing"
)

// fakeWindow records the operations invoked on it.
type fakeWindow struct {
	mu          sync.Mutex
	role        Role
	shows       int
	hides       int
	focuses     int
	closes      int
	navigations []string
	alwaysOnTop []bool
	onClosed    func()
}

func (w *fakeWindow) Show() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.shows++
}

func (w *fakeWindow) Hide() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hides++
}

func (w *fakeWindow) Focus() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.focuses++
}

func (w *fakeWindow) Close() {
	w.mu.Lock()
	w.closes++
	onClosed := w.onClosed
	w.mu.Unlock()
	if onClosed != nil {
		onClosed()
	}
}

func (w *fakeWindow) Navigate(target string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.navigations = append(w.navigations, target)
}

func (w *fakeWindow) SetAlwaysOnTop(on bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.alwaysOnTop = append(w.alwaysOnTop, on)
}

// fakeFactory builds fakeWindows and remembers every one it created.
type fakeFactory struct {
	mu      sync.Mutex
	created []*fakeWindow
	fail    bool
}

func (f *fakeFactory) make(role Role, opts CreateOptions, onClosed func()) (Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("window creation unavailable")
	}
	w := &fakeWindow{role: role, onClosed: onClosed}
	f.created = append(f.created, w)
	return w, nil
}

type recordingNotifier struct {
	alwaysOnTop []bool
	zoomLevels  []int
}

func (n *recordingNotifier) AlwaysOnTopChanged(on bool) {
	n.alwaysOnTop = append(n.alwaysOnTop, on)
}

func (n *recordingNotifier) ZoomLevelChanged(pct int) {
	n.zoomLevels = append(n.zoomLevels, pct)
}

func newTestCoordinator(t *testing.T, policy Policy) (*Coordinator, *fakeFactory, *recordingNotifier) {
	t.Helper()
	factory := &fakeFactory{}
	notifier := &recordingNotifier{}
	return NewCoordinator(factory.make, policy, notifier), factory, notifier
}

func TestCreateIsIdempotentPerRole(t *testing.T) {
	c, factory, _ := newTestCoordinator(t, Policy{})

	first, err := c.Create(RoleMain, CreateOptions{})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	second, err := c.Create(RoleMain, CreateOptions{})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if first != second {
		t.Fatal("second Create for a role must return the existing handle")
	}
	if len(factory.created) != 1 {
		t.Fatalf("factory created %d windows, want 1", len(factory.created))
	}
	if factory.created[0].shows != 1 || factory.created[0].focuses != 1 {
		t.Fatalf("existing window shows=%d focuses=%d, want 1/1",
			factory.created[0].shows, factory.created[0].focuses)
	}
}

func TestCreateSettingsSecondTimeFocusesAndRenavigates(t *testing.T) {
	c, factory, _ := newTestCoordinator(t, Policy{})

	if _, err := c.Create(RoleSettings, CreateOptions{URL: "settings://general"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := c.Create(RoleSettings, CreateOptions{URL: "settings://hotkeys"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if len(factory.created) != 1 {
		t.Fatalf("factory created %d windows, want 1", len(factory.created))
	}
	w := factory.created[0]
	if w.focuses != 1 {
		t.Fatalf("focuses = %d, want 1", w.focuses)
	}
	if len(w.navigations) != 1 || w.navigations[0] != "settings://hotkeys" {
		t.Fatalf("navigations = %v, want [settings://hotkeys]", w.navigations)
	}
}

func TestCreateAuthPopupAlwaysRecreates(t *testing.T) {
	c, factory, _ := newTestCoordinator(t, Policy{})

	first, err := c.Create(RoleAuthPopup, CreateOptions{URL: "https://auth.example.com"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	second, err := c.Create(RoleAuthPopup, CreateOptions{URL: "https://auth.example.com"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if first == second {
		t.Fatal("auth popup must be recreated, not reused")
	}
	if factory.created[0].closes != 1 {
		t.Fatal("previous auth popup must be closed before recreating")
	}
	if got := c.Get(RoleAuthPopup); got != second {
		t.Fatal("Get should return the fresh popup")
	}
}

// closeHookWindow runs an extra hook whenever the handle closes, letting a
// test re-enter the coordinator at the exact point Close runs unlocked.
type closeHookWindow struct {
	fakeWindow
	onClose func()
}

func (w *closeHookWindow) Close() {
	w.fakeWindow.Close()
	if w.onClose != nil {
		w.onClose()
	}
}

func TestCreateAuthPopupRecreateKeepsConcurrentWinner(t *testing.T) {
	var (
		c       *Coordinator
		creates int
	)
	factory := func(role Role, opts CreateOptions, onClosed func()) (Window, error) {
		creates++
		w := &closeHookWindow{}
		w.role = role
		w.onClosed = onClosed
		return w, nil
	}
	c = NewCoordinator(factory, Policy{}, &recordingNotifier{})

	first, err := c.Create(RoleAuthPopup, CreateOptions{URL: "https://auth.example.com"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// While the old popup is closing, another caller creates a fresh one.
	var nested Window
	first.(*closeHookWindow).onClose = func() {
		w, err := c.Create(RoleAuthPopup, CreateOptions{URL: "https://auth.example.com"})
		if err != nil {
			t.Errorf("nested Create() error = %v", err)
			return
		}
		nested = w
	}

	got, err := c.Create(RoleAuthPopup, CreateOptions{URL: "https://auth.example.com"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if creates != 2 {
		t.Fatalf("factory calls = %d, want 2", creates)
	}
	if got != nested {
		t.Fatal("recreate must return the popup installed while the old one closed")
	}
	if c.Get(RoleAuthPopup) != nested {
		t.Fatal("Get should return the surviving popup, not an orphaned duplicate")
	}
}

func TestGetReturnsNilAfterNativeClose(t *testing.T) {
	c, factory, _ := newTestCoordinator(t, Policy{})

	if _, err := c.Create(RoleMain, CreateOptions{}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	factory.created[0].Close()

	if got := c.Get(RoleMain); got != nil {
		t.Fatal("handle must be cleared on the native closed event")
	}
}

func TestCreateFactoryFailure(t *testing.T) {
	factory := &fakeFactory{fail: true}
	c := NewCoordinator(factory.make, Policy{}, nil)

	if _, err := c.Create(RoleMain, CreateOptions{}); err == nil {
		t.Fatal("Create() should propagate factory errors")
	}
	if got := c.Get(RoleMain); got != nil {
		t.Fatal("failed create must not leave a handle behind")
	}
}

func TestHandleMainCloseHidesWhenPolicySaysSo(t *testing.T) {
	c, factory, _ := newTestCoordinator(t, Policy{HideMainOnClose: true})

	if _, err := c.Create(RoleMain, CreateOptions{}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := c.Create(RoleSettings, CreateOptions{}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := c.Create(RoleAuthPopup, CreateOptions{}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if proceed := c.HandleMainClose(); proceed {
		t.Fatal("close should be prevented and converted to hide")
	}
	main := factory.created[0]
	if main.hides != 1 {
		t.Fatalf("main hides = %d, want 1", main.hides)
	}
	if !c.HiddenToTray() {
		t.Fatal("coordinator should report hidden-to-tray")
	}
	if c.Get(RoleSettings) != nil || c.Get(RoleAuthPopup) != nil {
		t.Fatal("settings and auth popup must be force-closed with main")
	}
}

func TestHandleMainCloseProceedsWhenQuitting(t *testing.T) {
	c, _, _ := newTestCoordinator(t, Policy{HideMainOnClose: true})

	if _, err := c.Create(RoleMain, CreateOptions{}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	c.SetQuitting(true)

	if proceed := c.HandleMainClose(); !proceed {
		t.Fatal("close must proceed during shutdown")
	}
}

func TestHandleMainCloseProceedsWithoutHidePolicy(t *testing.T) {
	c, factory, _ := newTestCoordinator(t, Policy{HideMainOnClose: false})

	if _, err := c.Create(RoleMain, CreateOptions{}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if proceed := c.HandleMainClose(); !proceed {
		t.Fatal("close must proceed when the platform does not hide on close")
	}
	if factory.created[0].hides != 0 {
		t.Fatal("main must not be hidden when the close proceeds")
	}
}

func TestHideAndRestoreFromTray(t *testing.T) {
	c, factory, _ := newTestCoordinator(t, Policy{})

	if _, err := c.Create(RoleMain, CreateOptions{}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := c.Create(RoleQuickInput, CreateOptions{}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	c.HideToTray()
	main, quickInput := factory.created[0], factory.created[1]
	if main.hides != 1 || quickInput.hides != 1 {
		t.Fatalf("hides main=%d quickInput=%d, want 1/1", main.hides, quickInput.hides)
	}
	if !c.HiddenToTray() {
		t.Fatal("should report hidden-to-tray")
	}

	c.RestoreFromTray()
	if main.shows != 1 || main.focuses != 1 {
		t.Fatalf("restore shows=%d focuses=%d, want 1/1", main.shows, main.focuses)
	}
	if c.HiddenToTray() {
		t.Fatal("should no longer report hidden-to-tray")
	}
}

func TestRestoreFromTrayWithoutMainIsHarmless(t *testing.T) {
	c, _, _ := newTestCoordinator(t, Policy{})
	c.RestoreFromTray()
}

func TestAuthPopupSelfClosesOnFirstPartyNavigation(t *testing.T) {
	policy := Policy{FirstPartyHosts: []string{"example.com"}}
	c, factory, _ := newTestCoordinator(t, policy)

	if _, err := c.Create(RoleAuthPopup, CreateOptions{URL: "https://accounts.google.com"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	t.Run("third-party navigation keeps popup", func(t *testing.T) {
		c.NoteAuthNavigation("https://accounts.google.com/o/oauth2/consent")
		if c.Get(RoleAuthPopup) == nil {
			t.Fatal("popup must stay open during the external flow")
		}
	})

	t.Run("first-party navigation closes popup", func(t *testing.T) {
		c.NoteAuthNavigation("https://app.example.com/auth/callback?code=x")
		if c.Get(RoleAuthPopup) != nil {
			t.Fatal("popup must close after returning to a first-party host")
		}
		if factory.created[0].closes != 1 {
			t.Fatal("popup handle should have been closed")
		}
	})
}

func TestSetAlwaysOnTopNotifiesOnChangeOnly(t *testing.T) {
	c, factory, notifier := newTestCoordinator(t, Policy{})

	if _, err := c.Create(RoleMain, CreateOptions{}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	c.SetAlwaysOnTop(true)
	c.SetAlwaysOnTop(true)
	c.SetAlwaysOnTop(false)

	if got := notifier.alwaysOnTop; len(got) != 2 || !got[0] || got[1] {
		t.Fatalf("notifications = %v, want [true false]", got)
	}
	main := factory.created[0]
	if len(main.alwaysOnTop) != 3 {
		t.Fatalf("window received %d always-on-top calls, want 3", len(main.alwaysOnTop))
	}
}

func TestNewMainWindowInheritsAlwaysOnTop(t *testing.T) {
	c, factory, _ := newTestCoordinator(t, Policy{})

	c.SetAlwaysOnTop(true)
	if _, err := c.Create(RoleMain, CreateOptions{}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	main := factory.created[0]
	if len(main.alwaysOnTop) != 1 || !main.alwaysOnTop[0] {
		t.Fatalf("always-on-top calls = %v, want [true]", main.alwaysOnTop)
	}
}

func TestSanitizeZoomLevel(t *testing.T) {
	cases := []struct {
		name  string
		input float64
		want  int
	}{
		{"in range", 125, 125},
		{"lower bound", 50, 50},
		{"upper bound", 200, 200},
		{"below range clamps", 10, 50},
		{"above range clamps", 500, 200},
		{"NaN falls back to default", math.NaN(), 100},
		{"positive infinity clamps", math.Inf(1), 200},
		{"negative infinity clamps", math.Inf(-1), 50},
		{"fractional rounds", 99.6, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeZoomLevel(tc.input); got != tc.want {
				t.Fatalf("SanitizeZoomLevel(%v) = %d, want %d", tc.input, got, tc.want)
			}
		})
	}
}

func TestSetZoomLevelNotifiesOnChangeOnly(t *testing.T) {
	c, _, notifier := newTestCoordinator(t, Policy{})

	if got := c.SetZoomLevel(150); got != 150 {
		t.Fatalf("SetZoomLevel(150) = %d, want 150", got)
	}
	if got := c.SetZoomLevel(150.4); got != 150 {
		t.Fatalf("SetZoomLevel(150.4) = %d, want 150", got)
	}
	if got := c.SetZoomLevel(math.NaN()); got != 100 {
		t.Fatalf("SetZoomLevel(NaN) = %d, want 100", got)
	}

	if want := []int{150, 100}; len(notifier.zoomLevels) != 2 ||
		notifier.zoomLevels[0] != want[0] || notifier.zoomLevels[1] != want[1] {
		t.Fatalf("zoom notifications = %v, want %v", notifier.zoomLevels, want)
	}
}

func TestCloseAll(t *testing.T) {
	c, factory, _ := newTestCoordinator(t, Policy{})

	for _, role := range []Role{RoleMain, RoleSettings, RoleQuickInput} {
		if _, err := c.Create(role, CreateOptions{}); err != nil {
			t.Fatalf("Create(%s) error = %v", role, err)
		}
	}
	c.CloseAll()

	for _, w := range factory.created {
		if w.closes != 1 {
			t.Fatalf("window %s closes = %d, want 1", w.role, w.closes)
		}
	}
	for _, role := range Roles {
		if c.Get(role) != nil {
			t.Fatalf("Get(%s) should be nil after CloseAll", role)
		}
	}
}

func TestCreateRejectsUnknownRole(t *testing.T) {
	c, _, _ := newTestCoordinator(t, Policy{})
	if _, err := c.Create(Role("popup"), CreateOptions{}); err == nil {
		t.Fatal("Create() should reject unknown roles")
	}
}
