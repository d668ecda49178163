package corrector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dooshek/skyswitcher/internal/gesture"
	"github.com/dooshek/skyswitcher/internal/keyboard"
	"github.com/dooshek/skyswitcher/internal/layout"
	"github.com/dooshek/skyswitcher/internal/windowdetect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingOutput logs every call in order. Copying into fakeClipboard
// simulates the focused app reacting to Ctrl+C.
type recordingOutput struct {
	calls     []string
	clipboard *fakeClipboard
	selection string
	failOn    string
}

func (r *recordingOutput) record(call string) error {
	r.calls = append(r.calls, call)
	if r.failOn != "" && call == r.failOn {
		return errors.New("device gone")
	}
	return nil
}

func (r *recordingOutput) PressAndRelease(code keyboard.KeyCode) error {
	return r.record("tap " + code.String())
}

func (r *recordingOutput) Chord(codes ...keyboard.KeyCode) error {
	err := r.record("chord " + keyboard.FormatChord(codes))
	if err == nil && r.clipboard != nil && r.selection != "" &&
		keyboard.FormatChord(codes) == "KEY_LEFTCTRL+KEY_C" {
		r.clipboard.text = r.selection
	}
	return err
}

func (r *recordingOutput) TypeRune(ch rune) error {
	return r.record("type " + string(ch))
}

func (r *recordingOutput) ReleaseModifiers() error {
	return r.record("release")
}

func (r *recordingOutput) count(prefix string) int {
	n := 0
	for _, c := range r.calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

type fakeClipboard struct {
	text   string
	writes []string
}

func (c *fakeClipboard) ReadText() (string, error) {
	return c.text, nil
}

func (c *fakeClipboard) WriteText(text string) error {
	c.text = text
	c.writes = append(c.writes, text)
	return nil
}

type recordingObserver struct {
	mu      sync.Mutex
	applied []string
	failed  []error
}

func (o *recordingObserver) CorrectionApplied(mode gesture.Gesture, before, after string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.applied = append(o.applied, fmt.Sprintf("%s:%s->%s", mode, before, after))
}

func (o *recordingObserver) CorrectionFailed(mode gesture.Gesture, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed = append(o.failed, err)
}

func testPair(t *testing.T) *layout.Pair {
	t.Helper()
	us, err := layout.Builtin("us")
	require.NoError(t, err)
	ua, err := layout.Builtin("ua")
	require.NoError(t, err)
	return layout.NewPair(us, ua)
}

func newTestEngine(t *testing.T, out *recordingOutput, clip *fakeClipboard) *Engine {
	t.Helper()
	opts := DefaultOptions()
	opts.Layouts = testPair(t)
	var c Clipboard
	if clip != nil {
		c = clip
	}
	e, err := New(out, c, opts)
	require.NoError(t, err)
	e.sleep = func(time.Duration) {}
	return e
}

// script builds a timed key sequence.
type script struct {
	now    time.Time
	events []keyboard.KeyEvent
}

func newScript() *script {
	return &script{now: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (s *script) key(code keyboard.KeyCode, action keyboard.Action) *script {
	s.now = s.now.Add(40 * time.Millisecond)
	s.events = append(s.events, keyboard.KeyEvent{Code: code, Action: action, Time: s.now})
	return s
}

func (s *script) tap(codes ...keyboard.KeyCode) *script {
	for _, c := range codes {
		s.key(c, keyboard.Down).key(c, keyboard.Up)
	}
	return s
}

func (s *script) typeText(t *testing.T, l *layout.Layout, text string) *script {
	t.Helper()
	for _, r := range text {
		pos, ok := l.Position(r)
		require.True(t, ok, "no key for %q", r)
		if pos.Shift {
			s.key(keyboard.KeyLeftShift, keyboard.Down)
		}
		s.tap(pos.Code)
		if pos.Shift {
			s.key(keyboard.KeyLeftShift, keyboard.Up)
		}
	}
	return s
}

func (s *script) doubleTap() *script {
	return s.tap(keyboard.KeyRightShift, keyboard.KeyRightShift)
}

func (s *script) feed(e *Engine) {
	for _, ev := range s.events {
		e.Handle(ev)
	}
}

func TestFixLastWordOrder(t *testing.T) {
	out := &recordingOutput{}
	clip := &fakeClipboard{text: "keep me"}
	e := newTestEngine(t, out, clip)
	obs := &recordingObserver{}
	e.AddObserver(obs)

	newScript().typeText(t, e.opts.Layouts.Layout(layout.Primary), "ghbdsn").doubleTap().feed(e)

	want := []string{"release"}
	for i := 0; i < 6; i++ {
		want = append(want, "tap KEY_BACKSPACE")
	}
	for _, r := range "привіт" {
		want = append(want, "type "+string(r))
	}
	want = append(want, "chord KEY_LEFTMETA+KEY_SPACE")
	assert.Equal(t, want, out.calls)

	assert.Equal(t, "keep me", clip.text)
	assert.Equal(t, layout.Secondary, e.Active())
	assert.Equal(t, []string{"last_word:ghbdsn->привіт"}, obs.applied)
	assert.Equal(t, uint64(1), e.Stats().Corrections)
	assert.Equal(t, "ua", e.Stats().Layout)
}

func TestFixLastWordKeepsCase(t *testing.T) {
	out := &recordingOutput{}
	e := newTestEngine(t, out, nil)

	newScript().typeText(t, e.opts.Layouts.Layout(layout.Primary), "Ghbdsn").doubleTap().feed(e)

	assert.Equal(t, "type П", out.calls[7])
}

func TestFixLastWordRunsOnTriggerRelease(t *testing.T) {
	out := &recordingOutput{}
	e := newTestEngine(t, out, nil)

	s := newScript().typeText(t, e.opts.Layouts.Layout(layout.Primary), "ghbdsn").
		tap(keyboard.KeyRightShift).
		key(keyboard.KeyRightShift, keyboard.Down)
	s.feed(e)
	assert.Empty(t, out.calls)

	e.Handle(keyboard.KeyEvent{Code: keyboard.KeyRightShift, Action: keyboard.Up, Time: s.now})
	assert.NotEmpty(t, out.calls)
}

func TestGestureAbandonedWhenKeyPressedBeforeRelease(t *testing.T) {
	out := &recordingOutput{}
	e := newTestEngine(t, out, nil)

	newScript().typeText(t, e.opts.Layouts.Layout(layout.Primary), "ghbdsn").
		tap(keyboard.KeyRightShift).
		key(keyboard.KeyRightShift, keyboard.Down).
		tap(keyboard.KeyA).
		key(keyboard.KeyRightShift, keyboard.Up).
		feed(e)

	assert.Empty(t, out.calls)
}

func TestBoundaryBeforeGestureMeansNoCorrection(t *testing.T) {
	out := &recordingOutput{}
	e := newTestEngine(t, out, nil)

	newScript().typeText(t, e.opts.Layouts.Layout(layout.Primary), "ghbdsn").
		tap(keyboard.KeySpace).
		doubleTap().
		feed(e)

	assert.Empty(t, out.calls)
	assert.Equal(t, layout.Primary, e.Active())
}

func TestKeysBetweenTapsStillFire(t *testing.T) {
	out := &recordingOutput{}
	e := newTestEngine(t, out, nil)

	newScript().typeText(t, e.opts.Layouts.Layout(layout.Primary), "ghb").
		tap(keyboard.KeyRightShift).
		typeText(t, e.opts.Layouts.Layout(layout.Primary), "dsn").
		tap(keyboard.KeyRightShift).
		feed(e)

	assert.Equal(t, 6, out.count("tap KEY_BACKSPACE"))
	assert.Equal(t, 6, out.count("type "))
	assert.Equal(t, 1, out.count("chord"))
}

func TestBufferClearedAfterGesture(t *testing.T) {
	out := &recordingOutput{}
	e := newTestEngine(t, out, nil)

	newScript().typeText(t, e.opts.Layouts.Layout(layout.Primary), "ghbdsn").
		doubleTap().
		doubleTap().
		feed(e)

	assert.Equal(t, 6, out.count("tap KEY_BACKSPACE"))
	assert.Equal(t, 1, out.count("chord"))
}

func TestSecondCorrectionUsesFlippedLayout(t *testing.T) {
	out := &recordingOutput{}
	e := newTestEngine(t, out, nil)
	us := e.opts.Layouts.Layout(layout.Primary)

	s := newScript().typeText(t, us, "ghbdsn").doubleTap()
	// Same keys again, now typed while ua is assumed active.
	s.typeText(t, us, "ghbdsn").doubleTap()
	s.feed(e)

	assert.Equal(t, layout.Primary, e.Active())
	assert.Equal(t, "type g", out.calls[len(out.calls)-7])
}

func TestPhysicalLayoutSwitchIsTracked(t *testing.T) {
	out := &recordingOutput{}
	e := newTestEngine(t, out, nil)

	newScript().
		key(keyboard.KeyLeftMeta, keyboard.Down).
		tap(keyboard.KeySpace).
		key(keyboard.KeyLeftMeta, keyboard.Up).
		typeText(t, e.opts.Layouts.Layout(layout.Secondary), "руддщ").
		doubleTap().
		feed(e)

	assert.Equal(t, "type h", out.calls[6])
	assert.Equal(t, layout.Primary, e.Active())
}

func TestDisabledEngineIgnoresGestures(t *testing.T) {
	out := &recordingOutput{}
	e := newTestEngine(t, out, nil)
	e.SetEnabled(false)

	s := newScript().typeText(t, e.opts.Layouts.Layout(layout.Primary), "ghbdsn").doubleTap()
	s.feed(e)
	assert.Empty(t, out.calls)

	assert.True(t, e.Toggle())
	// The buffer was cleared by the ignored gesture.
	s.doubleTap()
	s.events = s.events[len(s.events)-4:]
	s.feed(e)
	assert.Empty(t, out.calls)
}

func TestInjectionFailureIsCountedAndReported(t *testing.T) {
	out := &recordingOutput{failOn: "type і"}
	e := newTestEngine(t, out, nil)
	obs := &recordingObserver{}
	e.AddObserver(obs)

	newScript().typeText(t, e.opts.Layouts.Layout(layout.Primary), "ghbdsn").doubleTap().feed(e)

	assert.Equal(t, "type і", out.calls[len(out.calls)-1])
	assert.Equal(t, 0, out.count("chord"))
	require.Len(t, obs.failed, 1)
	assert.ErrorContains(t, obs.failed[0], "device gone")
	assert.Equal(t, uint64(1), e.Stats().Failures)
	assert.Equal(t, layout.Primary, e.Active())
}

func TestFixSelectionTranslatesAndPastes(t *testing.T) {
	clip := &fakeClipboard{text: "old"}
	out := &recordingOutput{clipboard: clip, selection: "Ghbdsn cdsn"}
	e := newTestEngine(t, out, clip)

	newScript().
		key(keyboard.KeyRightCtrl, keyboard.Down).
		doubleTap().
		key(keyboard.KeyRightCtrl, keyboard.Up).
		feed(e)

	assert.Equal(t, []string{
		"release",
		"chord KEY_LEFTCTRL+KEY_C",
		"chord KEY_LEFTCTRL+KEY_V",
		"chord KEY_LEFTMETA+KEY_SPACE",
	}, out.calls)
	assert.Equal(t, "Привіт світ", clip.text)
	assert.Equal(t, layout.Secondary, e.Active())
}

func TestFixSelectionDetectsDirection(t *testing.T) {
	clip := &fakeClipboard{}
	out := &recordingOutput{clipboard: clip, selection: "руддщ"}
	e := newTestEngine(t, out, clip)

	_, after, err := e.FixSelection()
	require.NoError(t, err)
	assert.Equal(t, "hello", after)
	assert.Equal(t, "hello", clip.text)
}

func TestFixSelectionTimeoutRestoresClipboard(t *testing.T) {
	clip := &fakeClipboard{text: "precious"}
	out := &recordingOutput{clipboard: clip}
	e := newTestEngine(t, out, clip)
	obs := &recordingObserver{}
	e.AddObserver(obs)

	_, _, err := e.FixSelection()
	assert.ErrorIs(t, err, ErrClipboardTimeout)
	assert.Equal(t, "precious", clip.text)
	assert.Equal(t, 0, out.count("chord KEY_LEFTCTRL+KEY_V"))
	assert.Equal(t, 0, out.count("chord KEY_LEFTMETA"))

	e.execute(gesture.FixSelection, nil)
	assert.Empty(t, obs.failed)
	assert.Zero(t, e.Stats().Failures)
}

func TestFixSelectionWithNothingToTranslate(t *testing.T) {
	clip := &fakeClipboard{text: "precious"}
	out := &recordingOutput{clipboard: clip, selection: "12345"}
	e := newTestEngine(t, out, clip)

	before, after, err := e.FixSelection()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, "precious", clip.text)
	assert.Equal(t, 0, out.count("chord KEY_LEFTCTRL+KEY_V"))
	assert.Equal(t, 0, out.count("chord KEY_LEFTMETA"))
}

func TestFixSelectionDoesNotTouchWordBuffer(t *testing.T) {
	clip := &fakeClipboard{}
	out := &recordingOutput{clipboard: clip, selection: "ghbdsn"}
	e := newTestEngine(t, out, clip)

	newScript().typeText(t, e.opts.Layouts.Layout(layout.Primary), "abc").
		key(keyboard.KeyRightCtrl, keyboard.Down).
		doubleTap().
		key(keyboard.KeyRightCtrl, keyboard.Up).
		feed(e)

	assert.Equal(t, 0, out.count("tap KEY_BACKSPACE"))
	assert.Equal(t, 0, out.count("type "))
	assert.Equal(t, "привіт", clip.text)
}

func TestApplyKeepsActiveLayout(t *testing.T) {
	out := &recordingOutput{}
	e := newTestEngine(t, out, nil)
	newScript().typeText(t, e.opts.Layouts.Layout(layout.Primary), "ghbdsn").doubleTap().feed(e)
	require.Equal(t, layout.Secondary, e.Active())

	opts := DefaultOptions()
	opts.Gesture.Trigger = keyboard.KeyRightAlt
	e.Apply(opts)

	assert.Equal(t, layout.Secondary, e.Active())
	assert.Equal(t, "ua", e.Stats().Layout)
	assert.Equal(t, keyboard.KeyRightAlt, e.classifier.Config().Trigger)
}

func TestRunStopsOnCancelAndOnClosedInput(t *testing.T) {
	out := &recordingOutput{}
	e := newTestEngine(t, out, nil)

	events := make(chan keyboard.KeyEvent)
	updates := make(chan Options, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx, events, updates) }()

	opts := DefaultOptions()
	opts.Buffer.Limit = 3
	updates <- opts
	events <- keyboard.KeyEvent{Code: keyboard.KeyA, Action: keyboard.Down, Time: time.Now()}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	closed := make(chan keyboard.KeyEvent)
	close(closed)
	err := e.Run(context.Background(), closed, nil)
	assert.ErrorIs(t, err, ErrInputClosed)
}

func TestNewRequiresLayouts(t *testing.T) {
	_, err := New(&recordingOutput{}, nil, DefaultOptions())
	assert.Error(t, err)
}

type fakeWindows struct {
	app   string
	err   error
	calls *int
}

func (f fakeWindows) GetFocusedWindow() (*windowdetect.WindowInfo, error) {
	if f.calls != nil {
		*f.calls++
	}
	if f.err != nil {
		return nil, f.err
	}
	return &windowdetect.WindowInfo{AppName: f.app}, nil
}

func TestExcludedAppSkipsCorrection(t *testing.T) {
	out := &recordingOutput{}
	e := newTestEngine(t, out, nil)
	e.opts.ExcludedApps = []string{"kitty"}
	e.SetWindowDetector(fakeWindows{app: "Kitty"})

	newScript().typeText(t, e.opts.Layouts.Layout(layout.Primary), "ghbdsn").doubleTap().feed(e)

	assert.Empty(t, out.calls)
	assert.Equal(t, layout.Primary, e.Active())
	assert.Zero(t, e.Stats().Corrections)
}

func TestExcludedAppsIgnoredWhenDetectionFails(t *testing.T) {
	out := &recordingOutput{}
	e := newTestEngine(t, out, nil)
	e.opts.ExcludedApps = []string{"kitty"}
	e.SetWindowDetector(fakeWindows{err: errors.New("no display")})

	newScript().typeText(t, e.opts.Layouts.Layout(layout.Primary), "ghbdsn").doubleTap().feed(e)

	assert.Equal(t, 6, out.count("tap KEY_BACKSPACE"))
	assert.Equal(t, uint64(1), e.Stats().Corrections)
}

func TestWindowNotQueriedWithoutAWord(t *testing.T) {
	out := &recordingOutput{}
	e := newTestEngine(t, out, nil)
	e.opts.ExcludedApps = []string{"kitty"}
	calls := 0
	e.SetWindowDetector(fakeWindows{app: "firefox", calls: &calls})

	newScript().doubleTap().feed(e)
	assert.Zero(t, calls)
	assert.Empty(t, out.calls)

	newScript().typeText(t, e.opts.Layouts.Layout(layout.Primary), "ntcn").doubleTap().feed(e)
	assert.Equal(t, 1, calls)
}

func TestFixSelectionWaitsForSecondaryRelease(t *testing.T) {
	clip := &fakeClipboard{}
	out := &recordingOutput{clipboard: clip, selection: "ghbdsn"}
	e := newTestEngine(t, out, clip)

	newScript().
		key(keyboard.KeyRightCtrl, keyboard.Down).
		doubleTap().
		feed(e)
	assert.Empty(t, out.calls, "nothing is injected while right ctrl is held")

	e.Handle(keyboard.KeyEvent{Code: keyboard.KeyRightCtrl, Action: keyboard.Up, Time: time.Now()})
	assert.Equal(t, 1, out.count("chord KEY_LEFTMETA+KEY_SPACE"))
	assert.Equal(t, "привіт", clip.text)
}

func TestFixSelectionRunsWhenSecondaryReleasedFirst(t *testing.T) {
	clip := &fakeClipboard{}
	out := &recordingOutput{clipboard: clip, selection: "ghbdsn"}
	e := newTestEngine(t, out, clip)

	newScript().
		key(keyboard.KeyRightCtrl, keyboard.Down).
		tap(keyboard.KeyRightShift).
		key(keyboard.KeyRightShift, keyboard.Down).
		key(keyboard.KeyRightCtrl, keyboard.Up).
		feed(e)
	assert.Empty(t, out.calls, "trigger still held")

	e.Handle(keyboard.KeyEvent{Code: keyboard.KeyRightShift, Action: keyboard.Up, Time: time.Now()})
	assert.Equal(t, "привіт", clip.text)
}

func TestWrongLayoutBeliefCanBeCorrected(t *testing.T) {
	out := &recordingOutput{}
	e := newTestEngine(t, out, nil)
	obs := &recordingObserver{}
	e.AddObserver(obs)
	ua := e.opts.Layouts.Layout(layout.Secondary)

	// The desktop is on ua while the engine assumes us: the word comes back
	// unchanged.
	newScript().typeText(t, ua, "руддщ").doubleTap().feed(e)
	assert.Equal(t, []string{"last_word:hello->руддщ"}, obs.applied)

	// Both sides flipped with the chord, so the mismatch persists until the
	// user tells the engine where the desktop is.
	require.NoError(t, e.SetLayout("US"))
	assert.Equal(t, layout.Primary, e.Active())

	out.calls = nil
	newScript().typeText(t, e.opts.Layouts.Layout(layout.Primary), "ghbdsn").doubleTap().feed(e)
	assert.Equal(t, "last_word:ghbdsn->привіт", obs.applied[1])
	assert.Equal(t, layout.Secondary, e.Active())
}

func TestSetLayout(t *testing.T) {
	e := newTestEngine(t, &recordingOutput{}, nil)

	require.NoError(t, e.SetLayout("secondary"))
	assert.Equal(t, layout.Secondary, e.Active())
	assert.Equal(t, "ua", e.Stats().Layout)

	require.NoError(t, e.SetLayout(" us "))
	assert.Equal(t, layout.Primary, e.Active())

	e.SetActive(layout.Secondary)
	assert.Equal(t, layout.Secondary, e.Active())

	assert.ErrorIs(t, e.SetLayout("de"), ErrUnknownLayout)
	assert.ErrorIs(t, e.SetLayout(""), ErrUnknownLayout)
	assert.Equal(t, layout.Secondary, e.Active())
}
