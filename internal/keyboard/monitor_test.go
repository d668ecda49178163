package keyboard

import (
	"syscall"
	"testing"
	"time"

	"github.com/MarinX/keylogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeSource(paths ...string) (*Source, []chan keylogger.InputEvent) {
	s := newSource()
	s.paths = paths
	inputs := make([]chan keylogger.InputEvent, len(paths))
	for i := range inputs {
		inputs[i] = make(chan keylogger.InputEvent)
	}
	s.start(inputs)
	return s, inputs
}

func receive(t *testing.T, s *Source) KeyEvent {
	t.Helper()
	select {
	case ev, ok := <-s.Events():
		require.True(t, ok, "stream closed early")
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event forwarded")
	}
	return KeyEvent{}
}

func requireClosed(t *testing.T, s *Source) {
	t.Helper()
	select {
	case ev, ok := <-s.Events():
		require.False(t, ok, "unexpected event %s", ev)
	case <-time.After(time.Second):
		t.Fatal("stream not closed")
	}
}

func TestSourceMergesDevicesInArrivalOrder(t *testing.T) {
	s, in := fakeSource("/dev/input/event3", "/dev/input/event7")
	first, second := in[0], in[1]

	first <- keylogger.InputEvent{Type: keylogger.EvSyn}
	first <- keylogger.InputEvent{Time: syscall.Timeval{Sec: 100}, Type: keylogger.EvKey, Code: uint16(KeyA), Value: 1}
	ev := receive(t, s)
	assert.Equal(t, KeyA, ev.Code)
	assert.Equal(t, Down, ev.Action)
	assert.Equal(t, "/dev/input/event3", ev.Device)
	assert.Equal(t, time.Unix(100, 0), ev.Time)

	before := time.Now()
	second <- keylogger.InputEvent{Type: keylogger.EvKey, Code: uint16(KeyZ), Value: 2}
	ev = receive(t, s)
	assert.Equal(t, KeyZ, ev.Code)
	assert.Equal(t, Repeat, ev.Action)
	assert.Equal(t, "/dev/input/event7", ev.Device)
	assert.False(t, ev.Time.Before(before), "zero kernel timestamp replaced with arrival time")

	first <- keylogger.InputEvent{Time: syscall.Timeval{Sec: 101}, Type: keylogger.EvKey, Code: uint16(KeyA), Value: 0}
	ev = receive(t, s)
	assert.Equal(t, Up, ev.Action)
	assert.Equal(t, "/dev/input/event3", ev.Device)

	close(first)
	second <- keylogger.InputEvent{Type: keylogger.EvKey, Code: uint16(KeySpace), Value: 1}
	assert.Equal(t, KeySpace, receive(t, s).Code, "other device keeps flowing after one ends")

	close(second)
	requireClosed(t, s)
}

func TestSourceDrainsReadersAfterClose(t *testing.T) {
	s, in := fakeSource("/dev/input/event3", "/dev/input/event7")
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	sent := make(chan struct{})
	go func() {
		for i := 0; i < 2*cap(s.events); i++ {
			in[0] <- keylogger.InputEvent{Type: keylogger.EvKey, Code: uint16(KeyA), Value: 1}
		}
		close(sent)
	}()
	select {
	case <-sent:
	case <-time.After(time.Second):
		t.Fatal("reader blocked after Close")
	}

	close(in[0])
	close(in[1])
	requireClosed(t, s)
}
