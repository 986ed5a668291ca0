package websocket

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(h *Hub, buf int) *Client {
	return &Client{
		hub:  h,
		send: make(chan []byte, buf),
	}
}

// waitFor вычитывает фид, пока не придёт сообщение с маркером
func waitFor(t *testing.T, ch chan []byte, marker string) {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg, ok := <-ch:
			require.True(t, ok, "feed closed before %q arrived", marker)
			if strings.Contains(string(msg), marker) {
				return
			}
		case <-deadline:
			t.Fatalf("no %q message within deadline", marker)
		}
	}
}

// TestBroadcast_NoClient рассылка до первого подключения теряет
// сообщение, но не роняет хаб
func TestBroadcast_NoClient(t *testing.T) {
	h := NewHub()
	go h.Run()

	h.BroadcastVerdict(map[string]string{"id": "before-any-client"})

	// даём хабу обработать рассылку без клиента
	time.Sleep(50 * time.Millisecond)

	c := newTestClient(h, 4)
	h.register <- c

	h.BroadcastVerdict(map[string]string{"id": "marker-after-connect"})
	waitFor(t, c.send, "marker-after-connect")
}

// TestBroadcast_AfterDisconnect рассылка после отключения клиента
// не пишет в его канал и не мешает следующему подключению
func TestBroadcast_AfterDisconnect(t *testing.T) {
	h := NewHub()
	go h.Run()

	c := newTestClient(h, 4)
	h.register <- c
	h.unregister <- c

	h.BroadcastVerdict(map[string]string{"id": "ghost"})
	time.Sleep(50 * time.Millisecond)

	d := newTestClient(h, 4)
	h.register <- d

	h.BroadcastVerdict(map[string]string{"id": "marker-second-client"})
	waitFor(t, d.send, "marker-second-client")

	select {
	case msg := <-c.send:
		t.Fatalf("disconnected client got message %s", msg)
	default:
	}
}

// TestBroadcast_SlowClient невычитывающий клиент отключается,
// его канал закрывается ровно один раз, хаб продолжает работать
func TestBroadcast_SlowClient(t *testing.T) {
	h := NewHub()
	go h.Run()

	c := newTestClient(h, 1)
	c.send <- []byte("plug") // буфер занят, доставка невозможна
	h.register <- c

	h.BroadcastVerdict(map[string]string{"id": "overflow"})
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, "plug", string(<-c.send))
	_, ok := <-c.send
	assert.False(t, ok, "slow client channel must be closed")

	// рассылка после закрытия уходит в пустоту, без паники
	h.BroadcastVerdict(map[string]string{"id": "into-the-void"})
	time.Sleep(50 * time.Millisecond)

	d := newTestClient(h, 4)
	h.register <- d

	h.BroadcastVerdict(map[string]string{"id": "marker-after-reset"})
	waitFor(t, d.send, "marker-after-reset")
}

// TestUnregister_StaleClient запоздавший unregister старого клиента
// не отключает нового
func TestUnregister_StaleClient(t *testing.T) {
	h := NewHub()
	go h.Run()

	c := newTestClient(h, 4)
	d := newTestClient(h, 4)

	h.register <- c
	h.register <- d
	h.unregister <- c

	h.BroadcastVerdict(map[string]string{"id": "marker-current-client"})
	waitFor(t, d.send, "marker-current-client")
}
