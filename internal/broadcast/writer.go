package broadcast

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/chatrelay/internal/domain"
)

const (
	writeDeadline    = 5 * time.Second
	controlDeadline  = time.Second
	DefaultQueueSize = 16
)

// Writer owns all data writes to one WebSocket connection and implements domain.Peer.
// Control frames (ping, close) go through WriteControl, which gorilla allows concurrently.
type Writer struct {
	connection  *websocket.Conn
	clock       clockwork.Clock
	sendChannel chan []byte
	doneChannel chan struct{}
	stopOnce    sync.Once
	closed      atomic.Bool
	wg          sync.WaitGroup
}

// NewWriter starts the write goroutine for connection. queueSize bounds the outbound
// buffer; values below one use DefaultQueueSize.
func NewWriter(connection *websocket.Conn, clock clockwork.Clock, queueSize int) *Writer {
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	w := &Writer{
		connection:  connection,
		clock:       clock,
		sendChannel: make(chan []byte, queueSize),
		doneChannel: make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

func (w *Writer) run() {
	defer w.wg.Done()

	for {
		select {
		case msg := <-w.sendChannel:
			_ = w.connection.SetWriteDeadline(w.clock.Now().Add(writeDeadline))
			if err := w.connection.WriteMessage(websocket.TextMessage, msg); err != nil {
				// Closing the socket unblocks the reader, which then disconnects the peer.
				w.closed.Store(true)
				_ = w.connection.Close()
				return
			}
		case <-w.doneChannel:
			return
		}
	}
}

// Send enqueues data without blocking.
func (w *Writer) Send(data []byte) error {
	if w.closed.Load() {
		return domain.ErrPeerClosed
	}
	select {
	case w.sendChannel <- data:
		return nil
	default:
		return domain.ErrSendQueueFull
	}
}

// Ping writes a transport-level ping frame.
func (w *Writer) Ping() error {
	if w.closed.Load() {
		return domain.ErrPeerClosed
	}
	return w.connection.WriteControl(websocket.PingMessage, nil, w.clock.Now().Add(controlDeadline))
}

// OnPong installs fn as the pong handler. It must be called before the read loop starts.
func (w *Writer) OnPong(fn func()) {
	w.connection.SetPongHandler(func(string) error {
		fn()
		return nil
	})
}

// Close sends a normal-closure frame with reason, then closes the socket.
func (w *Writer) Close(reason string) {
	w.stopOnce.Do(func() {
		w.closed.Store(true)
		close(w.doneChannel)

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		_ = w.connection.WriteControl(websocket.CloseMessage, closeMsg, w.clock.Now().Add(controlDeadline))
		_ = w.connection.Close()
	})
	w.wg.Wait()
}

// Terminate drops the socket without a close frame.
func (w *Writer) Terminate() {
	w.stopOnce.Do(func() {
		w.closed.Store(true)
		close(w.doneChannel)
		_ = w.connection.Close()
	})
	w.wg.Wait()
}

func (w *Writer) RemoteAddr() string {
	return w.connection.RemoteAddr().String()
}
