package websocket_client

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/SkylerRankin/netcheck/internal/types"
)

const (
	bufferSize   = 10
	writeTimeout = 10 * time.Second
)

// Broadcaster pushes every stored record to the connected dashboard clients.
type Broadcaster interface {
	Listen(context.Context)
	HandleConnection(w http.ResponseWriter, r *http.Request) error
	CycleCompleted(record types.Record, err error)
	Clients() int
	Shutdown() error
}

var _ Broadcaster = &broadcaster{}

type broadcaster struct {
	log         *slog.Logger
	upgrader    websocket.Upgrader
	connections map[*websocket.Conn]bool
	broadcast   chan []byte
	register    chan *websocket.Conn
	unregister  chan *websocket.Conn
	count       chan int
	done        chan struct{}
}

func NewBroadcaster(log *slog.Logger) Broadcaster {
	return &broadcaster{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections: make(map[*websocket.Conn]bool),
		broadcast:   make(chan []byte, bufferSize),
		register:    make(chan *websocket.Conn, bufferSize),
		unregister:  make(chan *websocket.Conn, bufferSize),
		count:       make(chan int),
		done:        make(chan struct{}),
	}
}

// Listen owns the connection set until ctx is cancelled. All registration and
// writes happen on this goroutine.
func (b *broadcaster) Listen(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			b.closeAll()
			return
		case conn := <-b.register:
			b.log.Info("registered connection", "address", conn.RemoteAddr().String())
			b.connections[conn] = true
		case conn := <-b.unregister:
			if _, ok := b.connections[conn]; ok {
				b.log.Info("unregistered connection", "address", conn.RemoteAddr().String())
				delete(b.connections, conn)
				conn.Close()
			}
		case b.count <- len(b.connections):
		case message := <-b.broadcast:
			for conn := range b.connections {
				conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					b.log.Info("broadcast message failed", "address", conn.RemoteAddr().String(), "err", err)
					delete(b.connections, conn)
					conn.Close()
				}
			}
		}
	}
}

// HandleConnection upgrades the request and hands the connection to Listen.
// Once the broadcaster has stopped, new connections are closed straight away.
func (b *broadcaster) HandleConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return errors.Wrap(err, "failed to upgrade http connection to websocket")
	}

	select {
	case <-b.done:
		conn.Close()
		return nil
	default:
	}

	select {
	case b.register <- conn:
	case <-b.done:
		conn.Close()
		return nil
	}
	go b.drain(conn)
	return nil
}

// drain discards client messages so control frames are processed, and
// unregisters the connection once the client goes away.
func (b *broadcaster) drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.NextReader(); err != nil {
			select {
			case b.unregister <- conn:
			case <-b.done:
			}
			return
		}
	}
}

// CycleCompleted queues a stored record for every client. Unstored records
// are not pushed, and a full queue drops the message rather than stalling the
// cycle.
func (b *broadcaster) CycleCompleted(record types.Record, err error) {
	if err != nil {
		return
	}
	message, err := json.Marshal(record)
	if err != nil {
		b.log.Error("failed to marshal record", "err", err)
		return
	}
	select {
	case b.broadcast <- message:
	default:
		b.log.Warn("broadcast queue full, dropping record", "timestamp", record.Timestamp)
	}
}

// Clients reports the number of registered connections, or 0 once the
// broadcaster has stopped.
func (b *broadcaster) Clients() int {
	select {
	case n := <-b.count:
		return n
	case <-b.done:
		return 0
	}
}

func (b *broadcaster) closeAll() {
	for conn := range b.connections {
		conn.Close()
		delete(b.connections, conn)
	}
}

// Shutdown waits for Listen to return. Cancel the Listen context first.
func (b *broadcaster) Shutdown() error {
	select {
	case <-b.done:
		return nil
	case <-time.After(writeTimeout):
		return errors.New("timed out waiting for websocket broadcaster to stop")
	}
}
