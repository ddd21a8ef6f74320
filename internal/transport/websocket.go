// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// LevelsPath is the WebSocket endpoint serving meter states.
const LevelsPath = "/levels"

const writeWait = time.Second

// wsMessage is an encoded state numbered in Send order.
type wsMessage struct {
	seq  uint64
	data []byte
}

// WebSocketTransport serves meter states to WebSocket clients. Every Send
// is broadcast as one JSON text message; new clients first receive the
// most recent message. A client never receives a message older than one
// it already got.
type WebSocketTransport struct {
	upgrader websocket.Upgrader
	listener net.Listener
	server   *http.Server

	// clients maps each connection to the sequence number of the newest
	// message written to it.
	clients   map[*websocket.Conn]uint64
	clientsMu sync.Mutex
	seq       uint64
	last      wsMessage

	broadcast chan wsMessage
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewWebSocketTransport listens on addr and starts serving LevelsPath.
func NewWebSocketTransport(addr string) (*WebSocketTransport, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	wst := &WebSocketTransport{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		listener:  ln,
		clients:   make(map[*websocket.Conn]uint64),
		broadcast: make(chan wsMessage, 256),
		done:      make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(LevelsPath, wst.handleWebSocket)
	wst.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	wst.wg.Add(2)
	go func() {
		defer wst.wg.Done()
		logger.Infof("WebSocket server listening on ws://%s%s", ln.Addr(), LevelsPath)
		if err := wst.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("WebSocket server error: %v", err)
		}
	}()
	go wst.handleBroadcasts()

	return wst, nil
}

// Addr returns the address the server is listening on.
func (wst *WebSocketTransport) Addr() net.Addr {
	return wst.listener.Addr()
}

// checkOrigin allows same-origin, localhost and private-network origins.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		logger.Warnf("Rejected WebSocket connection: invalid origin %q", origin)
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}

	requestHost := r.Host
	if h, _, err := net.SplitHostPort(requestHost); err == nil {
		requestHost = h
	}
	if host == requestHost {
		return true
	}

	if ip := net.ParseIP(host); ip != nil && (ip.IsLoopback() || ip.IsPrivate()) {
		return true
	}

	logger.Warnf("Rejected WebSocket connection from origin %q", origin)
	return false
}

func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("WebSocket upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	if wst.last.data != nil {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, wst.last.data); err != nil {
			wst.clientsMu.Unlock()
			conn.Close()
			return
		}
	}
	wst.clients[conn] = wst.last.seq
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	logger.Infof("Client connected, total: %d", total)

	// Clients only listen; a read error means they went away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				wst.removeClient(conn)
				return
			}
		}
	}()
}

func (wst *WebSocketTransport) removeClient(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[conn]
	delete(wst.clients, conn)
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	if ok {
		conn.Close()
		logger.Infof("Client disconnected, total: %d", total)
	}
}

func (wst *WebSocketTransport) handleBroadcasts() {
	defer wst.wg.Done()
	for {
		select {
		case <-wst.done:
			return
		case msg := <-wst.broadcast:
			wst.deliver(msg)
		}
	}
}

// deliver writes msg to every client that has not yet seen it or a newer
// message.
func (wst *WebSocketTransport) deliver(msg wsMessage) {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	for client, seen := range wst.clients {
		if seen >= msg.seq {
			continue
		}
		client.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.WriteMessage(websocket.TextMessage, msg.data); err != nil {
			logger.Warnf("Error sending to client: %v", err)
			client.Close()
			delete(wst.clients, client)
			continue
		}
		wst.clients[client] = msg.seq
	}
}

// Send encodes data as JSON and queues it for every client. When the
// queue is full the message is dropped; the next Send supersedes it.
func (wst *WebSocketTransport) Send(data any) error {
	select {
	case <-wst.done:
		return ErrClosed
	default:
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	wst.clientsMu.Lock()
	wst.seq++
	msg := wsMessage{seq: wst.seq, data: payload}
	wst.last = msg
	wst.clientsMu.Unlock()

	select {
	case wst.broadcast <- msg:
	default:
		logger.Debugf("Broadcast queue full, dropping message")
	}
	return nil
}

// Clients returns the number of connected clients.
func (wst *WebSocketTransport) Clients() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

// Close disconnects all clients and shuts down the server.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		logger.Infof("Closing WebSocket server")
		close(wst.done)
		err = wst.server.Close()

		wst.clientsMu.Lock()
		for client := range wst.clients {
			client.Close()
		}
		wst.clients = make(map[*websocket.Conn]uint64)
		wst.clientsMu.Unlock()

		wst.wg.Wait()
	})
	return err
}

var _ Transport = (*WebSocketTransport)(nil)
