// Package transport provides the script-side bridges that carry exec requests
// from a web view into the host runtime and plugin results back out.
//
// The WebSocket bridge answers on the connection a request arrived on. The
// polling bridge queues results for the script context to fetch, paging on a
// per-server sequence number.
package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zlc_ai/appevents-bridge/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 * 1024
	sendBufferSize = 64
	maxPollResults = 1000
)

// Frame types written to WebSocket clients.
const (
	FrameResult = "result"
	FrameError  = "error"
)

// ExecHandler dispatches a request. Results are passed to deliver, possibly
// after the handler returned.
type ExecHandler func(req *protocol.ExecRequest, deliver protocol.ResultHandler)

// Transport defines the interface for transport implementations.
type Transport interface {
	// Start starts the transport.
	Start(ctx context.Context) error
	// Stop stops the transport.
	Stop(ctx context.Context) error
	// SetHandler sets the handler for incoming exec requests.
	SetHandler(handler ExecHandler)
}

// Frame is a server-to-client WebSocket message.
type Frame struct {
	Type   string                 `json:"type"`
	Result *protocol.PluginResult `json:"result,omitempty"`
	Error  *protocol.BridgeError  `json:"error,omitempty"`
}

// WebSocketServer accepts script-context connections and routes every
// result back to the connection its request came from.
type WebSocketServer struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	handlerMu sync.RWMutex
	handler   ExecHandler

	connMu sync.RWMutex
	conns  map[*wsClient]struct{}

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

type wsClient struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// NewWebSocketServer creates a new WebSocket server.
func NewWebSocketServer(logger *zap.Logger) *WebSocketServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketServer{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // web views load from file:// and custom schemes
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		conns:  make(map[*wsClient]struct{}),
		stopCh: make(chan struct{}),
	}
}

func (ws *WebSocketServer) Start(ctx context.Context) error {
	ws.logger.Info("WebSocket bridge started")
	return nil
}

// Stop closes every connection and waits for their pumps to exit.
func (ws *WebSocketServer) Stop(ctx context.Context) error {
	ws.stopOnce.Do(func() { close(ws.stopCh) })

	ws.connMu.Lock()
	for c := range ws.conns {
		c.close()
	}
	ws.connMu.Unlock()

	done := make(chan struct{})
	go func() {
		ws.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		ws.logger.Info("WebSocket bridge stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (ws *WebSocketServer) SetHandler(handler ExecHandler) {
	ws.handlerMu.Lock()
	ws.handler = handler
	ws.handlerMu.Unlock()
}

// HTTPHandler returns an http.Handler for WebSocket upgrade.
func (ws *WebSocketServer) HTTPHandler() http.Handler {
	return http.HandlerFunc(ws.handleConnection)
}

// ConnectionCount returns the number of active connections.
func (ws *WebSocketServer) ConnectionCount() int {
	ws.connMu.RLock()
	defer ws.connMu.RUnlock()
	return len(ws.conns)
}

func (ws *WebSocketServer) handleConnection(w http.ResponseWriter, r *http.Request) {
	select {
	case <-ws.stopCh:
		http.Error(w, "Bridge stopped", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}

	c := &wsClient{
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}

	ws.connMu.Lock()
	ws.conns[c] = struct{}{}
	ws.connMu.Unlock()

	ws.logger.Info("WebSocket client connected",
		zap.String("remoteAddr", r.RemoteAddr))

	ws.wg.Add(2)
	go ws.writePump(c)
	go ws.readPump(c)
}

func (ws *WebSocketServer) readPump(c *wsClient) {
	defer ws.wg.Done()
	defer func() {
		ws.connMu.Lock()
		delete(ws.conns, c)
		ws.connMu.Unlock()
		c.close()
		ws.logger.Info("WebSocket client disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}

		var req protocol.ExecRequest
		if err := json.Unmarshal(data, &req); err != nil {
			ws.logger.Warn("Failed to parse exec request", zap.Error(err))
			ws.enqueue(c, &Frame{
				Type:  FrameError,
				Error: protocol.NewBridgeError(protocol.ErrCodeProtocolError, "invalid exec request: "+err.Error()),
			})
			continue
		}

		handler := ws.currentHandler()
		if handler == nil {
			ws.enqueue(c, &Frame{
				Type:  FrameError,
				Error: protocol.NewBridgeError(protocol.ErrCodeHostError, "no exec handler"),
			})
			continue
		}

		handler(&req, func(result *protocol.PluginResult) {
			ws.enqueue(c, &Frame{Type: FrameResult, Result: result})
		})
	}
}

func (ws *WebSocketServer) writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
		ws.wg.Done()
	}()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				ws.logger.Warn("Failed to write frame", zap.Error(err))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		case <-ws.stopCh:
			return
		}
	}
}

// enqueue hands a frame to the connection's write pump. Frames for closed
// connections, or connections whose buffer is full, are dropped.
func (ws *WebSocketServer) enqueue(c *wsClient, frame *Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		ws.logger.Error("Failed to marshal frame", zap.Error(err))
		return
	}

	select {
	case <-c.done:
		ws.logger.Debug("Dropping frame for closed connection", zap.String("type", frame.Type))
		return
	default:
	}

	select {
	case c.send <- data:
	case <-c.done:
	default:
		ws.logger.Warn("WebSocket send buffer full, dropping frame", zap.String("type", frame.Type))
	}
}

func (ws *WebSocketServer) currentHandler() ExecHandler {
	ws.handlerMu.RLock()
	defer ws.handlerMu.RUnlock()
	return ws.handler
}

// PollingServer implements the HTTP polling bridge.
type PollingServer struct {
	logger *zap.Logger

	handlerMu sync.RWMutex
	handler   ExecHandler

	queueMu sync.RWMutex
	queue   []PolledResult
	lastSeq uint64
}

// PolledResult is a queued result tagged with its position in the queue.
// Seq increases by one per result and is the poll cursor.
type PolledResult struct {
	Seq uint64 `json:"seq"`
	*protocol.PluginResult
}

// NewPollingServer creates a new polling server.
func NewPollingServer(logger *zap.Logger) *PollingServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PollingServer{
		logger: logger,
		queue:  make([]PolledResult, 0),
	}
}

func (ps *PollingServer) Start(ctx context.Context) error {
	ps.logger.Info("Polling bridge started")
	return nil
}

func (ps *PollingServer) Stop(ctx context.Context) error {
	ps.logger.Info("Polling bridge stopped")
	return nil
}

func (ps *PollingServer) SetHandler(handler ExecHandler) {
	ps.handlerMu.Lock()
	ps.handler = handler
	ps.handlerMu.Unlock()
}

// ExecHandler returns an http.Handler accepting exec requests.
func (ps *PollingServer) ExecHandler() http.Handler {
	return http.HandlerFunc(ps.handleExec)
}

// PollHandler returns an http.Handler serving queued results.
func (ps *PollingServer) PollHandler() http.Handler {
	return http.HandlerFunc(ps.handlePoll)
}

// Results returns queued results with a sequence number after since.
func (ps *PollingServer) Results(since uint64) []PolledResult {
	ps.queueMu.RLock()
	defer ps.queueMu.RUnlock()

	results := make([]PolledResult, 0)
	for _, r := range ps.queue {
		if r.Seq > since {
			results = append(results, r)
		}
	}
	return results
}

// LastSeq returns the sequence number of the newest queued result.
func (ps *PollingServer) LastSeq() uint64 {
	ps.queueMu.RLock()
	defer ps.queueMu.RUnlock()
	return ps.lastSeq
}

// QueueSize returns the number of results in the queue.
func (ps *PollingServer) QueueSize() int {
	ps.queueMu.RLock()
	defer ps.queueMu.RUnlock()
	return len(ps.queue)
}

func (ps *PollingServer) push(result *protocol.PluginResult) {
	ps.queueMu.Lock()
	ps.lastSeq++
	ps.queue = append(ps.queue, PolledResult{Seq: ps.lastSeq, PluginResult: result})
	if len(ps.queue) > maxPollResults {
		ps.queue = ps.queue[len(ps.queue)-maxPollResults:]
	}
	ps.queueMu.Unlock()
}

func (ps *PollingServer) handleExec(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req protocol.ExecRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest,
			protocol.NewBridgeError(protocol.ErrCodeProtocolError, "invalid exec request: "+err.Error()))
		return
	}

	ps.handlerMu.RLock()
	handler := ps.handler
	ps.handlerMu.RUnlock()
	if handler == nil {
		writeError(w, http.StatusServiceUnavailable,
			protocol.NewBridgeError(protocol.ErrCodeHostError, "no exec handler"))
		return
	}

	req.Normalize()
	handler(&req, ps.push)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"ok":         true,
		"callbackId": req.CallbackID,
	})
}

func (ps *PollingServer) handlePoll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var since uint64
	if s := r.URL.Query().Get("since"); s != "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest,
				protocol.NewBridgeError(protocol.ErrCodeProtocolError, "invalid since: "+s))
			return
		}
		since = v
	}

	results := ps.Results(since)
	next := since
	if len(results) > 0 {
		next = results[len(results)-1].Seq
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"results": results,
		"next":    next,
	})
}

func writeError(w http.ResponseWriter, status int, err *protocol.BridgeError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(err)
}
