// Package websocket streams live score updates to viewers watching a
// challenge. A single actor goroutine owns all connection state; handlers and
// the vote ledger talk to it through typed commands.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/KEN19920421/30sec-challenge-sub001/internal/metrics"
)

const (
	maxClientsPerChallenge = 100

	// broadcastRate bounds score pushes per challenge. Votes can arrive far
	// faster than viewers need updates; dropped pushes are superseded by the
	// next one anyway.
	broadcastRate  = rate.Limit(20)
	broadcastBurst = 5

	writeDeadline = 5 * time.Second
)

// ScoreUpdate is the wire payload pushed to clients.
type ScoreUpdate struct {
	SubmissionID uuid.UUID `json:"submission_id"`
	WilsonScore  float64   `json:"wilson_score"`
	VoteCount    int       `json:"vote_count"`
}

// --- Command types ---

type hubCmd interface{ hubCmd() }

type cmdRegister struct {
	challengeID uuid.UUID
	conn        *websocket.Conn
	errCh       chan error
}

func (cmdRegister) hubCmd() {}

type cmdUnregister struct {
	challengeID uuid.UUID
	conn        *websocket.Conn
}

func (cmdUnregister) hubCmd() {}

type cmdBroadcast struct {
	challengeID uuid.UUID
	data        []byte
}

func (cmdBroadcast) hubCmd() {}

type cmdClientCount struct {
	challengeID uuid.UUID
	replyCh     chan int
}

func (cmdClientCount) hubCmd() {}

type cmdStop struct{}

func (cmdStop) hubCmd() {}

// --- Per-connection writer ---

type clientWriter struct {
	conn   *websocket.Conn
	sendCh chan []byte
	done   chan struct{}
}

func newClientWriter(conn *websocket.Conn) *clientWriter {
	cw := &clientWriter{
		conn:   conn,
		sendCh: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	for {
		select {
		case msg, ok := <-cw.sendCh:
			if !ok {
				return
			}
			cw.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := cw.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-cw.done:
			return
		}
	}
}

func (cw *clientWriter) stop() {
	close(cw.done)
	cw.conn.Close()
}

// --- Hub ---

type challengeClients map[*websocket.Conn]*clientWriter

// Hub fans score updates out to every client watching a challenge.
type Hub struct {
	cmdCh    chan hubCmd
	clients  map[uuid.UUID]challengeClients
	limiters map[uuid.UUID]*rate.Limiter
}

func NewHub() *Hub {
	h := &Hub{
		cmdCh:    make(chan hubCmd, 256),
		clients:  make(map[uuid.UUID]challengeClients),
		limiters: make(map[uuid.UUID]*rate.Limiter),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case cmdRegister:
			h.handleRegister(c)
		case cmdUnregister:
			h.handleUnregister(c.challengeID, c.conn)
		case cmdBroadcast:
			h.handleBroadcast(c)
		case cmdClientCount:
			c.replyCh <- len(h.clients[c.challengeID])
		case cmdStop:
			h.handleStop()
			return
		}
	}
}

func (h *Hub) handleRegister(c cmdRegister) {
	clients, exists := h.clients[c.challengeID]
	if !exists {
		clients = make(challengeClients)
		h.clients[c.challengeID] = clients
	}

	if len(clients) >= maxClientsPerChallenge {
		slog.Warn("rejecting score stream client, challenge full",
			"challenge_id", c.challengeID, "max", maxClientsPerChallenge)
		c.conn.Close()
		c.errCh <- fmt.Errorf("max clients per challenge (%d) reached", maxClientsPerChallenge)
		return
	}

	clients[c.conn] = newClientWriter(c.conn)
	metrics.WebsocketConnectedClients.Inc()
	slog.Debug("score stream client registered",
		"challenge_id", c.challengeID, "total", len(clients))
	c.errCh <- nil
}

func (h *Hub) handleUnregister(challengeID uuid.UUID, conn *websocket.Conn) {
	clients, exists := h.clients[challengeID]
	if !exists {
		return
	}
	cw, exists := clients[conn]
	if !exists {
		return
	}

	cw.stop()
	delete(clients, conn)
	metrics.WebsocketConnectedClients.Dec()

	if len(clients) == 0 {
		delete(h.clients, challengeID)
		delete(h.limiters, challengeID)
	}
}

func (h *Hub) handleBroadcast(c cmdBroadcast) {
	clients, exists := h.clients[c.challengeID]
	if !exists {
		return
	}

	limiter, ok := h.limiters[c.challengeID]
	if !ok {
		limiter = rate.NewLimiter(broadcastRate, broadcastBurst)
		h.limiters[c.challengeID] = limiter
	}
	if !limiter.Allow() {
		return
	}

	var slow []*websocket.Conn
	for conn, cw := range clients {
		select {
		case cw.sendCh <- c.data:
		default:
			slow = append(slow, conn)
		}
	}
	for _, conn := range slow {
		slog.Debug("disconnecting slow score stream client", "challenge_id", c.challengeID)
		h.handleUnregister(c.challengeID, conn)
	}
}

func (h *Hub) handleStop() {
	for challengeID, clients := range h.clients {
		for _, cw := range clients {
			cw.stop()
			metrics.WebsocketConnectedClients.Dec()
		}
		delete(h.clients, challengeID)
	}
}

// --- Public API ---

func (h *Hub) Register(challengeID uuid.UUID, conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	h.cmdCh <- cmdRegister{challengeID: challengeID, conn: conn, errCh: errCh}
	return <-errCh
}

func (h *Hub) Unregister(challengeID uuid.UUID, conn *websocket.Conn) {
	h.cmdCh <- cmdUnregister{challengeID: challengeID, conn: conn}
}

// BroadcastScore implements domain.ScoreBroadcaster. It never blocks the
// caller: the command channel is buffered and full channels drop the update.
func (h *Hub) BroadcastScore(challengeID, submissionID uuid.UUID, wilsonScore float64, voteCount int) {
	data, err := json.Marshal(ScoreUpdate{
		SubmissionID: submissionID,
		WilsonScore:  wilsonScore,
		VoteCount:    voteCount,
	})
	if err != nil {
		slog.Error("failed to marshal score update", "error", err)
		return
	}

	select {
	case h.cmdCh <- cmdBroadcast{challengeID: challengeID, data: data}:
	default:
	}
}

func (h *Hub) ClientCount(challengeID uuid.UUID) int {
	replyCh := make(chan int, 1)
	h.cmdCh <- cmdClientCount{challengeID: challengeID, replyCh: replyCh}
	return <-replyCh
}

func (h *Hub) Stop() {
	h.cmdCh <- cmdStop{}
}
