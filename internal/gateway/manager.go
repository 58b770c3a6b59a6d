package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/chukwukap/waffles/internal/events"
	"github.com/chukwukap/waffles/internal/gameclock"
	"github.com/chukwukap/waffles/internal/models"
)

// GameProvider supplies game configuration for join snapshots.
type GameProvider interface {
	GetGameConfig(ctx context.Context, gameID uuid.UUID) (*models.GameConfig, error)
}

// EventPublisher pushes client-originated events (chat, cheers) onto the
// bus so every gateway replica fans them out.
type EventPublisher interface {
	Publish(ctx context.Context, event *events.Event) error
}

// ConnectionManager owns the websocket connections subscribed to game
// channels and fans events out to them.
type ConnectionManager struct {
	gameConnections map[uuid.UUID]map[*Connection]bool
	mu              sync.RWMutex

	upgrader  websocket.Upgrader
	config    ConnectionConfig
	presence  *Presence
	ring      *EventRing
	games     GameProvider
	publisher EventPublisher
	now       func() time.Time

	broadcastCh chan BroadcastMessage

	endedMu sync.RWMutex
	ended   map[uuid.UUID]bool
}

// Connection is one subscriber of a game channel.
type Connection struct {
	ID       string
	PlayerID uuid.UUID
	GameID   uuid.UUID
	Conn     *websocket.Conn
	Send     chan []byte
	Manager  *ConnectionManager

	ConnectedAt time.Time
}

// ConnectionConfig holds websocket tuning knobs.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage is one event queued for fan-out.
type BroadcastMessage struct {
	GameID uuid.UUID
	Event  *events.Event
}

// DefaultConnectionConfig returns default websocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewConnectionManager creates a websocket connection manager.
func NewConnectionManager(config ConnectionConfig, games GameProvider, presence *Presence, ring *EventRing, publisher EventPublisher) *ConnectionManager {
	return &ConnectionManager{
		gameConnections: make(map[uuid.UUID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		presence:    presence,
		ring:        ring,
		games:       games,
		publisher:   publisher,
		now:         time.Now,
		broadcastCh: make(chan BroadcastMessage, 1000),
		ended:       make(map[uuid.UUID]bool),
	}
}

// Start processes broadcast messages until the context is cancelled.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP request to a websocket subscription on
// the game's channel, delivering the join snapshot before any incremental
// events.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, playerID, gameID uuid.UUID) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		PlayerID:    playerID,
		GameID:      gameID,
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: cm.now(),
	}

	count, err := cm.presence.Connect(r.Context(), gameID, playerID)
	if err != nil {
		log.Error().Err(err).Str("game_id", gameID.String()).Msg("presence connect failed")
	}

	if snapshot, err := cm.buildSnapshot(r.Context(), gameID, count); err != nil {
		log.Error().Err(err).Str("game_id", gameID.String()).Msg("failed to build join snapshot")
	} else {
		connection.Send <- snapshot
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("player_id", playerID.String()).
		Str("game_id", gameID.String()).
		Msg("websocket connection established")

	return nil
}

// Snapshot is the join-time view delivered on subscribe.
type Snapshot struct {
	Type             string          `json:"type"`
	Phase            string          `json:"phase"`
	QuestionIndex    int             `json:"question_index"`
	SecondsRemaining int             `json:"seconds_remaining"`
	OnlineCount      int64           `json:"online_count"`
	RecentEvents     []*events.Event `json:"recent_events"`
}

func (cm *ConnectionManager) buildSnapshot(ctx context.Context, gameID uuid.UUID, onlineCount int64) ([]byte, error) {
	cfg, err := cm.games.GetGameConfig(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("load game config: %w", err)
	}

	now := cm.now()
	phase := gameclock.PhaseAt(cfg, now)
	snapshot := Snapshot{
		Type:             "snapshot",
		Phase:            string(phase.Kind),
		QuestionIndex:    phase.Index,
		SecondsRemaining: gameclock.SecondsRemaining(cfg, now),
		OnlineCount:      onlineCount,
		RecentEvents:     cm.ring.Recent(gameID),
	}
	return json.Marshal(snapshot)
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.gameConnections[conn.GameID] == nil {
		cm.gameConnections[conn.GameID] = make(map[*Connection]bool)
	}
	cm.gameConnections[conn.GameID][conn] = true
}

// unregisterConnection drops the connection from fan-out. Send is never
// closed: a concurrent broadcast may still hold a reference, and sending on
// a closed channel panics. The pumps exit via Conn.Close instead.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	connections, exists := cm.gameConnections[conn.GameID]
	if !exists {
		cm.mu.Unlock()
		return
	}
	if _, exists := connections[conn]; !exists {
		cm.mu.Unlock()
		return
	}
	delete(connections, conn)
	if len(connections) == 0 {
		delete(cm.gameConnections, conn.GameID)
	}
	cm.mu.Unlock()

	cm.presence.Disconnect(context.Background(), conn.GameID, conn.PlayerID)

	log.Info().
		Str("connection_id", conn.ID).
		Str("player_id", conn.PlayerID.String()).
		Str("game_id", conn.GameID.String()).
		Msg("connection unregistered")
}

// Broadcast queues an event for fan-out to the game's subscribers.
func (cm *ConnectionManager) Broadcast(gameID uuid.UUID, event *events.Event) {
	select {
	case cm.broadcastCh <- BroadcastMessage{GameID: gameID, Event: event}:
	default:
		log.Warn().Str("game_id", gameID.String()).Msg("broadcast channel full, dropping message")
	}
}

// handleBroadcast fans one event out to every subscriber of the game. A
// subscriber whose outbound queue is full is dropped rather than letting it
// backpressure the channel.
func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	cm.mu.RLock()
	connections, exists := cm.gameConnections[message.GameID]
	if !exists {
		cm.mu.RUnlock()
		return
	}
	targets := make([]*Connection, 0, len(connections))
	for conn := range connections {
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	eventData, err := json.Marshal(message.Event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	for _, conn := range targets {
		select {
		case conn.Send <- eventData:
		default:
			log.Warn().
				Str("connection_id", conn.ID).
				Str("player_id", conn.PlayerID.String()).
				Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
			conn.Conn.Close()
		}
	}
}

// MarkEnded closes a game's channel to new chat/cheer traffic. Existing
// subscribers stay connected to view the final state.
func (cm *ConnectionManager) MarkEnded(gameID uuid.UUID) {
	cm.endedMu.Lock()
	cm.ended[gameID] = true
	cm.endedMu.Unlock()
}

func (cm *ConnectionManager) isEnded(gameID uuid.UUID) bool {
	cm.endedMu.RLock()
	defer cm.endedMu.RUnlock()
	return cm.ended[gameID]
}

// Stats returns counts of active connections per game.
func (cm *ConnectionManager) Stats() (total int, perGame map[string]int) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	perGame = make(map[string]int)
	for gameID, connections := range cm.gameConnections {
		perGame[gameID.String()] = len(connections)
		total += len(connections)
	}
	return total, perGame
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to write message to websocket")
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("unexpected websocket close error")
			}
			break
		}
		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
