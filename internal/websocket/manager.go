package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/Tonic56/coin-watchlist/internal/models"
	"github.com/Tonic56/coin-watchlist/storage/redis"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const snapshotTimeout = 20 * time.Second

// Snapshotter produces the formatted watchlist pushed to a client.
type Snapshotter interface {
	Snapshot(ctx context.Context, userID uuid.UUID, currency string) ([]models.CoinSummary, error)
}

// Subscriber delivers watchlist change events published by other instances.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) error
	Unsubscribe(ctx context.Context, channel string) error
	Messages() <-chan redis.Message
}

type Client struct {
	Manager  *Manager
	Conn     *websocket.Conn
	UserID   uuid.UUID
	Currency string
	Send     chan []byte
}

func NewClient(manager *Manager, conn *websocket.Conn, userID uuid.UUID, currency string) *Client {
	return &Client{
		Manager:  manager,
		Conn:     conn,
		UserID:   userID,
		Currency: currency,
		Send:     make(chan []byte, 16),
	}
}

type watchlistMessage struct {
	Type  string               `json:"type"`
	Coins []models.CoinSummary `json:"coins"`
}

type Manager struct {
	clients         map[uuid.UUID]*Client
	mu              sync.RWMutex
	register        chan *Client
	unregister      chan *Client
	done            chan struct{}
	log             *slog.Logger
	subscriber      Subscriber
	snapshots       Snapshotter
	refreshInterval time.Duration
}

func NewManager(log *slog.Logger, subscriber Subscriber, snapshots Snapshotter, refreshInterval time.Duration) *Manager {
	return &Manager{
		clients:         make(map[uuid.UUID]*Client),
		register:        make(chan *Client),
		unregister:      make(chan *Client),
		done:            make(chan struct{}),
		log:             log,
		subscriber:      subscriber,
		snapshots:       snapshots,
		refreshInterval: refreshInterval,
	}
}

func (m *Manager) Run(ctx context.Context) {
	defer close(m.done)

	go m.listenToRedis(ctx)

	var tick <-chan time.Time
	if m.refreshInterval > 0 {
		ticker := time.NewTicker(m.refreshInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			m.log.Info("Manager run loop stopping...")
			m.closeAll()
			return
		case client := <-m.register:
			m.registerClient(ctx, client)
		case client := <-m.unregister:
			m.unregisterClient(ctx, client)
		case <-tick:
			m.refreshAll(ctx)
		}
	}
}

func (m *Manager) listenToRedis(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.log.Info("Redis listener stopping...")
			return
		case msg, ok := <-m.subscriber.Messages():
			if !ok {
				m.log.Warn("manager redis subscriber channel closed")
				return
			}
			m.processRedisMessage(ctx, msg)
		}
	}
}

func (m *Manager) Register(client *Client) {
	select {
	case m.register <- client:
	case <-m.done:
		client.Conn.Close()
	}
}

func (m *Manager) Unregister(client *Client) {
	select {
	case m.unregister <- client:
	case <-m.done:
	}
}

func (m *Manager) registerClient(ctx context.Context, client *Client) {
	m.mu.Lock()
	if oldClient, exists := m.clients[client.UserID]; exists {
		m.log.Warn("client re-registering, closing old connection", "userID", client.UserID)
		close(oldClient.Send)
	}
	m.clients[client.UserID] = client
	m.mu.Unlock()

	m.log.Info("new client registered", "userID", client.UserID)

	if err := m.subscriber.Subscribe(ctx, models.WatchlistChannel(client.UserID)); err != nil {
		m.log.Error("manager: could not subscribe to watchlist channel", "userID", client.UserID, "error", err)
	}

	go m.push(ctx, client)
}

func (m *Manager) unregisterClient(ctx context.Context, client *Client) {
	m.mu.Lock()
	current, ok := m.clients[client.UserID]
	if !ok || current != client {
		m.mu.Unlock()
		return
	}
	delete(m.clients, client.UserID)
	close(client.Send)
	m.mu.Unlock()

	if err := m.subscriber.Unsubscribe(ctx, models.WatchlistChannel(client.UserID)); err != nil {
		m.log.Error("manager: failed to unsubscribe from redis", "userID", client.UserID, "error", err)
	}
	m.log.Info("client unregistered", "userID", client.UserID)
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for userID, client := range m.clients {
		close(client.Send)
		delete(m.clients, userID)
	}
}

func (m *Manager) processRedisMessage(ctx context.Context, msg redis.Message) {
	var event models.WatchlistEvent
	if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
		m.log.Error("failed to parse watchlist event from redis", "error", err, "payload", msg.Payload)
		return
	}

	m.mu.RLock()
	client, ok := m.clients[event.UserID]
	m.mu.RUnlock()
	if !ok {
		return
	}

	go m.push(ctx, client)
}

func (m *Manager) refreshAll(ctx context.Context) {
	m.mu.RLock()
	clients := make([]*Client, 0, len(m.clients))
	for _, client := range m.clients {
		clients = append(clients, client)
	}
	m.mu.RUnlock()

	for _, client := range clients {
		go m.push(ctx, client)
	}
}

// push builds a fresh snapshot for client and queues it. The snapshot is
// dropped if the client went away or its buffer is full.
func (m *Manager) push(ctx context.Context, client *Client) {
	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	coins, err := m.snapshots.Snapshot(ctx, client.UserID, client.Currency)
	if err != nil {
		m.log.Error("failed to build watchlist snapshot", "error", err, "userID", client.UserID)
		return
	}

	payload, err := json.Marshal(watchlistMessage{Type: "watchlist", Coins: coins})
	if err != nil {
		m.log.Error("failed to marshal watchlist snapshot", "error", err, "userID", client.UserID)
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if current, ok := m.clients[client.UserID]; !ok || current != client {
		return
	}

	select {
	case client.Send <- payload:
	default:
		m.log.Warn("client send channel is full, dropping message", "userID", client.UserID)
	}
}

func (c *Client) Writer() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Manager.log.Warn("failed to write message to client", "userID", c.UserID)
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) Reader() {
	defer func() {
		c.Manager.Unregister(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Manager.log.Warn("unexpected close error", "userID", c.UserID, "error", err)
			}
			break
		}
	}
}
