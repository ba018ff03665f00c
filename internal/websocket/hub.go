package websocket

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// broadcastBufferSize - очередь hub; при переполнении события отбрасываются
const broadcastBufferSize = 256

// Hub управляет всеми активными WebSocket соединениями потока /ws/stream
//
// Назначение:
// Рассылает события торгового ядра (opportunity, trade, risk) подключённым клиентам.
// Поток только на чтение: клиент может лишь выбрать типы событий подпиской.
//
// Использование:
// 1. Создать hub: hub := NewHub(logger, origins)
// 2. Запустить в горутине: go hub.Run(ctx)
// 3. Отправлять сообщения: hub.Broadcast(data) (реализует notify.Broadcaster)
type Hub struct {
	// Зарегистрированные клиенты
	clients map[*Client]bool

	// Broadcast канал для отправки сообщений всем клиентам
	broadcast chan []byte

	register   chan *Client
	unregister chan *Client

	// закрывается при остановке Run
	done chan struct{}

	// Mutex для потокобезопасного доступа к clients
	mu sync.RWMutex

	dropped atomic.Uint64
	origins *OriginChecker
	logger  *zap.Logger
}

// NewHub создает новый Hub; origins - разрешённые Origin (пусто = все)
func NewHub(logger *zap.Logger, origins []string) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBufferSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		origins:    NewOriginChecker(origins),
		logger:     logger.Named("ws"),
	}
}

// Run запускает главный цикл Hub до отмены контекста.
// При остановке закрывает каналы отправки всех клиентов.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("Client connected", zap.Int("clients", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("Client disconnected", zap.Int("clients", total))

		case message := <-h.broadcast:
			h.deliver(message)
		}
	}
}

// deliver копирует список клиентов под RLock, отправляет без блокировки,
// медленных клиентов удаляет под Write Lock
func (h *Hub) deliver(message []byte) {
	eventType := messageType(message)

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	var toRemove []*Client
	for _, client := range clients {
		if !client.Wants(eventType) {
			continue
		}
		select {
		case client.send <- message:
		default:
			toRemove = append(toRemove, client)
		}
	}

	if len(toRemove) > 0 {
		h.mu.Lock()
		for _, client := range toRemove {
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		}
		total := len(h.clients)
		h.mu.Unlock()
		h.logger.Warn("Removed slow clients", zap.Int("removed", len(toRemove)), zap.Int("clients", total))
	}
}

// Broadcast ставит закодированное событие в очередь рассылки. Никогда не блокирует:
// при полной очереди событие отбрасывается, торговое ядро не ждёт клиентов.
func (h *Hub) Broadcast(data []byte) {
	select {
	case h.broadcast <- data:
	default:
		h.dropped.Add(1)
	}
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// DroppedMessages - число событий, отброшенных из-за переполнения очереди
func (h *Hub) DroppedMessages() uint64 {
	return h.dropped.Load()
}
