package monitoring

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"device-tracker/internal/metrics"
	"device-tracker/internal/models"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StageFeed pushes every lifecycle write to connected websocket clients.
// It implements ports.StageNotifier.
type StageFeed struct {
	clients    map[*websocket.Conn]bool
	clientsMux sync.Mutex
	broadcast  chan models.StageEvent
}

func NewStageFeed() *StageFeed {
	return &StageFeed{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan models.StageEvent, 256),
	}
}

// Publish queues an event. It never blocks the writer; when the queue is
// full the event is dropped.
func (f *StageFeed) Publish(event models.StageEvent) {
	select {
	case f.broadcast <- event:
	default:
		log.Printf("[StageFeed] queue full, dropping event for %s", event.IMEI)
	}
}

// Run fans queued events out to clients until ctx is done.
func (f *StageFeed) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			f.closeAll()
			return
		case event := <-f.broadcast:
			f.send(event)
		}
	}
}

func (f *StageFeed) send(event models.StageEvent) {
	f.clientsMux.Lock()
	defer f.clientsMux.Unlock()
	for client := range f.clients {
		client.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := client.WriteJSON(event); err != nil {
			client.Close()
			delete(f.clients, client)
		}
	}
	metrics.StageFeedClients.Set(float64(len(f.clients)))
}

func (f *StageFeed) closeAll() {
	f.clientsMux.Lock()
	defer f.clientsMux.Unlock()
	for client := range f.clients {
		client.Close()
		delete(f.clients, client)
	}
	metrics.StageFeedClients.Set(0)
}

// Clients returns the number of connected clients
func (f *StageFeed) Clients() int {
	f.clientsMux.Lock()
	defer f.clientsMux.Unlock()
	return len(f.clients)
}

// ServeHTTP upgrades the connection and keeps it registered until the client leaves.
func (f *StageFeed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("[StageFeed] websocket upgrade error:", err)
		return
	}
	defer conn.Close()

	f.clientsMux.Lock()
	f.clients[conn] = true
	metrics.StageFeedClients.Set(float64(len(f.clients)))
	f.clientsMux.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			f.clientsMux.Lock()
			delete(f.clients, conn)
			metrics.StageFeedClients.Set(float64(len(f.clients)))
			f.clientsMux.Unlock()
			break
		}
	}
}
