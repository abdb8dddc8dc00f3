package server

import (
	"net/http"

	"mtm-hub/src/models"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop
func (s *HubServer) handleWebsockets() {
	for {
		select {
		case <-s.done:
			for client := range s.clients {
				delete(s.clients, client)
				close(client.send)
			}
			s.setClientGauge()
			return

		case client := <-s.register:
			s.clients[client] = struct{}{}
			s.setClientGauge()

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
				s.setClientGauge()
			}

		case sub := <-s.subscriptions:
			if _, ok := s.clients[sub.client]; ok {
				sub.client.subscribe(sub.userIDs)
				s.replay(sub.client, sub.userIDs)
			}

		case update := <-s.broadcast:
			s.stateMutex.Lock()
			s.latest[update.UserID] = update
			s.stateMutex.Unlock()

			for client := range s.clients {
				if !client.wants(update.UserID) {
					continue
				}
				select {
				case client.send <- update:
				default:
					// Client too slow, drop it rather than stall the hub
					delete(s.clients, client)
					close(client.send)
					s.setClientGauge()
				}
			}
		}
	}
}

// -----------------------------------------------------------------------------

func (s *HubServer) setClientGauge() {
	s.clientTotal.Store(int64(len(s.clients)))
	if s.metrics != nil {
		s.metrics.WSClients.Set(float64(len(s.clients)))
	}
}

func (s *HubServer) clientCount() int {
	return int(s.clientTotal.Load())
}

// -----------------------------------------------------------------------------
// Data Exchange Interface Implementation
// -----------------------------------------------------------------------------

// Broadcast queues an update without blocking the caller. Updates are dropped
// when the queue is full or the server is stopping.
func (s *HubServer) Broadcast(update *models.MMtmUpdate) {
	if update == nil {
		return
	}
	select {
	case <-s.done:
	case s.broadcast <- update:
	default:
		s.Logger.Warning("Broadcast queue full, dropping update for %s", update.UserID)
	}
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *HubServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.wsLog.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		hub:  s,
		conn: conn,
		// Buffered channel to prevent blocking the Hub loop
		send: make(chan interface{}, 256),
	}

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

type subscription struct {
	client  *Client
	userIDs []string
}

// HandleClientMessage applies a subscribe command and replays the latest
// known update of each matching account.
func (s *HubServer) HandleClientMessage(client *Client, message []byte) {
	var cmd models.MSubscribeCommand
	if err := sonic.Unmarshal(message, &cmd); err != nil {
		s.wsLog.Info("Failed to parse client command: %v, disconnecting client", err)
		client.conn.Close()
		return
	}

	if cmd.Command != "subscribe" {
		return
	}

	select {
	case s.subscriptions <- subscription{client: client, userIDs: cmd.UserIDs}:
	case <-s.done:
	}
}

// -----------------------------------------------------------------------------

// replay runs on the hub loop, which owns every client.send.
func (s *HubServer) replay(client *Client, userIDs []string) {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()

	for userID, update := range s.latest {
		if len(userIDs) > 0 && !contains(userIDs, userID) {
			continue
		}
		snap := *update
		snap.Type = "INITIAL"
		select {
		case client.send <- &snap:
		default:
			return
		}
	}
}
