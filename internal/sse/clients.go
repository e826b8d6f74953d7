// Package sse provides Server-Sent Events client management for real-time communication.
package sse

import (
	"encoding/json"
	"sync"

	"github.com/vellumhq/vellum/internal/model"
)

// Event is one named message with a JSON payload.
type Event struct {
	Name string
	Data string
}

// NewEvent marshals payload into an event. A payload that cannot be
// marshaled becomes an empty object rather than a dropped event.
func NewEvent(name string, payload any) Event {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("{}")
	}
	return Event{Name: name, Data: string(data)}
}

type Client struct {
	Msg  chan Event
	Repo model.RepoID
}

type SSEClients struct {
	clients map[*Client]bool
	mu      sync.RWMutex
}

func NewSSEClients() *SSEClients {
	return &SSEClients{
		clients: make(map[*Client]bool),
	}
}

func (s *SSEClients) Add(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client] = true
}

// Delete unregisters the client and closes its channel. Deleting a client
// that is already gone is a no-op.
func (s *SSEClients) Delete(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		close(client.Msg)
	}
}

// Count returns the number of connected clients.
func (s *SSEClients) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast sends the event to every client watching the repository. Slow
// clients are skipped instead of blocking the sender.
func (s *SSEClients) Broadcast(repo model.RepoID, event Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for client := range s.clients {
		if client.Repo == repo {
			select {
			case client.Msg <- event:
			default:
			}
		}
	}
}
