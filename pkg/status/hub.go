// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package status

import (
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/websocket"

	"github.com/dtn7/srtla-go/pkg/receiver"
)

const (
	// clientBuffer is the number of events queued per client. Events for a
	// client with a full queue are dropped.
	clientBuffer = 64

	writeTimeout = 5 * time.Second
)

// Hub distributes receiver Events to all connected WebSocket clients as JSON.
type Hub struct {
	upgrader websocket.Upgrader

	clients      map[*hubClient]struct{}
	clientsMutex sync.Mutex
}

type hubClient struct {
	conn *websocket.Conn
	send chan receiver.Event
}

// NewHub creates an empty Hub. Its ServeHTTP function must be bound to a
// HTTP endpoint.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*hubClient]struct{}),
	}
}

// ServeHTTP upgrades the request to a WebSocket and streams Events until the
// client disconnects.
func (hub *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, connErr := hub.upgrader.Upgrade(w, r, nil)
	if connErr != nil {
		log.WithError(connErr).Warn("Upgrading HTTP request to WebSocket errored")
		return
	}

	client := &hubClient{
		conn: conn,
		send: make(chan receiver.Event, clientBuffer),
	}

	hub.clientsMutex.Lock()
	hub.clients[client] = struct{}{}
	hub.clientsMutex.Unlock()

	logger := log.WithField("client", conn.RemoteAddr().String())
	logger.Debug("Event stream client connected")

	go client.handleWrites()

	// Incoming messages are discarded; reading detects a closed connection.
	for {
		if _, _, err := conn.NextReader(); err != nil {
			logger.WithError(err).Debug("Event stream client disconnected")
			break
		}
	}

	hub.remove(client)
}

func (client *hubClient) handleWrites() {
	defer client.conn.Close()

	for e := range client.send {
		_ = client.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := client.conn.WriteJSON(e); err != nil {
			log.WithError(err).WithField("client", client.conn.RemoteAddr().String()).Debug("Sending event errored")
			return
		}
	}
}

func (hub *Hub) remove(client *hubClient) {
	hub.clientsMutex.Lock()
	defer hub.clientsMutex.Unlock()

	if _, ok := hub.clients[client]; ok {
		delete(hub.clients, client)
		close(client.send)
	}
}

// Publish an Event to all clients without blocking.
func (hub *Hub) Publish(e receiver.Event) {
	hub.clientsMutex.Lock()
	defer hub.clientsMutex.Unlock()

	for client := range hub.clients {
		select {
		case client.send <- e:
		default:
			log.WithField("client", client.conn.RemoteAddr().String()).Debug("Event stream client is too slow, dropping event")
		}
	}
}

// Clients returns the number of connected clients.
func (hub *Hub) Clients() int {
	hub.clientsMutex.Lock()
	defer hub.clientsMutex.Unlock()

	return len(hub.clients)
}

// Close all client connections.
func (hub *Hub) Close() {
	hub.clientsMutex.Lock()
	defer hub.clientsMutex.Unlock()

	for client := range hub.clients {
		delete(hub.clients, client)
		close(client.send)
	}
}
