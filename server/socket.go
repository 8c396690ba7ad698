package main

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"shareroom/rooms"
	"shareroom/uploads"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Connection registry. Rooms only hold connection IDs; this map is the
// single place an ID resolves back to a live connection.
var Clients = map[string]*Client{}
var clientsMu sync.Mutex

var RoomStore = rooms.NewStore()
var UploadStore *uploads.Store

func decodeData[T any](raw interface{}) (T, error) {
	var data T
	bytes, err := json.Marshal(raw)
	if err != nil {
		return data, err
	}
	err = json.Unmarshal(bytes, &data)
	return data, err
}

func HandleSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("WebSocket upgrade failed:", err)
		return
	}
	conn.SetReadLimit(256 * 1024)
	defer conn.Close()

	client := registerClient(conn)

	for {
		_, msgBytes, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var wsMsg WSMessage
		if err := json.Unmarshal(msgBytes, &wsMsg); err != nil {
			log.Println("Invalid message format:", err)
			continue
		}

		dispatchMessage(client, conn, wsMsg)
	}

	cleanupClient(client)
}

func registerClient(conn *websocket.Conn) *Client {
	client := &Client{
		ID:        uuid.New().String(),
		Conn:      conn,
		SendQueue: make(chan WSMessage, 64),
		Done:      make(chan struct{}),
	}

	clientsMu.Lock()
	Clients[client.ID] = client
	count := len(Clients)
	clientsMu.Unlock()

	go client.WritePump()

	onlineUsers.Set(float64(count))

	safeSend(client, conn, WSMessage{Type: "session", Data: client.ID})
	safeSend(client, conn, WSMessage{Type: "rooms available", Data: RoomStore.Snapshot()})
	broadcastUserCount()
	return client
}

// cleanupClient is terminal for the connection: membership is torn
// down first so no broadcast can target it afterwards, then backing
// files of any room it emptied are deleted off the lock path.
func cleanupClient(client *Client) {
	departures := RoomStore.Leave(client.ID)
	destroyed := false
	for _, dep := range departures {
		if dep.Emptied {
			destroyed = true
			removeStorageRefs(dep.StorageRefs)
		}
	}
	if destroyed {
		activeRooms.Set(float64(RoomStore.Count()))
		broadcastRoomList()
	}

	clientsMu.Lock()
	delete(Clients, client.ID)
	count := len(Clients)
	clientsMu.Unlock()

	// SendQueue stays open so a broadcast that snapshotted this client
	// just before removal lands in the buffer instead of panicking;
	// closing Done stops the write pump.
	close(client.Done)

	onlineUsers.Set(float64(count))
	broadcastUserCount()
}

func removeStorageRefs(refs []string) {
	for _, ref := range refs {
		go func(storageRef string) {
			if err := UploadStore.Remove(storageRef); err != nil {
				log.Println("Failed to delete stored file:", storageRef, err)
			}
		}(ref)
	}
}

func safeSend(client *Client, conn *websocket.Conn, msg WSMessage) {
	if client != nil && client.SendQueue != nil {
		select {
		case client.SendQueue <- msg:
		default:
			log.Printf("safeSend: send queue full for client")
		}
	} else {
		_ = conn.WriteJSON(msg)
	}
}

// sendToClient unicasts by connection ID; delivery to a connection
// that already disconnected is silently dropped.
func sendToClient(connID string, msg WSMessage) {
	clientsMu.Lock()
	client, ok := Clients[connID]
	clientsMu.Unlock()
	if !ok {
		return
	}
	safeSend(client, client.Conn, msg)
}

func broadcastToAll(msg WSMessage) {
	clientsMu.Lock()
	targets := make([]*Client, 0, len(Clients))
	for _, client := range Clients {
		targets = append(targets, client)
	}
	clientsMu.Unlock()

	for _, client := range targets {
		safeSend(client, client.Conn, msg)
	}
}

// broadcastToMembers delivers to the member-set snapshot taken by the
// store operation that produced it.
func broadcastToMembers(memberIDs []string, msg WSMessage) {
	for _, id := range memberIDs {
		sendToClient(id, msg)
	}
}

func broadcastRoomList() {
	broadcastToAll(WSMessage{Type: "rooms available", Data: RoomStore.Snapshot()})
}

func broadcastUserCount() {
	clientsMu.Lock()
	count := len(Clients)
	clientsMu.Unlock()
	broadcastToAll(WSMessage{Type: "user count", Data: count})
}
