package main

import (
	"errors"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"shareroom/rooms"
	"shareroom/tokens"
)

const uploadGrantTTL = 12 * time.Hour

func sendRoomError(client *Client, conn *websocket.Conn, message string) {
	safeSend(client, conn, WSMessage{Type: "room error", Data: message})
}

func sendUploadGrant(client *Client, conn *websocket.Conn, roomName string) {
	token, err := tokens.Issue(uploadTokenSecret, roomName, client.ID, uploadGrantTTL)
	if err != nil {
		log.Println("Failed to issue upload token:", err)
		return
	}
	safeSend(client, conn, WSMessage{Type: "upload token", Data: UploadGrant{RoomName: roomName, Token: token}})
}

func handleCreateRoom(client *Client, conn *websocket.Conn, wsMsg *WSMessage) {
	data, err := decodeData[RoomRequest](wsMsg.Data)
	if err != nil || data.RoomName == "" || data.Password == "" {
		sendRoomError(client, conn, "Invalid create room data")
		return
	}

	if err := RoomStore.Create(data.RoomName, data.Password, client.ID); err != nil {
		if errors.Is(err, rooms.ErrRoomExists) {
			sendRoomError(client, conn, err.Error())
		} else {
			log.Println("Failed to create room:", err)
			sendRoomError(client, conn, "Failed to create room")
		}
		return
	}

	activeRooms.Set(float64(RoomStore.Count()))

	safeSend(client, conn, WSMessage{Type: "room created", Data: data.RoomName})
	sendUploadGrant(client, conn, data.RoomName)
	broadcastRoomList()
}

func handleJoinRoom(client *Client, conn *websocket.Conn, wsMsg *WSMessage) {
	data, err := decodeData[RoomRequest](wsMsg.Data)
	if err != nil || data.RoomName == "" {
		sendRoomError(client, conn, "Invalid join room data")
		return
	}

	history, err := RoomStore.Join(data.RoomName, data.Password, client.ID)
	if err != nil {
		sendRoomError(client, conn, err.Error())
		return
	}

	safeSend(client, conn, WSMessage{Type: "room joined", Data: data.RoomName})
	sendUploadGrant(client, conn, data.RoomName)
	safeSend(client, conn, WSMessage{Type: "room history", Data: history})
}

func handleEndRoom(client *Client, conn *websocket.Conn, wsMsg *WSMessage) {
	roomName, ok := wsMsg.Data.(string)
	if !ok || roomName == "" {
		sendRoomError(client, conn, "Invalid end room data")
		return
	}

	members, storageRefs, err := RoomStore.End(roomName, client.ID)
	if err != nil {
		sendRoomError(client, conn, err.Error())
		return
	}

	activeRooms.Set(float64(RoomStore.Count()))

	broadcastToMembers(members, WSMessage{Type: "room ended", Data: roomName})
	removeStorageRefs(storageRefs)
	broadcastRoomList()
}

func handleShareText(client *Client, conn *websocket.Conn, wsMsg *WSMessage) {
	data, err := decodeData[ShareTextRequest](wsMsg.Data)
	if err != nil || data.RoomName == "" {
		sendRoomError(client, conn, "Invalid share text data")
		return
	}

	members, err := RoomStore.AppendText(data.RoomName, client.ID, data.Text)
	if err != nil {
		sendRoomError(client, conn, err.Error())
		return
	}

	textsShared.Inc()
	broadcastToMembers(members, WSMessage{
		Type: "text shared",
		Data: TextShared{SenderID: client.ID, Text: data.Text},
	})
}

func handleDeleteFile(client *Client, conn *websocket.Conn, wsMsg *WSMessage) {
	data, err := decodeData[DeleteFileRequest](wsMsg.Data)
	if err != nil || data.RoomName == "" || data.FileURL == "" {
		sendRoomError(client, conn, "Invalid delete file data")
		return
	}

	storageRef, members, err := RoomStore.DeleteFile(data.RoomName, client.ID, data.FileURL)
	if err != nil {
		sendRoomError(client, conn, err.Error())
		return
	}

	filesDeleted.Inc()
	removeStorageRefs([]string{storageRef})
	broadcastToMembers(members, WSMessage{Type: "file deleted", Data: data.FileURL})
}
