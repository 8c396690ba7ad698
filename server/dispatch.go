package main

import (
	"log"

	"github.com/gorilla/websocket"
)

func dispatchMessage(client *Client, conn *websocket.Conn, wsMsg WSMessage) {
	switch wsMsg.Type {
	case "create room":
		handleCreateRoom(client, conn, &wsMsg)
	case "join room":
		handleJoinRoom(client, conn, &wsMsg)
	case "end room":
		handleEndRoom(client, conn, &wsMsg)
	case "share text":
		handleShareText(client, conn, &wsMsg)
	case "delete file":
		handleDeleteFile(client, conn, &wsMsg)
	default:
		log.Println("Unknown message type:", wsMsg.Type)
	}
}
