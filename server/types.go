package main

import (
	"log"

	"github.com/gorilla/websocket"
)

type Client struct {
	ID        string
	Conn      *websocket.Conn
	SendQueue chan WSMessage
	Done      chan struct{}
}

func (c *Client) WritePump() {
	defer c.Conn.Close()

	for {
		select {
		case msg, ok := <-c.SendQueue:
			if !ok {
				return
			}

			if err := c.Conn.WriteJSON(msg); err != nil {
				log.Println("WritePump error:", err)
				return
			}
		case <-c.Done:
			return
		}
	}
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type RoomRequest struct {
	RoomName string `json:"roomName"`
	Password string `json:"password"`
}

type ShareTextRequest struct {
	RoomName string `json:"roomName"`
	Text     string `json:"text"`
}

type DeleteFileRequest struct {
	RoomName string `json:"roomName"`
	FileURL  string `json:"fileUrl"`
}

type TextShared struct {
	SenderID string `json:"senderId"`
	Text     string `json:"text"`
}

type FileShared struct {
	SenderID string `json:"senderId"`
	FileName string `json:"fileName"`
	FileURL  string `json:"fileUrl"`
}

type UploadGrant struct {
	RoomName string `json:"roomName"`
	Token    string `json:"token"`
}
