package main

import (
	"errors"
	"log"

	"github.com/gin-gonic/gin"

	"shareroom/rooms"
	"shareroom/tokens"
	"shareroom/uploads"
)

// uploadTokenSecret signs upload grants. Set from the environment or
// generated fresh at startup; grants die with the process either way.
var uploadTokenSecret string

func HandleUpload(c *gin.Context) {
	roomName := c.PostForm("roomName")
	senderID := c.PostForm("senderId")
	token := c.PostForm("token")
	if roomName == "" || senderID == "" {
		c.JSON(400, gin.H{"error": "roomName and senderId are required"})
		return
	}
	if err := tokens.Verify(uploadTokenSecret, token, roomName, senderID); err != nil {
		c.JSON(401, gin.H{"error": "Invalid upload token"})
		return
	}

	// A grant outlives the membership that earned it: the sender may
	// have left, or the room may have been ended and recreated under
	// the same name. Only current members get to upload.
	memberIDs, err := RoomStore.Members(roomName)
	if err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	if !containsMember(memberIDs, senderID) {
		c.JSON(403, gin.H{"error": "Not a member of that room"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(400, gin.H{"error": "A file is required"})
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to read uploaded file"})
		return
	}
	defer src.Close()

	stored, err := UploadStore.Save(src, fileHeader.Filename, roomName, senderID)
	if err != nil {
		log.Println("Failed to store upload:", err)
		c.JSON(500, gin.H{"error": "Failed to store file"})
		return
	}

	members, err := RoomStore.AppendFile(roomName, senderID, stored.OriginalName, stored.URL, stored.Name)
	if err != nil {
		// The room died between grant and upload; the file has no owner.
		if removeErr := UploadStore.Remove(stored.Name); removeErr != nil {
			log.Println("Failed to delete orphaned upload:", stored.Name, removeErr)
		}
		if errors.Is(err, rooms.ErrRoomNotFound) {
			c.JSON(400, gin.H{"error": err.Error()})
		} else {
			c.JSON(500, gin.H{"error": "Failed to record file share"})
		}
		return
	}

	filesShared.Inc()
	broadcastToMembers(members, WSMessage{
		Type: "file shared",
		Data: FileShared{SenderID: senderID, FileName: stored.OriginalName, FileURL: stored.URL},
	})

	c.JSON(200, gin.H{"fileUrl": stored.URL})
}

func containsMember(memberIDs []string, id string) bool {
	for _, member := range memberIDs {
		if member == id {
			return true
		}
	}
	return false
}

func HandleServeUpload(c *gin.Context) {
	name := c.Param("name")

	path, err := UploadStore.Resolve(name)
	if err != nil {
		if errors.Is(err, uploads.ErrNotStored) {
			c.JSON(404, gin.H{"error": "File not found"})
		} else {
			c.JSON(500, gin.H{"error": "Failed to resolve file"})
		}
		return
	}

	c.File(path)
}
