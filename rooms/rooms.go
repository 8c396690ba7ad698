package rooms

import (
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Every store operation resolves to success or one of these. They are
// sent verbatim to the requesting client as a "room error" message.
var (
	ErrRoomExists    = errors.New("A room with that name already exists")
	ErrRoomNotFound  = errors.New("Room not found")
	ErrWrongPassword = errors.New("Incorrect room password")
	ErrNotCreator    = errors.New("Only the room creator can do that")
	ErrFileNotFound  = errors.New("No shared file matches that url")
)

// Room lives from a successful Create until its member set empties or
// its creator ends it. The name is the primary key; once the room is
// removed the name is immediately free again.
type Room struct {
	Name         string
	CreatorID    string
	passwordHash []byte
	members      []string // connection IDs in join order
	history      []Entry
	removed      bool // set under mu when the room is destroyed
	mu           sync.Mutex
}

// Summary is the broadcastable per-room snapshot. It deliberately
// carries no password material.
type Summary struct {
	Protected bool `json:"protected"`
}

// Departure reports what happened to one room when a connection left.
type Departure struct {
	Room        string
	Emptied     bool
	StorageRefs []string // backing refs to clean up, only set when Emptied
}

type Store struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

func NewStore() *Store {
	return &Store{rooms: make(map[string]*Room)}
}

// Create registers a room with the creator as its only member. The
// password is bcrypt-hashed before the name index is touched so the
// lock is never held across the hash.
func (s *Store) Create(name, password, creatorID string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rooms[name]; exists {
		return ErrRoomExists
	}
	s.rooms[name] = &Room{
		Name:         name,
		CreatorID:    creatorID,
		passwordHash: hash,
		members:      []string{creatorID},
	}
	return nil
}

func (s *Store) get(name string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[name]
	return room, ok
}

// lockRoom returns the room with its mutex held. Leave and End mark a
// room removed under its mutex before dropping it from the index, so
// a caller whose lookup raced the teardown observes the removal here
// instead of mutating an orphaned room.
func (s *Store) lockRoom(name string) (*Room, bool) {
	room, ok := s.get(name)
	if !ok {
		return nil, false
	}
	room.mu.Lock()
	if room.removed {
		room.mu.Unlock()
		return nil, false
	}
	return room, true
}

// Join checks the password and adds the connection to the member set,
// returning the history replay for the joiner. Joining a room the
// connection already belongs to is idempotent: no duplicate member
// entry, but a fresh replay is still returned.
func (s *Store) Join(name, password, connID string) ([]Entry, error) {
	room, ok := s.lockRoom(name)
	if !ok {
		return nil, ErrRoomNotFound
	}
	defer room.mu.Unlock()
	if err := bcrypt.CompareHashAndPassword(room.passwordHash, []byte(password)); err != nil {
		return nil, ErrWrongPassword
	}
	if !containsID(room.members, connID) {
		room.members = append(room.members, connID)
	}
	return room.replay(), nil
}

// Leave removes the connection from every room it belongs to. Rooms
// whose member set empties are destroyed; their backing file refs are
// returned so the caller can delete the storage outside any lock.
func (s *Store) Leave(connID string) []Departure {
	s.mu.Lock()
	defer s.mu.Unlock()

	var departures []Departure
	for name, room := range s.rooms {
		room.mu.Lock()
		before := len(room.members)
		room.members = removeID(room.members, connID)
		if len(room.members) == before {
			room.mu.Unlock()
			continue
		}
		dep := Departure{Room: name}
		if len(room.members) == 0 {
			dep.Emptied = true
			dep.StorageRefs = room.storageRefs()
			room.removed = true
			delete(s.rooms, name)
		}
		room.mu.Unlock()
		departures = append(departures, dep)
	}
	return departures
}

// End destroys a room on behalf of its creator. It returns the member
// set at termination for the "room ended" broadcast, plus the backing
// refs of every FileShare entry for cleanup.
func (s *Store) End(name, connID string) (members []string, storageRefs []string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[name]
	if !ok {
		return nil, nil, ErrRoomNotFound
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	if room.CreatorID != connID {
		return nil, nil, ErrNotCreator
	}
	members = append([]string(nil), room.members...)
	storageRefs = room.storageRefs()
	room.removed = true
	delete(s.rooms, name)
	return members, storageRefs, nil
}

// AppendText records a text entry and returns the member set at
// dispatch time, so the caller broadcasts to exactly the members the
// append observed.
func (s *Store) AppendText(name, senderID, text string) ([]string, error) {
	room, ok := s.lockRoom(name)
	if !ok {
		return nil, ErrRoomNotFound
	}
	defer room.mu.Unlock()
	room.appendEntry(Entry{Kind: KindText, SenderID: senderID, Text: text})
	return append([]string(nil), room.members...), nil
}

// AppendFile records a file-share entry. The storage ref is internal
// only and never serialized toward clients.
func (s *Store) AppendFile(name, senderID, fileName, fileURL, storageRef string) ([]string, error) {
	room, ok := s.lockRoom(name)
	if !ok {
		return nil, ErrRoomNotFound
	}
	defer room.mu.Unlock()
	room.appendEntry(Entry{
		Kind:       KindFile,
		SenderID:   senderID,
		FileName:   fileName,
		FileURL:    fileURL,
		StorageRef: storageRef,
	})
	return append([]string(nil), room.members...), nil
}

// DeleteFile removes exactly one FileShare entry matching the public
// url and hands back its storage ref. The history removal is never
// rolled back if the backing deletion later fails.
func (s *Store) DeleteFile(name, requesterID, fileURL string) (storageRef string, members []string, err error) {
	room, ok := s.lockRoom(name)
	if !ok {
		return "", nil, ErrRoomNotFound
	}
	defer room.mu.Unlock()
	if room.CreatorID != requesterID {
		return "", nil, ErrNotCreator
	}
	ref, ok := room.removeFileEntry(fileURL)
	if !ok {
		return "", nil, ErrFileNotFound
	}
	return ref, append([]string(nil), room.members...), nil
}

// Snapshot is the outward-facing room listing.
func (s *Store) Snapshot() map[string]Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	listing := make(map[string]Summary, len(s.rooms))
	for name := range s.rooms {
		listing[name] = Summary{Protected: true}
	}
	return listing
}

// Members returns the current member set of a room.
func (s *Store) Members(name string) ([]string, error) {
	room, ok := s.lockRoom(name)
	if !ok {
		return nil, ErrRoomNotFound
	}
	defer room.mu.Unlock()
	return append([]string(nil), room.members...), nil
}

// Count reports the number of live rooms.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

func containsID(ids []string, id string) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}

func removeID(ids []string, id string) []string {
	kept := ids[:0]
	for _, existing := range ids {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	return kept
}
