package rooms

const (
	KindText = "text"
	KindFile = "file"
)

// Entry is one history record, either a text message or a file share.
// Entries are immutable once appended; the only removal path is
// DeleteFile. StorageRef is the backing storage location and is never
// serialized toward clients.
type Entry struct {
	Kind       string `json:"kind"`
	SenderID   string `json:"senderId"`
	Text       string `json:"text,omitempty"`
	FileName   string `json:"fileName,omitempty"`
	FileURL    string `json:"fileUrl,omitempty"`
	StorageRef string `json:"-"`
}

// Callers hold room.mu for everything below.

func (r *Room) appendEntry(entry Entry) {
	r.history = append(r.history, entry)
}

// replay copies the history in append order. The copy keeps later
// appends from racing a replay already handed out.
func (r *Room) replay() []Entry {
	entries := make([]Entry, len(r.history))
	copy(entries, r.history)
	return entries
}

// removeFileEntry drops the first FileShare entry matching the public
// url, preserving the order of the rest.
func (r *Room) removeFileEntry(fileURL string) (storageRef string, ok bool) {
	for i, entry := range r.history {
		if entry.Kind == KindFile && entry.FileURL == fileURL {
			storageRef = entry.StorageRef
			r.history = append(r.history[:i], r.history[i+1:]...)
			return storageRef, true
		}
	}
	return "", false
}

func (r *Room) storageRefs() []string {
	var refs []string
	for _, entry := range r.history {
		if entry.Kind == KindFile && entry.StorageRef != "" {
			refs = append(refs, entry.StorageRef)
		}
	}
	return refs
}
