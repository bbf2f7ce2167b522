package viewer

import (
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// Marker records which draw executions this display has already seen
// committed. It is a local cache layered on top of the shared document, not a
// source of truth: losing it only risks replaying a reveal animation.
type Marker interface {
	MarkCompleted(ownerSessionID string)
	IsCompleted(ownerSessionID string) bool
}

// MemoryMarker keeps completion marks for the life of the process.
type MemoryMarker struct {
	mu   sync.Mutex
	seen map[string]bool
}

func NewMemoryMarker() *MemoryMarker {
	return &MemoryMarker{seen: make(map[string]bool)}
}

func (m *MemoryMarker) MarkCompleted(ownerSessionID string) {
	if ownerSessionID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[ownerSessionID] = true
}

func (m *MemoryMarker) IsCompleted(ownerSessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seen[ownerSessionID]
}

// FileMarker persists the most recent completed owner id to a small file so
// the mark survives a display restart mid-event. Write failures are logged
// and ignored; the marker is best effort.
type FileMarker struct {
	path string
	mem  *MemoryMarker
}

func NewFileMarker(path string) *FileMarker {
	m := &FileMarker{path: path, mem: NewMemoryMarker()}
	if data, err := os.ReadFile(path); err == nil {
		for _, id := range strings.Fields(string(data)) {
			m.mem.MarkCompleted(id)
		}
	}
	return m
}

func (m *FileMarker) MarkCompleted(ownerSessionID string) {
	if ownerSessionID == "" || m.mem.IsCompleted(ownerSessionID) {
		return
	}
	m.mem.MarkCompleted(ownerSessionID)
	if err := os.WriteFile(m.path, []byte(ownerSessionID+"\n"), 0o644); err != nil {
		log.Debug().Err(err).Str("path", m.path).Msg("completion marker write failed")
	}
}

func (m *FileMarker) IsCompleted(ownerSessionID string) bool {
	return m.mem.IsCompleted(ownerSessionID)
}
