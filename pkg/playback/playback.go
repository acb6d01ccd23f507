package playback

import (
	"crypto/rand"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var ErrNotFound = errors.New("playback source not found")

const defaultContentType = "video/mp4"

type Blob struct {
	ID          string
	ContentType string
	Data        []byte
	CreatedAt   time.Time
}

// Store keeps processed media in memory and hands out local URLs for it, the
// way a page creates object URLs for downloaded blobs. Nothing outlives the
// process.
type Store struct {
	mu      sync.RWMutex
	prefix  string
	blobs   map[string]*Blob
	entropy *ulid.MonotonicEntropy
}

func NewStore(prefix string) *Store {
	return &Store{
		prefix:  prefix,
		blobs:   make(map[string]*Blob),
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Create registers data and returns its id and URL.
func (s *Store) Create(data []byte, contentType string) (string, string, error) {
	if contentType == "" {
		contentType = defaultContentType
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	id, err := ulid.New(ulid.Timestamp(now), s.entropy)
	if err != nil {
		return "", "", err
	}

	s.blobs[id.String()] = &Blob{
		ID:          id.String(),
		ContentType: contentType,
		Data:        data,
		CreatedAt:   now,
	}

	return id.String(), s.URL(id.String()), nil
}

func (s *Store) URL(id string) string {
	return s.prefix + "/" + id
}

func (s *Store) Get(id string) (*Blob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.blobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return b, nil
}

func (s *Store) Revoke(id string) {
	s.mu.Lock()
	delete(s.blobs, id)
	s.mu.Unlock()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

// Player is the playback element: it holds one source at a time and revokes
// the previous one when the source changes.
type Player struct {
	mu     sync.RWMutex
	store  *Store
	source string
	id     string
}

func NewPlayer(store *Store) *Player {
	return &Player{store: store}
}

func (p *Player) SetSource(id string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.id != "" && p.id != id {
		p.store.Revoke(p.id)
	}
	p.id = id
	p.source = p.store.URL(id)
	return p.source
}

// Clear revokes the current source and leaves the player empty.
func (p *Player) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.id != "" {
		p.store.Revoke(p.id)
	}
	p.id = ""
	p.source = ""
}

func (p *Player) Source() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.source
}
