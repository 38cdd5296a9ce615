package shared

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// FlashMessage represents a one-time notification shown on the next page render.
type FlashMessage struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Flash kinds understood by the layout template.
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashInfo    = "info"
)

// StorageManager keeps per-browser key/value storage in Redis, addressed by a
// browser id cookie. It plays the role local storage plays in a browser tab:
// durable across page loads, never read by the route guard.
type StorageManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
	secret     []byte
}

// Storage holds the browser storage loaded for one request. A nil *Storage is
// valid and behaves as unavailable storage: writes are dropped, reads are empty.
type Storage struct {
	ID      string
	values  map[string]string
	flashes []FlashMessage
	isNew   bool
	dirty   bool
	rotate  bool
}

type storagePayload struct {
	Values  map[string]string `json:"values"`
	Flashes []FlashMessage    `json:"flashes"`
}

// NewStorageManager constructs a StorageManager.
func NewStorageManager(client *redis.Client, cookieName string, secret string, ttl time.Duration, secure bool) *StorageManager {
	return &StorageManager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
		secret:     []byte(secret),
	}
}

// Load loads or creates the browser storage for request.
func (sm *StorageManager) Load(ctx context.Context, r *http.Request) (*Storage, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return sm.newStorage(), nil
		}
		return nil, err
	}

	payload, err := sm.client.Get(ctx, sm.redisKey(cookie.Value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			st := sm.newStorage()
			st.ID = cookie.Value
			return st, nil
		}
		return nil, err
	}

	var stored storagePayload
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, err
	}

	st := sm.newStorage()
	st.ID = cookie.Value
	if stored.Values != nil {
		st.values = stored.Values
	}
	st.flashes = stored.Flashes
	st.isNew = false
	st.dirty = false
	return st, nil
}

// Commit persists the storage and writes the browser id cookie.
func (sm *StorageManager) Commit(ctx context.Context, w http.ResponseWriter, r *http.Request, st *Storage) error {
	if st == nil {
		return nil
	}

	if st.rotate {
		if st.ID != "" {
			if err := sm.client.Del(ctx, sm.redisKey(st.ID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
		}
		st.ID = ""
		st.rotate = false
		st.isNew = true
	}

	if st.ID == "" {
		st.ID = sm.generateID()
	}

	if st.dirty || st.isNew {
		data, err := json.Marshal(storagePayload{Values: st.values, Flashes: st.flashes})
		if err != nil {
			return err
		}
		if err := sm.client.Set(ctx, sm.redisKey(st.ID), data, sm.ttl).Err(); err != nil {
			return err
		}
		st.dirty = false
		st.isNew = false
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    st.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(sm.ttl),
	})
	return nil
}

// Set stores a key-value pair.
func (s *Storage) Set(key, value string) {
	if s == nil {
		return
	}
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
	s.dirty = true
}

// Get retrieves a value.
func (s *Storage) Get(key string) string {
	if s == nil || s.values == nil {
		return ""
	}
	return s.values[key]
}

// Delete removes a value. Deleting a missing key is a no-op.
func (s *Storage) Delete(key string) {
	if s == nil || s.values == nil {
		return
	}
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	s.dirty = true
}

// Reset drops every stored value and moves the browser to a fresh storage id
// on commit. Queued flashes are kept so a notice can follow the reset.
func (s *Storage) Reset() {
	if s == nil {
		return
	}
	s.values = make(map[string]string)
	s.rotate = true
	s.dirty = true
}

// AddFlash queues a flash message.
func (s *Storage) AddFlash(msg FlashMessage) {
	if s == nil {
		return
	}
	s.flashes = append(s.flashes, msg)
	s.dirty = true
}

// PopFlash retrieves and clears the oldest flash message.
func (s *Storage) PopFlash() *FlashMessage {
	if s == nil || len(s.flashes) == 0 {
		return nil
	}
	msg := s.flashes[0]
	s.flashes = s.flashes[1:]
	s.dirty = true
	return &msg
}

func (sm *StorageManager) newStorage() *Storage {
	return &Storage{
		ID:     sm.generateID(),
		values: make(map[string]string),
		isNew:  true,
		dirty:  true,
	}
}

func (sm *StorageManager) redisKey(id string) string {
	return "storage:" + id
}

func (sm *StorageManager) generateID() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return base64.RawURLEncoding.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano)))
	}
	if len(sm.secret) > 0 {
		for i := range b {
			b[i] ^= sm.secret[i%len(sm.secret)]
		}
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
