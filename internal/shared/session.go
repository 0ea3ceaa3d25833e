package shared

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultActor = "Sales Engineer"

// FlashMessage is a one-time notice shown after a mutation, popped on read.
type FlashMessage struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// SessionManager keeps anonymous browser sessions in Redis. The cookie holds
// the session id plus an HMAC of it, so a forged id never reaches Redis.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
	secret     []byte
}

// Session is the per-browser state: free-form values, the display name used
// on generated documents, and pending flash messages.
type Session struct {
	ID      string
	values  map[string]string
	actor   string
	flashes []FlashMessage
	isNew   bool
	dirty   bool
}

type sessionRecord struct {
	Values  map[string]string `json:"values,omitempty"`
	Actor   string            `json:"actor,omitempty"`
	Flashes []FlashMessage    `json:"flashes,omitempty"`
}

// NewSessionManager constructs a SessionManager. ttl is sliding: every
// committed request extends it.
func NewSessionManager(client *redis.Client, cookieName string, secret string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
		secret:     []byte(secret),
	}
}

// Load returns the request's session, or a fresh one when the cookie is
// absent or fails its signature check.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return sm.newSession(), nil
		}
		return nil, err
	}
	id, ok := sm.verify(cookie.Value)
	if !ok {
		return sm.newSession(), nil
	}

	raw, err := sm.client.Get(ctx, sm.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		// Expired in Redis: keep the browser's id so wizard keys stay stable.
		sess := &Session{ID: id, values: map[string]string{}, dirty: true}
		return sess, nil
	}
	if err != nil {
		return nil, err
	}

	var rec sessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	sess := &Session{ID: id, values: rec.Values, actor: rec.Actor, flashes: rec.Flashes}
	if sess.values == nil {
		sess.values = map[string]string{}
	}
	return sess, nil
}

// Commit writes a changed session back, refreshes the expiry of an
// unchanged one, and sets the cookie for new sessions.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, _ *http.Request, sess *Session) error {
	if sess == nil {
		return nil
	}
	if sess.dirty {
		data, err := json.Marshal(sessionRecord{Values: sess.values, Actor: sess.actor, Flashes: sess.flashes})
		if err != nil {
			return err
		}
		if err := sm.client.Set(ctx, sm.key(sess.ID), data, sm.ttl).Err(); err != nil {
			return err
		}
		sess.dirty = false
	} else if err := sm.client.Expire(ctx, sm.key(sess.ID), sm.ttl).Err(); err != nil {
		return err
	}

	if sess.isNew {
		http.SetCookie(w, &http.Cookie{
			Name:     sm.cookieName,
			Value:    sm.sign(sess.ID),
			Path:     "/",
			HttpOnly: true,
			Secure:   sm.secure,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   int(sm.ttl / time.Second),
		})
		sess.isNew = false
	}
	return nil
}

// Set stores a key-value pair.
func (s *Session) Set(key, value string) {
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
	s.dirty = true
}

// Get retrieves a value.
func (s *Session) Get(key string) string {
	return s.values[key]
}

// SetActor records the display name used for "prepared by" and "uploaded by" fields.
func (s *Session) SetActor(name string) {
	s.actor = name
	s.dirty = true
}

// Actor returns the display name, falling back to "Sales Engineer".
func (s *Session) Actor() string {
	if s == nil || s.actor == "" {
		return defaultActor
	}
	return s.actor
}

// AddFlash queues a flash message.
func (s *Session) AddFlash(msg FlashMessage) {
	s.flashes = append(s.flashes, msg)
	s.dirty = true
}

// PopFlash retrieves and clears the oldest flash message.
func (s *Session) PopFlash() *FlashMessage {
	if len(s.flashes) == 0 {
		return nil
	}
	msg := s.flashes[0]
	s.flashes = s.flashes[1:]
	s.dirty = true
	return &msg
}

// NewSessionForTest returns an unsaved session with the given id.
func NewSessionForTest(id string) *Session {
	return &Session{ID: id, values: make(map[string]string), isNew: true, dirty: true}
}

func (sm *SessionManager) newSession() *Session {
	return &Session{
		ID:     uuid.NewString(),
		values: make(map[string]string),
		isNew:  true,
		dirty:  true,
	}
}

func (sm *SessionManager) key(id string) string {
	return "session:" + id
}

func (sm *SessionManager) sign(id string) string {
	return id + "." + sm.mac(id)
}

func (sm *SessionManager) verify(value string) (string, bool) {
	id, mac, ok := strings.Cut(value, ".")
	if !ok || id == "" {
		return "", false
	}
	return id, hmac.Equal([]byte(mac), []byte(sm.mac(id)))
}

func (sm *SessionManager) mac(id string) string {
	h := hmac.New(sha256.New, sm.secret)
	_, _ = h.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
