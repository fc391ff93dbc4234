// Package session keeps the vehicles a user has picked for comparison.
// Sessions live in memory and expire after a period of inactivity.
package session

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"fipetracker/server/config"
	"fipetracker/server/internal/models"
)

// Session is one comparison set. Vehicles keep insertion order.
type Session struct {
	ID        string                   `json:"id"`
	Vehicles  []models.SelectedVehicle `json:"vehicles"`
	CreatedAt time.Time                `json:"created_at"`
	LastSeen  time.Time                `json:"last_seen"`
}

func (s *Session) clone() *Session {
	c := *s
	c.Vehicles = append(make([]models.SelectedVehicle, 0, len(s.Vehicles)), s.Vehicles...)
	return &c
}

func (s *Session) ModelYearIDs() []uint {
	ids := make([]uint, 0, len(s.Vehicles))
	for _, v := range s.Vehicles {
		ids = append(ids, v.ModelYearID)
	}
	return ids
}

// Store is a concurrency-safe set of sessions. Every method returns copies,
// callers never share state with the store.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
	logger   *logrus.Logger
}

func NewStore(ttl time.Duration, logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
	}
}

// Create starts an empty session.
func (st *Store) Create() *Session {
	now := st.now()
	s := &Session{
		ID:        uuid.NewString(),
		Vehicles:  []models.SelectedVehicle{},
		CreatedAt: now,
		LastSeen:  now,
	}

	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()

	return s.clone()
}

// lookup must be called with st.mu held.
func (st *Store) lookup(id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: malformed session id %q", models.ErrInvalidRequest, id)
	}
	s, ok := st.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", models.ErrNotFound, id)
	}
	return s, nil
}

// Get returns a session and marks it as used.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, err := st.lookup(id)
	if err != nil {
		return nil, err
	}
	s.LastSeen = st.now()
	return s.clone(), nil
}

func (st *Store) Delete(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, err := st.lookup(id); err != nil {
		return err
	}
	delete(st.sessions, id)
	return nil
}

// AddVehicle appends a vehicle with the first palette colour not already in
// use. A session holds at most config.MaxComparedVehicles vehicles and never
// the same model year twice.
func (st *Store) AddVehicle(id string, info models.VehicleInfo) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, err := st.lookup(id)
	if err != nil {
		return nil, err
	}
	if len(s.Vehicles) >= config.MaxComparedVehicles {
		return nil, fmt.Errorf("%w: at most %d vehicles can be compared", models.ErrInvalidRequest, config.MaxComparedVehicles)
	}

	used := make([]string, 0, len(s.Vehicles))
	for _, v := range s.Vehicles {
		if v.ModelYearID == info.ModelYearID {
			return nil, fmt.Errorf("%w: vehicle %d already selected", models.ErrInvalidRequest, info.ModelYearID)
		}
		used = append(used, v.DisplayColor)
	}

	s.Vehicles = append(s.Vehicles, models.SelectedVehicle{
		ModelYearID:     info.ModelYearID,
		BrandName:       info.BrandName,
		ModelName:       info.ModelName,
		YearDescription: info.YearDescription,
		DisplayColor:    config.FirstUnusedColor(used),
	})
	s.LastSeen = st.now()
	return s.clone(), nil
}

// RemoveVehicle drops a vehicle from a session. Its colour becomes free
// for the next addition.
func (st *Store) RemoveVehicle(id string, modelYearID uint) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, err := st.lookup(id)
	if err != nil {
		return nil, err
	}
	for i, v := range s.Vehicles {
		if v.ModelYearID == modelYearID {
			s.Vehicles = append(s.Vehicles[:i], s.Vehicles[i+1:]...)
			s.LastSeen = st.now()
			return s.clone(), nil
		}
	}
	return nil, fmt.Errorf("%w: vehicle %d is not in session %s", models.ErrNotFound, modelYearID, id)
}

// Sweep removes sessions idle for longer than the TTL and returns how many were removed.
func (st *Store) Sweep() int {
	if st.ttl <= 0 {
		return 0
	}
	cutoff := st.now().Add(-st.ttl)

	st.mu.Lock()
	defer st.mu.Unlock()

	removed := 0
	for id, s := range st.sessions {
		if s.LastSeen.Before(cutoff) {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
