package agent

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/client"
)

type Condition uint32

const (
	ConditionInitialized = Condition(1 << 0)
	ConditionConnected   = Condition(1 << 1)
	ConditionLive        = Condition(1 << 2)
)

func (c Condition) String() string {
	status := make([]string, 0, 3)
	if c&ConditionInitialized > 0 {
		status = append(status, "INITIALIZED")
	}
	if c&ConditionConnected > 0 {
		status = append(status, "CONNECTED")
	}
	if c&ConditionLive > 0 {
		status = append(status, "LIVE")
	}
	if len(status) > 0 {
		return strings.Join(status, "|")
	}
	return "NO INITIALIZED"
}

// Status is written by the runner goroutine and read by the http and
// control handlers
type Status struct {
	mu         sync.RWMutex
	condition  Condition
	session    client.Session
	updateTime time.Time
	attempts   uint32
	lastError  string
	popularity atomic.Uint32
	hits       sync.Map // cmd: *atomic.Uint32
}

type StatusSnapshot struct {
	RoomID     uint64            `json:"room_id"`
	Host       string            `json:"host"`
	Condition  Condition         `json:"condition"`
	Status     string            `json:"status"`
	UpdateTime time.Time         `json:"update_time"`
	Attempts   uint32            `json:"attempts"`
	LastError  string            `json:"last_error,omitempty"`
	Popularity uint32            `json:"popularity"`
	HitStatus  map[string]uint32 `json:"hit_status"`
}

func (s *Status) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.condition&ConditionInitialized > 0 && s.condition&ConditionConnected > 0
}

func (s *Status) Condition() Condition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.condition
}

func (s *Status) set(c Condition, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on {
		s.condition |= c
	} else {
		s.condition &^= c
	}
	s.updateTime = time.Now()
}

func (s *Status) connected(session client.Session) {
	s.mu.Lock()
	s.session = session
	s.lastError = ""
	s.mu.Unlock()
	s.set(ConditionInitialized|ConditionConnected, true)
}

func (s *Status) disconnected(err error) {
	s.mu.Lock()
	s.attempts++
	if err != nil {
		s.lastError = err.Error()
	}
	s.mu.Unlock()
	s.set(ConditionConnected, false)
}

func (s *Status) hit(cmd string) {
	counter, _ := s.hits.LoadOrStore(cmd, &atomic.Uint32{})
	counter.(*atomic.Uint32).Add(1)
}

func (s *Status) Hits(cmd string) uint32 {
	counter, ok := s.hits.Load(cmd)
	if !ok {
		return 0
	}
	return counter.(*atomic.Uint32).Load()
}

func (s *Status) Snapshot() StatusSnapshot {
	s.mu.RLock()
	snap := StatusSnapshot{
		RoomID:     s.session.RoomID,
		Host:       s.session.Host.Host,
		Condition:  s.condition,
		Status:     s.condition.String(),
		UpdateTime: s.updateTime,
		Attempts:   s.attempts,
		LastError:  s.lastError,
		Popularity: s.popularity.Load(),
		HitStatus:  make(map[string]uint32),
	}
	s.mu.RUnlock()
	s.hits.Range(func(key, value any) bool {
		snap.HitStatus[key.(string)] = value.(*atomic.Uint32).Load()
		return true
	})
	return snap
}
