package telegram

import (
	"maps"
	"sync"

	"mathcanvas/api/internal/calc"
)

const maxPixels = 18_000_000

type chatVars struct {
	mu   sync.Mutex
	vars calc.Variables
}

// VarStore keeps each chat's variable dictionary in memory. The pipeline
// only ever sees copies.
type VarStore struct {
	m sync.Map // chatID -> *chatVars
}

func (s *VarStore) get(chatID int64) *chatVars {
	v, _ := s.m.LoadOrStore(chatID, &chatVars{vars: calc.Variables{}})
	return v.(*chatVars)
}

// Snapshot returns a copy of the chat's variables, never nil.
func (s *VarStore) Snapshot(chatID int64) calc.Variables {
	cv := s.get(chatID)
	cv.mu.Lock()
	defer cv.mu.Unlock()
	return maps.Clone(cv.vars)
}

// Merge folds assignments into the chat's variables, overwriting old values.
func (s *VarStore) Merge(chatID int64, assigned calc.Variables) {
	if len(assigned) == 0 {
		return
	}
	cv := s.get(chatID)
	cv.mu.Lock()
	defer cv.mu.Unlock()
	maps.Copy(cv.vars, assigned)
}

func (s *VarStore) Reset(chatID int64) { s.m.Delete(chatID) }

func (r *Router) setEngine(chatID int64, name string) { r.chatEngine.Store(chatID, name) }

// engineFor returns the chat's chosen engine name, "" for the default.
func (r *Router) engineFor(chatID int64) string {
	if v, ok := r.chatEngine.Load(chatID); ok {
		if s, _ := v.(string); s != "" {
			return s
		}
	}
	return ""
}
