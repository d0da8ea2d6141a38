package memory

import (
	"sort"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
)

// State is an in-memory player state. It implements ports.Inventory,
// ports.Traits, ports.Flags, ports.IntFlags and ports.Relationships.
// Safe for concurrent use.
type State struct {
	mu            sync.RWMutex
	items         map[string]bool
	traits        map[string]bool
	flags         map[string]bool
	ints          map[string]int
	relationships map[string]int
}

// NewState creates an empty player state.
func NewState() *State {
	return &State{
		items:         make(map[string]bool),
		traits:        make(map[string]bool),
		flags:         make(map[string]bool),
		ints:          make(map[string]int),
		relationships: make(map[string]int),
	}
}

func (s *State) HasItem(item domain.AssetRef) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items[item.Path]
}

func (s *State) AddItem(item domain.AssetRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.Path] = true
}

func (s *State) RemoveItem(item domain.AssetRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, item.Path)
}

func (s *State) HasTrait(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.traits[name]
}

func (s *State) AddTrait(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traits[name] = true
}

func (s *State) GetFlag(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags[name]
}

func (s *State) SetFlag(name string, value bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[name] = value
}

func (s *State) GetInt(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ints[name]
}

func (s *State) SetInt(name string, value int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ints[name] = value
}

func (s *State) ModifyRelationship(character domain.AssetRef, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relationships[character.Path] += delta
}

// Relationship returns the relationship value with a character.
func (s *State) Relationship(character domain.AssetRef) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.relationships[character.Path]
}

// StateView is a serializable copy of a player state.
type StateView struct {
	Items         []string        `json:"items"`
	Traits        []string        `json:"traits"`
	Flags         map[string]bool `json:"flags"`
	Ints          map[string]int  `json:"ints"`
	Relationships map[string]int  `json:"relationships"`
}

// View copies the current state.
func (s *State) View() StateView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := StateView{
		Items:         keys(s.items),
		Traits:        keys(s.traits),
		Flags:         make(map[string]bool, len(s.flags)),
		Ints:          make(map[string]int, len(s.ints)),
		Relationships: make(map[string]int, len(s.relationships)),
	}
	for k, val := range s.flags {
		v.Flags[k] = val
	}
	for k, val := range s.ints {
		v.Ints[k] = val
	}
	for k, val := range s.relationships {
		v.Relationships[k] = val
	}
	return v
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
