package session

import (
	"fmt"
	"sync"
)

// Participant is one connected member of a game session. Exactly one
// participant per session holds the authority role; only the authority
// applies mutations to shared entities.
type Participant struct {
	// UID is the unique participant identifier.
	UID string
	// Name is the display name (for logging and notices).
	Name string
	// Authority marks the single participant allowed to mutate shared state.
	Authority bool
	// ActorIDs lists the entity ids this participant owns and may mutate
	// directly without routing through the authority.
	ActorIDs []string
	// Entity is the bridge entity for pushing events to the participant.
	Entity *BridgeEntity
}

// OwnsActor reports whether the participant owns the given entity.
func (p *Participant) OwnsActor(actorID string) bool {
	for _, id := range p.ActorIDs {
		if id == actorID {
			return true
		}
	}
	return false
}

// Manager tracks the participants of one session.
// All methods are safe for concurrent use.
type Manager struct {
	mu           sync.RWMutex
	participants map[string]*Participant
	authorityUID string
}

// NewManager creates an empty session Manager.
func NewManager() *Manager {
	return &Manager{
		participants: make(map[string]*Participant),
	}
}

// Join registers a new participant.
//
// Precondition: uid and name must be non-empty.
// Postcondition: Returns the created Participant, or an error if the UID is
// already registered or a second participant claims authority.
func (m *Manager) Join(uid, name string, authority bool) (*Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.participants[uid]; exists {
		return nil, fmt.Errorf("participant %q already joined", uid)
	}
	if authority && m.authorityUID != "" {
		return nil, fmt.Errorf("session already has an authority (%s)", m.authorityUID)
	}

	p := &Participant{
		UID:       uid,
		Name:      name,
		Authority: authority,
		Entity:    NewBridgeEntity(uid, 64),
	}
	m.participants[uid] = p
	if authority {
		m.authorityUID = uid
	}
	return p, nil
}

// Leave removes a participant and closes its push channel.
//
// Postcondition: The participant is removed. Returns an error if not found.
func (m *Manager) Leave(uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, exists := m.participants[uid]
	if !exists {
		return fmt.Errorf("participant %q not found", uid)
	}
	delete(m.participants, uid)
	if m.authorityUID == uid {
		m.authorityUID = ""
	}
	return p.Entity.Close()
}

// Get returns a participant by uid, or nil.
func (m *Manager) Get(uid string) *Participant {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.participants[uid]
}

// Authority returns the participant holding the authority role, or nil if
// none has joined yet.
func (m *Manager) Authority() *Participant {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.authorityUID == "" {
		return nil
	}
	return m.participants[m.authorityUID]
}

// OwnerOf returns the participant owning the given entity, or nil.
func (m *Manager) OwnerOf(actorID string) *Participant {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.participants {
		if p.OwnsActor(actorID) {
			return p
		}
	}
	return nil
}

// AssignActor records that a participant owns an entity.
//
// Postcondition: OwnerOf(actorID) returns the participant. Returns an error
// if the participant is unknown.
func (m *Manager) AssignActor(uid, actorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, exists := m.participants[uid]
	if !exists {
		return fmt.Errorf("participant %q not found", uid)
	}
	if !p.OwnsActor(actorID) {
		p.ActorIDs = append(p.ActorIDs, actorID)
	}
	return nil
}

// All returns a snapshot of the current participants.
func (m *Manager) All() []*Participant {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Participant, 0, len(m.participants))
	for _, p := range m.participants {
		out = append(out, p)
	}
	return out
}

// Broadcast pushes data to every participant. Push failures (closed or full
// entities) are skipped; delivery is best effort.
func (m *Manager) Broadcast(data []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.participants {
		_ = p.Entity.Push(data) //nolint:errcheck
	}
}

// Count returns the number of joined participants.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.participants)
}
