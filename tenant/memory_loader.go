package tenant

import (
	"context"
	"sync"
)

type membershipKey struct {
	subjectID string
	tenantID  string
}

// MemoryLoader is an in-process MembershipLoader for tests and development.
type MemoryLoader struct {
	mu   sync.RWMutex
	rows map[membershipKey]Membership
}

func NewMemoryLoader() *MemoryLoader {
	return &MemoryLoader{rows: make(map[membershipKey]Membership)}
}

// Put adds or replaces a membership.
func (l *MemoryLoader) Put(subjectID, tenantID string, m Membership) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m.Permissions = append([]string(nil), m.Permissions...)
	l.rows[membershipKey{subjectID, tenantID}] = m
}

// Remove deletes a membership; it is a no-op when absent.
func (l *MemoryLoader) Remove(subjectID, tenantID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.rows, membershipKey{subjectID, tenantID})
}

func (l *MemoryLoader) LoadMembership(_ context.Context, subjectID, tenantID string) (Membership, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.rows[membershipKey{subjectID, tenantID}]
	if !ok {
		return Membership{}, ErrMembershipNotFound
	}
	m.Permissions = append([]string(nil), m.Permissions...)
	return m, nil
}
