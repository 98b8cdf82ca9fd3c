package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	driverdomain "driver-provisioning/backend/internal/driver/domain"
	driverrepo "driver-provisioning/backend/internal/driver/repository"
	identitydomain "driver-provisioning/backend/internal/identity/domain"
	"driver-provisioning/backend/internal/identity/gateway"
	eventdomain "driver-provisioning/backend/internal/telemetry/domain"
)

// memIdentities is an in-memory identity service. Users are kept in creation
// order; searchBound limits FindByEmail to the first N users like the real
// paged scan.
type memIdentities struct {
	mu          sync.Mutex
	users       []*identitydomain.Identity
	passwords   map[string]string
	nextID      int
	searchBound int

	createErr error
	findErr   error
	updateErr error
	deleteErr error
	calls     []string
}

func newMemIdentities() *memIdentities {
	return &memIdentities{passwords: make(map[string]string)}
}

func (m *memIdentities) seed(email string) *identitydomain.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(email, "old-password", identitydomain.Metadata{FullName: "Old Name"})
}

func (m *memIdentities) insertLocked(email, password string, meta identitydomain.Metadata) *identitydomain.Identity {
	m.nextID++
	u := &identitydomain.Identity{
		ID:        fmt.Sprintf("auth-%d", m.nextID),
		Email:     email,
		Metadata:  meta,
		CreatedAt: time.Now().UTC(),
	}
	m.users = append(m.users, u)
	m.passwords[u.ID] = password
	return u
}

func (m *memIdentities) Create(ctx context.Context, p gateway.CreateParams) (*identitydomain.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "create")
	if m.createErr != nil {
		return nil, m.createErr
	}
	for _, u := range m.users {
		if strings.EqualFold(u.Email, p.Email) {
			return nil, &gateway.Error{Op: "create", Kind: gateway.KindConflict, Status: 422, Message: "A user with this email address has already been registered"}
		}
	}
	u := m.insertLocked(p.Email, p.Password, p.Metadata)
	u.AppMetadata = p.AppMetadata
	return u, nil
}

func (m *memIdentities) FindByEmail(ctx context.Context, email string) (*identitydomain.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "find")
	if m.findErr != nil {
		return nil, m.findErr
	}
	for i, u := range m.users {
		if m.searchBound > 0 && i >= m.searchBound {
			break
		}
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memIdentities) Update(ctx context.Context, id string, p gateway.UpdateParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "update")
	if m.updateErr != nil {
		return m.updateErr
	}
	for _, u := range m.users {
		if u.ID == id {
			u.Metadata = p.Metadata
			u.AppMetadata = p.AppMetadata
			if p.Password != "" {
				m.passwords[id] = p.Password
			}
			return nil
		}
	}
	return &gateway.Error{Op: "update", Kind: gateway.KindNotFound, Status: 404, Message: "User not found"}
}

func (m *memIdentities) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "delete")
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for i, u := range m.users {
		if u.ID == id {
			m.users = append(m.users[:i], m.users[i+1:]...)
			delete(m.passwords, id)
			return nil
		}
	}
	return &gateway.Error{Op: "delete", Kind: gateway.KindNotFound, Status: 404, Message: "User not found"}
}

func (m *memIdentities) byEmail(email string) []*identitydomain.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*identitydomain.Identity
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			out = append(out, u)
		}
	}
	return out
}

func (m *memIdentities) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return true
		}
	}
	return false
}

// memProfiles is an in-memory profile store with an atomic upsert keyed by
// AuthUserID. dupOnce makes the next Upsert report ErrDuplicate, as a
// read-then-write store would under a race.
type memProfiles struct {
	mu        sync.Mutex
	rows      map[string]*driverdomain.Driver // by ID
	nextID    int
	dupOnce   bool
	upsertErr error
	getErr    error
	deleteErr error
	upserts   int
	order     *[]string
}

func newMemProfiles() *memProfiles {
	return &memProfiles{rows: make(map[string]*driverdomain.Driver)}
}

func (m *memProfiles) GetByID(ctx context.Context, id string) (*driverdomain.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	d, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (m *memProfiles) Upsert(ctx context.Context, d *driverdomain.Driver) (*driverdomain.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.dupOnce {
		m.dupOnce = false
		return nil, driverrepo.ErrDuplicate
	}
	if m.upsertErr != nil {
		return nil, m.upsertErr
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	for _, row := range m.rows {
		if row.AuthUserID == d.AuthUserID {
			id, created := row.ID, row.CreatedAt
			*row = *d
			row.ID, row.CreatedAt, row.UpdatedAt = id, created, now
			cp := *row
			return &cp, nil
		}
	}
	m.nextID++
	row := *d
	row.ID = fmt.Sprintf("drv-%d", m.nextID)
	row.CreatedAt, row.UpdatedAt = now, now
	m.rows[row.ID] = &row
	cp := row
	return &cp, nil
}

func (m *memProfiles) DeleteByAuthUserID(ctx context.Context, authUserID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.order != nil {
		*m.order = append(*m.order, "profile")
	}
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for id, row := range m.rows {
		if row.AuthUserID == authUserID {
			delete(m.rows, id)
		}
	}
	return nil
}

func (m *memProfiles) DeleteByID(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.order != nil {
		*m.order = append(*m.order, "profile")
	}
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.rows, id)
	return nil
}

func (m *memProfiles) byAuthUser(authUserID string) []*driverdomain.Driver {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*driverdomain.Driver
	for _, row := range m.rows {
		if row.AuthUserID == authUserID {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out
}

// orderedIdentities records identity deletes into a shared order log.
type orderedIdentities struct {
	*memIdentities
	order *[]string
}

func (o orderedIdentities) Delete(ctx context.Context, id string) error {
	*o.order = append(*o.order, "identity")
	return o.memIdentities.Delete(ctx, id)
}

type fakeNotifier struct {
	mu    sync.Mutex
	link  string
	calls []string
}

func (n *fakeNotifier) NotifyCredentialSetup(ctx context.Context, email, fullName, identityID string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, identityID)
	return n.link
}

type auditEntry struct {
	action, targetID, outcome, metadata string
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (a *fakeAudit) LogEvent(ctx context.Context, action, targetID, outcome, metadata string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditEntry{action, targetID, outcome, metadata})
}

func (a *fakeAudit) last() auditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.entries) == 0 {
		return auditEntry{}
	}
	return a.entries[len(a.entries)-1]
}

type fakeEvents struct {
	mu     sync.Mutex
	events []*eventdomain.Event
	err    error
}

func (e *fakeEvents) Emit(ctx context.Context, event *eventdomain.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return e.err
}

func (e *fakeEvents) wait(n int) []*eventdomain.Event {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		e.mu.Lock()
		got := len(e.events)
		e.mu.Unlock()
		if got >= n {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*eventdomain.Event(nil), e.events...)
}

var errDB = errors.New("connection reset by peer")
