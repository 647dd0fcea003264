// Package memory is an in-process implementation of auth.Directory and
// sales.Store. It is used when no database is configured and in tests; it
// applies the same tenant filters and all-or-nothing writes as the
// PostgreSQL store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ventas.io/internal/apperr"
	"ventas.io/internal/auth"
	"ventas.io/internal/sales"
)

type product struct {
	ref       sales.ProductRef
	companyID int64
}

type saleRow struct {
	id         int64
	companyID  int64
	clientID   int64
	currencyID int64
	userID     int64
	discount   int64
	total      int64
	legalName  string
	taxID      string
	createdAt  time.Time
}

type lineRow struct {
	id           int64
	productID    int64
	quantity     int64
	unitPrice    int64
	lineDiscount int64
}

// Store keeps every table in maps guarded by one mutex. The mutex is never
// held while calling out of the package.
type Store struct {
	mu sync.RWMutex

	seq int64

	companies   map[int64]auth.Company
	users       map[int64]auth.User
	roles       map[int64]auth.Role
	permissions map[int64]auth.Permission
	userRoles   map[int64]map[int64]struct{}
	rolePerms   map[int64]map[int64]struct{}

	clients    map[int64]sales.Client
	currencies map[int64]sales.Currency
	products   map[int64]product
	sales      map[int64]saleRow
	lines      map[int64][]lineRow

	now func() time.Time
}

var (
	_ auth.Directory = (*Store)(nil)
	_ sales.Store    = (*Store)(nil)
)

// New returns an empty store.
func New() *Store {
	return &Store{
		companies:   make(map[int64]auth.Company),
		users:       make(map[int64]auth.User),
		roles:       make(map[int64]auth.Role),
		permissions: make(map[int64]auth.Permission),
		userRoles:   make(map[int64]map[int64]struct{}),
		rolePerms:   make(map[int64]map[int64]struct{}),
		clients:     make(map[int64]sales.Client),
		currencies:  make(map[int64]sales.Currency),
		products:    make(map[int64]product),
		sales:       make(map[int64]saleRow),
		lines:       make(map[int64][]lineRow),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

// --- provisioning ---

// AddCompany inserts c, assigning an id when c.ID is zero.
func (s *Store) AddCompany(c auth.Company) auth.Company {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.nextID()
	}
	s.companies[c.ID] = c
	return c
}

// SetCompanyActive flips the company's active flag.
func (s *Store) SetCompanyActive(id int64, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.companies[id]; ok {
		c.Active = active
		s.companies[id] = c
	}
}

// AddUser inserts u, assigning an id and subject when they are zero.
func (s *Store) AddUser(u auth.User) auth.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.nextID()
	}
	if u.Subject == uuid.Nil {
		u.Subject = uuid.New()
	}
	s.users[u.ID] = u
	return u
}

// SetUserActive flips the user's active flag.
func (s *Store) SetUserActive(id int64, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.Active = active
		s.users[id] = u
	}
}

// AddRole inserts r, assigning an id when r.ID is zero.
func (s *Store) AddRole(r auth.Role) auth.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == 0 {
		r.ID = s.nextID()
	}
	s.roles[r.ID] = r
	return r
}

// AddPermission returns the permission for (action, resource), creating it once.
func (s *Store) AddPermission(action, resource string) auth.Permission {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.permissions {
		if p.Action == action && p.Resource == resource {
			return p
		}
	}
	p := auth.Permission{ID: s.nextID(), Action: action, Resource: resource}
	s.permissions[p.ID] = p
	return p
}

// AssignRole records a user-role assignment. Nothing checks that the role's
// company matches the user's; resolution filters on it.
func (s *Store) AssignRole(userID, roleID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.userRoles[userID]
	if !ok {
		set = make(map[int64]struct{})
		s.userRoles[userID] = set
	}
	set[roleID] = struct{}{}
}

// GrantPermission records a role-permission grant.
func (s *Store) GrantPermission(roleID, permissionID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.rolePerms[roleID]
	if !ok {
		set = make(map[int64]struct{})
		s.rolePerms[roleID] = set
	}
	set[permissionID] = struct{}{}
}

// AddProduct inserts a product owned by companyID.
func (s *Store) AddProduct(companyID int64, ref sales.ProductRef) sales.ProductRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ref.ID == 0 {
		ref.ID = s.nextID()
	}
	s.products[ref.ID] = product{ref: ref, companyID: companyID}
	return ref
}

// --- auth.Directory ---

func (s *Store) LookupSubject(_ context.Context, subject uuid.UUID) (auth.User, auth.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Subject != subject {
			continue
		}
		c, ok := s.companies[u.CompanyID]
		if !ok {
			break
		}
		return u, c, nil
	}
	return auth.User{}, auth.Company{}, apperr.ErrSubjectNotProvisioned
}

func (s *Store) RolesForUser(_ context.Context, userID, companyID int64) ([]auth.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []auth.Role
	for roleID := range s.userRoles[userID] {
		r, ok := s.roles[roleID]
		if !ok || r.CompanyID != companyID {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) PermissionsForRoles(_ context.Context, roleIDs []int64) ([]auth.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[int64]struct{})
	var out []auth.Permission
	for _, roleID := range roleIDs {
		for permID := range s.rolePerms[roleID] {
			if _, ok := seen[permID]; ok {
				continue
			}
			p, ok := s.permissions[permID]
			if !ok {
				continue
			}
			seen[permID] = struct{}{}
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
