package service

import (
	"context"
	"sort"
	"strings"

	"github.com/prn-tf/castellan/internal/domain"
	"github.com/prn-tf/castellan/internal/repository"
)

// MockUserRepository is an in-memory implementation of
// repository.UserRepository for service tests.
type MockUserRepository struct {
	users  map[int64]*domain.User
	nextID int64

	createErr error
	getErr    error
	updateErr error
	deleteErr error
	listErr   error

	// Call counters for asserting which store operations ran.
	getCalls    int
	updateCalls int
	deleteCalls int
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users:  make(map[int64]*domain.User),
		nextID: 1,
	}
}

// Seed adds a user directly, assigning the next ID.
func (m *MockUserRepository) Seed(user *domain.User) *domain.User {
	u := *user
	u.ID = m.nextID
	m.nextID++
	m.users[u.ID] = &u
	return &u
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return repository.ErrConflict
		}
	}
	user.ID = m.nextID
	m.nextID++
	u := *user
	m.users[u.ID] = &u
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	if u, ok := m.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockUserRepository) Update(ctx context.Context, user *domain.User) error {
	m.updateCalls++
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	for _, existing := range m.users {
		if existing.ID != user.ID && strings.EqualFold(existing.Email, user.Email) {
			return repository.ErrConflict
		}
	}
	u := *user
	m.users[u.ID] = &u
	return nil
}

func (m *MockUserRepository) Delete(ctx context.Context, id int64) error {
	m.deleteCalls++
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *MockUserRepository) List(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.User], error) {
	if m.listErr != nil {
		return nil, m.listErr
	}

	var matched []*domain.User
	term := strings.ToLower(opts.SearchTerm)
	for _, u := range m.users {
		if term != "" &&
			!strings.Contains(strings.ToLower(u.Name), term) &&
			!strings.Contains(strings.ToLower(u.Email), term) {
			continue
		}
		if opts.IsBlocked != nil && u.IsBlocked != *opts.IsBlocked {
			continue
		}
		copied := *u
		matched = append(matched, &copied)
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		var less bool
		switch opts.SortBy {
		case repository.SortByName:
			less = strings.ToLower(a.Name) < strings.ToLower(b.Name)
		case repository.SortByEmail:
			less = strings.ToLower(a.Email) < strings.ToLower(b.Email)
		default:
			less = a.ID < b.ID
		}
		if opts.Descending {
			less = !less
		}
		return less
	})

	total := int64(len(matched))
	start := opts.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + opts.PageSize
	if end > len(matched) {
		end = len(matched)
	}

	return &repository.ListResult[domain.User]{
		Items:    matched[start:end],
		Total:    total,
		Page:     opts.Page,
		PageSize: opts.PageSize,
	}, nil
}

func (m *MockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}
