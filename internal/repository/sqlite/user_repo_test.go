package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/castellan/internal/domain"
	"github.com/prn-tf/castellan/internal/repository"
)

func newTestRepo(t *testing.T) repository.UserRepository {
	t.Helper()

	db, err := NewDB(context.Background(), DefaultConfig(":memory:"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(context.Background()))
	return NewUserRepository(db)
}

func createUser(t *testing.T, repo repository.UserRepository, name, email string) *domain.User {
	t.Helper()
	user := domain.NewUser(name, email, "$2a$10$hash")
	require.NoError(t, repo.Create(context.Background(), user))
	return user
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	user := createUser(t, repo, "Alice", "alice@example.com")
	require.NotZero(t, user.ID)

	byID, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "Alice", byID.Name)
	require.Equal(t, "alice@example.com", byID.Email)
	require.Equal(t, "$2a$10$hash", byID.PasswordHash)
	require.False(t, byID.IsBlocked)
	require.Nil(t, byID.LastLogin)

	byEmail, err := repo.GetByEmail(ctx, "ALICE@EXAMPLE.COM")
	require.NoError(t, err, "email lookup is case-insensitive")
	require.Equal(t, user.ID, byEmail.ID)
}

func TestUserRepository_GetNotFound(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, 12345)
	require.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserRepository_EmailUniqueCaseInsensitive(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	createUser(t, repo, "Alice", "alice@example.com")

	dup := domain.NewUser("Impostor", "Alice@Example.COM", "h")
	err := repo.Create(ctx, dup)
	require.ErrorIs(t, err, repository.ErrConflict)
}

func TestUserRepository_Update(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	user := createUser(t, repo, "Alice", "alice@example.com")

	now := time.Now().UTC().Truncate(time.Second)
	user.Name = "Alice Smith"
	user.IsBlocked = true
	user.LastLogin = &now
	require.NoError(t, repo.Update(ctx, user))

	stored, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "Alice Smith", stored.Name)
	require.True(t, stored.IsBlocked)
	require.NotNil(t, stored.LastLogin)
	require.True(t, stored.LastLogin.Equal(now))
}

func TestUserRepository_UpdateEmailConflict(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	createUser(t, repo, "Alice", "alice@example.com")
	bob := createUser(t, repo, "Bob", "bob@example.com")

	bob.Email = "ALICE@example.com"
	require.ErrorIs(t, repo.Update(ctx, bob), repository.ErrConflict)
}

func TestUserRepository_UpdateNotFound(t *testing.T) {
	repo := newTestRepo(t)

	ghost := domain.NewUser("Ghost", "ghost@example.com", "h")
	ghost.ID = 999
	require.ErrorIs(t, repo.Update(context.Background(), ghost), repository.ErrNotFound)
}

func TestUserRepository_Delete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	user := createUser(t, repo, "Alice", "alice@example.com")
	require.NoError(t, repo.Delete(ctx, user.ID))

	_, err := repo.GetByID(ctx, user.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)

	require.ErrorIs(t, repo.Delete(ctx, user.ID), repository.ErrNotFound)
}

func TestUserRepository_IDsAreNeverReused(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := createUser(t, repo, "Alice", "alice@example.com")
	require.NoError(t, repo.Delete(ctx, first.ID))

	second := createUser(t, repo, "Bob", "bob@example.com")
	require.Greater(t, second.ID, first.ID)
}

func TestUserRepository_ExistsByEmail(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	createUser(t, repo, "Alice", "alice@example.com")

	exists, err := repo.ExistsByEmail(ctx, "alice@EXAMPLE.com")
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = repo.ExistsByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	require.False(t, exists)
}

func seedListUsers(t *testing.T, repo repository.UserRepository, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		createUser(t, repo,
			fmt.Sprintf("User %02d", i),
			fmt.Sprintf("user%02d@example.com", i),
		)
	}
}

func TestUserRepository_ListPagination(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedListUsers(t, repo, 15)

	result, err := repo.List(ctx, repository.ListOptions{Page: 2, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, int64(15), result.Total)
	require.Len(t, result.Items, 5)
	require.Equal(t, int64(11), result.Items[0].ID)

	// Past the end: empty page, total unchanged.
	result, err = repo.List(ctx, repository.ListOptions{Page: 5, PageSize: 10})
	require.NoError(t, err)
	require.Empty(t, result.Items)
	require.Equal(t, int64(15), result.Total)
}

func TestUserRepository_ListSearch(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	createUser(t, repo, "Alice", "alice@example.com")
	createUser(t, repo, "Bob", "bob@alimenta.org")
	createUser(t, repo, "Carol", "carol@example.com")

	// Matches name OR email, case-insensitively.
	result, err := repo.List(ctx, repository.ListOptions{Page: 1, PageSize: 10, SearchTerm: "ALI"})
	require.NoError(t, err)
	require.Equal(t, int64(2), result.Total)

	// The count honors the filter even when the page does not reach it.
	result, err = repo.List(ctx, repository.ListOptions{Page: 1, PageSize: 1, SearchTerm: "ali"})
	require.NoError(t, err)
	require.Equal(t, int64(2), result.Total)
	require.Len(t, result.Items, 1)
}

func TestUserRepository_ListBlockedFilter(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	createUser(t, repo, "Alice", "alice@example.com")
	bob := createUser(t, repo, "Bob", "bob@example.com")
	bob.IsBlocked = true
	require.NoError(t, repo.Update(ctx, bob))

	blocked := true
	result, err := repo.List(ctx, repository.ListOptions{Page: 1, PageSize: 10, IsBlocked: &blocked})
	require.NoError(t, err)
	require.Equal(t, int64(1), result.Total)
	require.Equal(t, bob.ID, result.Items[0].ID)

	unblocked := false
	result, err = repo.List(ctx, repository.ListOptions{Page: 1, PageSize: 10, IsBlocked: &unblocked})
	require.NoError(t, err)
	require.Equal(t, int64(1), result.Total)
}

func TestUserRepository_ListSorting(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	createUser(t, repo, "charlie", "charlie@example.com")
	createUser(t, repo, "Alice", "alice@example.com")
	createUser(t, repo, "bob", "bob@example.com")

	result, err := repo.List(ctx, repository.ListOptions{Page: 1, PageSize: 10, SortBy: repository.SortByName})
	require.NoError(t, err)
	require.Equal(t, "Alice", result.Items[0].Name)
	require.Equal(t, "bob", result.Items[1].Name, "name sort ignores case")
	require.Equal(t, "charlie", result.Items[2].Name)

	result, err = repo.List(ctx, repository.ListOptions{Page: 1, PageSize: 10, SortBy: repository.SortByName, Descending: true})
	require.NoError(t, err)
	require.Equal(t, "charlie", result.Items[0].Name)
}

func TestUserRepository_ListSortStableOnTies(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// Same name; ties must break by id ascending on every page walk.
	createUser(t, repo, "Same", "a@example.com")
	createUser(t, repo, "Same", "b@example.com")
	createUser(t, repo, "Same", "c@example.com")

	result, err := repo.List(ctx, repository.ListOptions{Page: 1, PageSize: 10, SortBy: repository.SortByName})
	require.NoError(t, err)
	require.Equal(t, int64(1), result.Items[0].ID)
	require.Equal(t, int64(2), result.Items[1].ID)
	require.Equal(t, int64(3), result.Items[2].ID)
}

func TestUserRepository_ListSortByLastLogin(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	early := createUser(t, repo, "Early", "early@example.com")
	late := createUser(t, repo, "Late", "late@example.com")

	t1 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	early.LastLogin = &t1
	late.LastLogin = &t2
	require.NoError(t, repo.Update(ctx, early))
	require.NoError(t, repo.Update(ctx, late))

	never := createUser(t, repo, "Never", "never@example.com")

	result, err := repo.List(ctx, repository.ListOptions{Page: 1, PageSize: 10, SortBy: repository.SortByLastLogin, Descending: true})
	require.NoError(t, err)
	require.Equal(t, late.ID, result.Items[0].ID)

	// Never-logged-in users sort last in both directions, matching the
	// PostgreSQL backend's ordering.
	require.Equal(t, never.ID, result.Items[len(result.Items)-1].ID)

	result, err = repo.List(ctx, repository.ListOptions{Page: 1, PageSize: 10, SortBy: repository.SortByLastLogin})
	require.NoError(t, err)
	require.Equal(t, early.ID, result.Items[0].ID)
	require.Equal(t, never.ID, result.Items[len(result.Items)-1].ID)
}
