package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/flowedit/pkg/refdata"
)

func newTestReferenceRepo(t *testing.T) *SQLiteReferenceRepository {
	t.Helper()
	repo, err := NewSQLiteReferenceRepository(filepath.Join(t.TempDir(), "data", "flowedit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestSQLiteReferenceRepositoryCreateAndGet(t *testing.T) {
	repo := newTestReferenceRepo(t)
	ctx := context.Background()

	enum := &refdata.Entity{
		Kind:      refdata.KindEnum,
		Name:      "Priority",
		ProjectID: "acme",
		Values:    []refdata.LabeledValue{{Label: "High", Value: "high"}, {Label: "Low", Value: "low"}},
	}
	require.NoError(t, repo.Create(ctx, enum))
	assert.NotEmpty(t, enum.ID)
	assert.Equal(t, refdata.ScopeProject, enum.Scope)

	got, err := repo.Get(ctx, enum.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.Values, got.Values)
	assert.Equal(t, refdata.KindEnum, got.Kind)
	assert.Nil(t, got.Value)

	constant := &refdata.Entity{
		Kind:      refdata.KindConstant,
		Name:      "MAX_RETRIES",
		ValueType: "number",
		Value:     3,
		ProjectID: "acme",
		FlowID:    "checkout",
	}
	require.NoError(t, repo.Create(ctx, constant))
	assert.Equal(t, refdata.ScopeFlow, constant.Scope)

	got, err = repo.Get(ctx, constant.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(3), got.Value, "values round-trip through JSON")
	assert.Equal(t, "checkout", got.FlowID)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrEntityNotFound)
}

func TestSQLiteReferenceRepositoryScopes(t *testing.T) {
	repo := newTestReferenceRepo(t)
	ctx := context.Background()

	create := func(name, flowID string) {
		require.NoError(t, repo.Create(ctx, &refdata.Entity{
			Kind: refdata.KindConstant, Name: name, ValueType: "string", Value: name,
			ProjectID: "acme", FlowID: flowID,
		}))
	}
	create("BASE_URL", "")
	create("TOKEN", "checkout")
	create("REGION", "billing")
	require.NoError(t, repo.Create(ctx, &refdata.Entity{
		Kind: refdata.KindConstant, Name: "OTHER", Value: "x", ProjectID: "globex",
	}))

	names := func(list []refdata.Entity) []string {
		out := make([]string, 0, len(list))
		for _, e := range list {
			out = append(out, e.Name)
		}
		return out
	}

	list, err := repo.List(ctx, refdata.NewScopeKey("acme", ""))
	require.NoError(t, err)
	assert.Equal(t, []string{"BASE_URL"}, names(list))

	list, err = repo.FetchReferenceList(ctx, refdata.NewScopeKey("acme", "checkout"))
	require.NoError(t, err)
	assert.Equal(t, []string{"BASE_URL", "TOKEN"}, names(list))

	list, err = repo.List(ctx, refdata.NewScopeKey("nobody", ""))
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = repo.List(ctx, "")
	assert.ErrorIs(t, err, refdata.ErrNoScope)
}

func TestSQLiteReferenceRepositoryValidation(t *testing.T) {
	repo := newTestReferenceRepo(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		entity refdata.Entity
	}{
		{"missing project", refdata.Entity{Kind: refdata.KindConstant, Name: "A", Value: 1}},
		{"bad name", refdata.Entity{Kind: refdata.KindConstant, Name: "1bad", Value: 1, ProjectID: "p"}},
		{"unknown kind", refdata.Entity{Kind: "thing", Name: "A", ProjectID: "p"}},
		{"enum without values", refdata.Entity{Kind: refdata.KindEnum, Name: "A", ProjectID: "p"}},
		{"enum duplicate value", refdata.Entity{Kind: refdata.KindEnum, Name: "A", ProjectID: "p",
			Values: []refdata.LabeledValue{{Value: "x"}, {Value: "x"}}}},
		{"constant without value", refdata.Entity{Kind: refdata.KindConstant, Name: "A", ProjectID: "p"}},
		{"constant bad type", refdata.Entity{Kind: refdata.KindConstant, Name: "A", ProjectID: "p", Value: 1, ValueType: "date"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := tt.entity
			assert.Error(t, repo.Create(ctx, &e))
		})
	}

	list, err := repo.List(ctx, "p")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSQLiteReferenceRepositoryDuplicateAndDelete(t *testing.T) {
	repo := newTestReferenceRepo(t)
	ctx := context.Background()

	first := &refdata.Entity{Kind: refdata.KindConstant, Name: "A", Value: "1", ProjectID: "p"}
	require.NoError(t, repo.Create(ctx, first))

	dup := &refdata.Entity{Kind: refdata.KindConstant, Name: "A", Value: "2", ProjectID: "p"}
	assert.ErrorIs(t, repo.Create(ctx, dup), ErrDuplicateEntity)

	// the same name is free in another flow scope
	scoped := &refdata.Entity{Kind: refdata.KindConstant, Name: "A", Value: "3", ProjectID: "p", FlowID: "f"}
	require.NoError(t, repo.Create(ctx, scoped))

	require.NoError(t, repo.Delete(ctx, first.ID))
	assert.ErrorIs(t, repo.Delete(ctx, first.ID), ErrEntityNotFound)
}

func TestSQLiteReferenceRepositoryFeedsCache(t *testing.T) {
	repo := newTestReferenceRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &refdata.Entity{Kind: refdata.KindConstant, Name: "A", Value: "1", ProjectID: "p"}))

	cache := refdata.NewCache(repo)
	list, err := cache.Get(ctx, "p")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, repo.Create(ctx, &refdata.Entity{Kind: refdata.KindConstant, Name: "B", Value: "2", ProjectID: "p"}))
	list, _ = cache.Get(ctx, "p")
	assert.Len(t, list, 1, "cached until invalidated")

	cache.Invalidate("p")
	list, err = cache.Get(ctx, "p")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestInitializeDatabaseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowedit.db")
	repo, err := NewSQLiteReferenceRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	repo, err = NewSQLiteReferenceRepository(path)
	require.NoError(t, err)
	defer func() { _ = repo.Close() }()

	var version int
	require.NoError(t, repo.db.QueryRow("SELECT MAX(version) FROM migrations").Scan(&version))
	assert.Equal(t, MigrationVersion, version)
}

func TestMigrationsAreOrdered(t *testing.T) {
	last := 0
	for _, m := range migrations {
		assert.Greater(t, m.version, last, m.name)
		last = m.version
	}
	assert.Equal(t, MigrationVersion, last)
}
