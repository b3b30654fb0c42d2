package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deck-tracker/internal/models"
)

func TestBundleRepository_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := NewBundleRepository(db)
	ctx := context.Background()

	seedGame(t, db, 1, "Hades II")
	seedGame(t, db, 2, "Celeste")

	bundle := &models.Bundle{
		Name:        "Deck Verified Picks",
		Description: strPtr("Runs great on a handheld"),
		Items: []*models.BundleItem{
			{AppID: 1, Tier: strPtr("platinum")},
			{AppID: 2},
		},
	}
	require.NoError(t, repo.Create(ctx, bundle))
	assert.NotEmpty(t, bundle.ID, "id is assigned on create")

	got, err := repo.GetByID(ctx, bundle.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Deck Verified Picks", got.Name)
	require.Len(t, got.Items, 2)
	// Members come back sorted by game name with names joined in.
	assert.Equal(t, "Celeste", got.Items[0].Name)
	assert.Equal(t, "Hades II", got.Items[1].Name)
	require.NotNil(t, got.Items[1].Tier)
	assert.Equal(t, "platinum", *got.Items[1].Tier)
}

func TestBundleRepository_GetByID_Missing(t *testing.T) {
	db := newTestDB(t)
	repo := NewBundleRepository(db)

	got, err := repo.GetByID(context.Background(), "no-such-bundle")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestBundleRepository_Create_UnknownGameRollsBack(t *testing.T) {
	db := newTestDB(t)
	repo := NewBundleRepository(db)
	ctx := context.Background()

	bundle := &models.Bundle{
		Name:  "Broken",
		Items: []*models.BundleItem{{AppID: 12345}},
	}
	require.Error(t, repo.Create(ctx, bundle), "items must reference existing games")

	bundles, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, bundles, "failed create leaves no bundle row behind")
}

func TestBundleRepository_AddAndRemoveItem(t *testing.T) {
	db := newTestDB(t)
	repo := NewBundleRepository(db)
	ctx := context.Background()

	seedGame(t, db, 1, "First")
	seedGame(t, db, 2, "Second")

	bundle := &models.Bundle{Name: "Growing"}
	require.NoError(t, repo.Create(ctx, bundle))

	require.NoError(t, repo.AddItem(ctx, bundle.ID, &models.BundleItem{AppID: 1}))
	require.NoError(t, repo.AddItem(ctx, bundle.ID, &models.BundleItem{AppID: 2}))
	// Re-adding a member updates its annotation instead of erroring.
	require.NoError(t, repo.AddItem(ctx, bundle.ID, &models.BundleItem{AppID: 1, Tier: strPtr("gold")}))

	got, err := repo.GetByID(ctx, bundle.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)

	require.NoError(t, repo.RemoveItem(ctx, bundle.ID, 2))
	got, err = repo.GetByID(ctx, bundle.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, int64(1), got.Items[0].AppID)
}

func TestBundleRepository_ListForGame(t *testing.T) {
	db := newTestDB(t)
	repo := NewBundleRepository(db)
	ctx := context.Background()

	seedGame(t, db, 1, "Shared")
	seedGame(t, db, 2, "Solo")

	a := &models.Bundle{Name: "Alpha", Items: []*models.BundleItem{{AppID: 1}}}
	b := &models.Bundle{Name: "Beta", Items: []*models.BundleItem{{AppID: 1}, {AppID: 2}}}
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	bundles, err := repo.ListForGame(ctx, 1)
	require.NoError(t, err)
	require.Len(t, bundles, 2)
	assert.Equal(t, "Alpha", bundles[0].Name)

	bundles, err = repo.ListForGame(ctx, 2)
	require.NoError(t, err)
	require.Len(t, bundles, 1)
	assert.Equal(t, "Beta", bundles[0].Name)
}

func TestBundleRepository_DeleteCascadesItems(t *testing.T) {
	db := newTestDB(t)
	repo := NewBundleRepository(db)
	ctx := context.Background()

	seedGame(t, db, 1, "Game")

	bundle := &models.Bundle{Name: "Doomed", CreatedAt: time.Now().UTC(), Items: []*models.BundleItem{{AppID: 1}}}
	require.NoError(t, repo.Create(ctx, bundle))
	require.NoError(t, repo.Delete(ctx, bundle.ID))

	got, err := repo.GetByID(ctx, bundle.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	bundles, err := repo.ListForGame(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, bundles)

	assert.Error(t, repo.Delete(ctx, bundle.ID))
}
