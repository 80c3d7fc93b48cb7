package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xelth-com/reg44go/internal/models"
)

func TestOpenLocalInMemoryIsPrivate(t *testing.T) {
	a, err := OpenLocal(":memory:")
	require.NoError(t, err)
	defer a.Close()
	b, err := OpenLocal("")
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.AutoMigrate(models.LocalModels()...))
	require.NoError(t, b.AutoMigrate(models.LocalModels()...))

	require.NoError(t, a.Create(&models.LocalEntry{Key: "k", Value: []byte(`{}`)}).Error)

	var count int64
	require.NoError(t, b.Model(&models.LocalEntry{}).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, a.Model(&models.LocalEntry{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestForOrganizationScopesQueries(t *testing.T) {
	db, err := OpenLocal(":memory:")
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.AutoMigrate(models.RemoteModels()...))

	require.NoError(t, db.Create(&models.Home{OrganizationID: "org-a", Name: "Oak House"}).Error)
	require.NoError(t, db.Create(&models.Home{OrganizationID: "org-b", Name: "Elm Lodge"}).Error)

	var homes []models.Home
	require.NoError(t, db.Scopes(ForOrganization("org-a")).Find(&homes).Error)
	require.Len(t, homes, 1)
	assert.Equal(t, "Oak House", homes[0].Name)
	assert.NotEmpty(t, homes[0].ID)
}
