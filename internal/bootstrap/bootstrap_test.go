package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"carelink-server/internal/config"
	"carelink-server/internal/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	return db
}

func TestEnsureAdmin(t *testing.T) {
	db := testDB(t)
	cfg := config.BootstrapConfig{AdminEmail: "ops@example.com", AdminPassword: "sup3rs3cret", AdminName: "Ops"}

	require.NoError(t, EnsureAdmin(db, cfg))

	var admin models.User
	require.NoError(t, db.Where("email = ?", cfg.AdminEmail).First(&admin).Error)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.True(t, admin.CheckPassword(cfg.AdminPassword))

	t.Run("second run is a no-op", func(t *testing.T) {
		require.NoError(t, EnsureAdmin(db, cfg))
		var count int64
		require.NoError(t, db.Model(&models.User{}).Where("email = ?", cfg.AdminEmail).Count(&count).Error)
		assert.EqualValues(t, 1, count)
	})
}

func TestEnsureAdminUnconfigured(t *testing.T) {
	db := testDB(t)

	require.NoError(t, EnsureAdmin(db, config.BootstrapConfig{}))

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEnsureAdminMissingPassword(t *testing.T) {
	db := testDB(t)
	err := EnsureAdmin(db, config.BootstrapConfig{AdminEmail: "ops@example.com"})
	assert.Error(t, err)
}
