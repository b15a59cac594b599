package bootstrap

import (
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"carelink-server/internal/config"
	"carelink-server/internal/models"
)

// EnsureAdmin provisions the configured admin account if it does not exist
// yet. It runs once at startup, before the server begins accepting requests,
// and is a no-op when the account already exists or when no credentials are
// configured. The admin is an operational account only; it carries no doctor
// or patient capabilities in the API.
func EnsureAdmin(db *gorm.DB, cfg config.BootstrapConfig) error {
	if cfg.AdminEmail == "" {
		return nil
	}
	if cfg.AdminPassword == "" {
		return fmt.Errorf("BOOTSTRAP_ADMIN_EMAIL is set but BOOTSTRAP_ADMIN_PASSWORD is empty")
	}

	var existing models.User
	err := db.Where("email = ?", cfg.AdminEmail).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("checking for existing admin: %w", err)
	}

	admin := models.User{
		Email:     cfg.AdminEmail,
		FirstName: cfg.AdminName,
		Role:      models.RoleAdmin,
	}
	if err := admin.SetPassword(cfg.AdminPassword); err != nil {
		return fmt.Errorf("hashing admin password: %w", err)
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("creating admin account: %w", err)
	}

	log.Printf("bootstrap: admin account %s created", cfg.AdminEmail)
	return nil
}
