package db

import (
	"errors"
	"fmt"

	"github.com/router-for-me/StationPortal/internal/authz"
	"github.com/router-for-me/StationPortal/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migrate creates or updates all tables.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("db: nil connection")
	}
	if errMigrate := conn.AutoMigrate(
		&models.Permission{},
		&models.Role{},
		&models.Area{},
		&models.Province{},
		&models.Supporter{},
		&models.AMControl{},
		&models.Station{},
		&models.User{},
		&models.APIKey{},
		&models.WebViewLink{},
		&models.SaleSummary{},
		&models.ActiveSession{},
		&models.SessionHistory{},
		&models.Setting{},
	); errMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errMigrate)
	}
	return nil
}

// Seed inserts the permission catalogue and the built-in roles when missing.
// Existing role permission sets are left untouched so admin edits survive restarts.
func Seed(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("db: nil connection")
	}
	return conn.Transaction(func(tx *gorm.DB) error {
		byName := make(map[string]models.Permission)
		for _, def := range authz.Definitions() {
			description := def.Description
			perm := models.Permission{Name: def.Name, Description: &description}
			if errFirst := tx.Where("name = ?", def.Name).FirstOrCreate(&perm).Error; errFirst != nil {
				return fmt.Errorf("db: seed permission %s: %w", def.Name, errFirst)
			}
			byName[def.Name] = perm
		}

		all := make([]models.Permission, 0, len(byName))
		for _, def := range authz.Definitions() {
			all = append(all, byName[def.Name])
		}
		roles := map[string][]models.Permission{authz.RoleAdmin: all}
		for roleName, names := range authz.DefaultRolePermissions() {
			perms := make([]models.Permission, 0, len(names))
			for _, name := range names {
				perms = append(perms, byName[name])
			}
			roles[roleName] = perms
		}

		for _, roleName := range []string{authz.RoleAdmin, authz.RoleArea, authz.RoleOwner} {
			var role models.Role
			errFind := tx.Where("name = ?", roleName).First(&role).Error
			if errFind == nil {
				continue
			}
			if !errors.Is(errFind, gorm.ErrRecordNotFound) {
				return fmt.Errorf("db: seed role %s: %w", roleName, errFind)
			}
			role = models.Role{Name: roleName, Permissions: roles[roleName]}
			if errCreate := tx.Create(&role).Error; errCreate != nil {
				return fmt.Errorf("db: seed role %s: %w", roleName, errCreate)
			}
			log.WithField("role", roleName).Info("db: seeded role")
		}
		return nil
	})
}
