package repository

import (
	"fmt"
	"testing"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/healhub/healhub-auth/app/models"
	"github.com/healhub/healhub-auth/internal/pkg/env"
)

// isolatedRepositoryTestDatabase keeps repository tests away from the
// development schema; every run starts from empty tables.
const isolatedRepositoryTestDatabase = "healhub_auth_test"

type testDBLogin struct {
	user     string
	password string
}

func resolveTestMySQL(t *testing.T) (string, string, testDBLogin) {
	t.Helper()

	hosts := []string{
		env.GetEnv("DB_HOST", ""),
		"db",
		"localhost",
		"127.0.0.1",
	}
	port := env.GetEnv("DB_PORT", "3306")
	logins := []testDBLogin{
		{env.GetEnv("DB_USER", ""), env.GetEnv("DB_PASSWORD", "")},
		{"healhub", "healhub"},
		{"root", ""},
	}

	seenHost := make(map[string]struct{})
	uniqueHosts := make([]string, 0, len(hosts))
	for _, host := range hosts {
		if host == "" {
			continue
		}
		if _, ok := seenHost[host]; ok {
			continue
		}
		seenHost[host] = struct{}{}
		uniqueHosts = append(uniqueHosts, host)
	}

	var lastErr error
	for _, host := range uniqueHosts {
		for _, login := range logins {
			if login.user == "" {
				continue
			}

			dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/?timeout=2s&parseTime=True&loc=UTC",
				login.user, login.password, host, port)
			db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
				Logger: logger.Default.LogMode(logger.Silent),
			})
			if err != nil {
				lastErr = err
				continue
			}
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				_ = sqlDB.Close()
			}
			return host, port, login
		}
	}

	t.Skipf("Skipping MySQL-dependent test: no reachable MySQL endpoint (%v)", lastErr)
	return "", "", testDBLogin{}
}

// newIsolatedTestDB connects to the dedicated test database, creating it on
// first use, and hands back a migrated handle with empty tables.
func newIsolatedTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	host, port, login := resolveTestMySQL(t)

	serverDSN := fmt.Sprintf("%s:%s@tcp(%s:%s)/?timeout=2s&parseTime=True&loc=UTC",
		login.user, login.password, host, port)
	server, err := gorm.Open(mysql.Open(serverDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Skipf("Skipping MySQL-dependent test: connect failed (%v)", err)
	}
	if err := server.Exec("CREATE DATABASE IF NOT EXISTS " + isolatedRepositoryTestDatabase + " CHARACTER SET utf8mb4").Error; err != nil {
		t.Skipf("Skipping MySQL-dependent test: cannot create test database (%v)", err)
	}
	if sqlDB, dbErr := server.DB(); dbErr == nil {
		_ = sqlDB.Close()
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&timeout=2s&parseTime=True&loc=UTC",
		login.user, login.password, host, port, isolatedRepositoryTestDatabase)
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Skipf("Skipping MySQL-dependent test: test database open failed (%v)", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Subscription{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	resetAccountTables(t, db)
	t.Cleanup(func() {
		resetAccountTables(t, db)
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

func resetAccountTables(t *testing.T, db *gorm.DB) {
	t.Helper()

	for _, table := range []string{"subscriptions", "users"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			t.Fatalf("failed to reset table %s: %v", table, err)
		}
	}
}
