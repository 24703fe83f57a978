package gormstore

import (
	"strings"
	"testing"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"shuttle_tracker/internal/models"
	"shuttle_tracker/internal/store"
)

// dryRun opens a store whose statements are built but never sent.
func dryRun(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=shuttle dbname=shuttle sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return New(db), db
}

func assertContains(t *testing.T, sql string, parts ...string) {
	t.Helper()
	for _, p := range parts {
		if !strings.Contains(sql, p) {
			t.Errorf("sql missing %q\n%s", p, sql)
		}
	}
}

func studentView() store.Visibility {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	return store.Visibility{
		UserID: 7,
		Role:   models.RoleStudent,
		Cutoff: now.Add(-time.Hour),
		Now:    now,
	}
}

func TestVisibleGroupsAddressConditions(t *testing.T) {
	s, db := dryRun(t)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return tx.Model(&models.Notification{}).Scopes(s.visible(studentView())).Find(&[]models.Notification{})
	})

	assertContains(t, sql,
		"expires_at > '2026-03-02 08:00:00",
		"AND (receiver_id = 7 OR (receiver_id IS NULL AND receiver_role IN ('student','all') AND created_at >= '2026-03-02 07:00:00",
	)
}

func TestMarkAllVisibleReadStatement(t *testing.T) {
	s, db := dryRun(t)
	at := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return s.markAllVisibleRead(tx, studentView(), at)
	})

	assertContains(t, sql,
		`UPDATE "notifications" SET`,
		`"is_read"=true`,
		`"read_at"='2026-03-02 08:30:00`,
		"(receiver_id = 7 OR (receiver_id IS NULL",
		"is_read = false",
	)
}

func TestSwapTripStateIsConditional(t *testing.T) {
	_, db := dryRun(t)
	started := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return swapTripState(tx, 9, models.BusAvailable, models.TripPatch{
			Status:        models.BusOnTrip,
			IsOnTrip:      true,
			TripStartTime: &started,
		})
	})

	assertContains(t, sql,
		`UPDATE "buses" SET`,
		`"is_on_trip"=true`,
		`"status"='on_trip'`,
		"id = 9 AND status = 'available'",
	)
}

func TestPaginate(t *testing.T) {
	_, db := dryRun(t)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return tx.Model(&models.Bus{}).Scopes(paginate(store.Page{Page: 3, Limit: 10})).Find(&[]models.Bus{})
	})
	assertContains(t, sql, "LIMIT 10 OFFSET 20")

	sql = db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return tx.Model(&models.Bus{}).Scopes(paginate(store.Page{})).Find(&[]models.Bus{})
	})
	if strings.Contains(sql, "LIMIT") {
		t.Errorf("unpaged query has a limit: %s", sql)
	}
}
