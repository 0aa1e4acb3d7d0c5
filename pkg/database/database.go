package database

import (
	"context"
	"fmt"
	"time"

	"github.com/santerahq/claimsgate/internal/config"
	"github.com/santerahq/claimsgate/internal/domain"
	"github.com/santerahq/claimsgate/internal/domain/admission"
	"github.com/santerahq/claimsgate/internal/domain/claim"
	"github.com/santerahq/claimsgate/internal/domain/pacode"
	"github.com/santerahq/claimsgate/internal/domain/referral"
	repo "github.com/santerahq/claimsgate/internal/repository/postgres"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		PrepareStmt:                              true,
		DisableForeignKeyConstraintWhenMigrating: false,
		DisableAutomaticPing:                     false,
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: false,
	}), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}

const instrumentStartKey = "claimsgate:query_start"

// Instrument registers callbacks that time every statement and hand the
// duration to observe, labeled by operation and table.
func Instrument(db *gorm.DB, observe func(operation, table string, seconds float64)) error {
	before := func(tx *gorm.DB) {
		tx.InstanceSet(instrumentStartKey, time.Now())
	}
	after := func(operation string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			v, ok := tx.InstanceGet(instrumentStartKey)
			if !ok {
				return
			}
			start, ok := v.(time.Time)
			if !ok {
				return
			}
			table := tx.Statement.Table
			if table == "" {
				table = "unknown"
			}
			observe(operation, table, time.Since(start).Seconds())
		}
	}

	if err := db.Callback().Create().Before("gorm:create").Register("claimsgate:before_create", before); err != nil {
		return err
	}
	if err := db.Callback().Create().After("gorm:create").Register("claimsgate:after_create", after("create")); err != nil {
		return err
	}
	if err := db.Callback().Query().Before("gorm:query").Register("claimsgate:before_query", before); err != nil {
		return err
	}
	if err := db.Callback().Query().After("gorm:query").Register("claimsgate:after_query", after("query")); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("claimsgate:before_update", before); err != nil {
		return err
	}
	if err := db.Callback().Update().After("gorm:update").Register("claimsgate:after_update", after("update")); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("claimsgate:before_delete", before); err != nil {
		return err
	}
	if err := db.Callback().Delete().After("gorm:delete").Register("claimsgate:after_delete", after("delete")); err != nil {
		return err
	}
	if err := db.Callback().Row().Before("gorm:row").Register("claimsgate:before_row", before); err != nil {
		return err
	}
	if err := db.Callback().Row().After("gorm:row").Register("claimsgate:after_row", after("row")); err != nil {
		return err
	}
	if err := db.Callback().Raw().Before("gorm:raw").Register("claimsgate:before_raw", before); err != nil {
		return err
	}
	return db.Callback().Raw().After("gorm:raw").Register("claimsgate:after_raw", after("raw"))
}

// ReportPoolStats publishes the open-connection count every interval
// until ctx is cancelled.
func ReportPoolStats(ctx context.Context, db *gorm.DB, interval time.Duration, report func(open int)) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying sql.DB: %w", err)
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				report(sqlDB.Stats().OpenConnections)
			}
		}
	}()
	return nil
}

func Migrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("running database migrations")
	start := time.Now()

	schemas := []string{"claims", "auth", "audit", "registry"} // logical namespace
	for _, schema := range schemas {
		if err := db.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)).Error; err != nil {
			return fmt.Errorf("creating schema %s: %w", schema, err)
		}
	}

	models := []any{
		&domain.User{},
		&domain.AuditLog{},
		&referral.Referral{},
		&pacode.PACode{},
		&admission.Admission{},
		&claim.Claim{},
		&claim.ClaimLine{},
		&claim.ClaimDiagnosis{},
		&repo.FacilityRow{},
		&repo.EnrolleeRow{},
		&repo.TariffRow{},
		&repo.BundleRow{},
	}

	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto-migrating models: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("creating indexes: %w", err)
	}

	log.Info("migrations completed", zap.Duration("duration", time.Since(start)))
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []struct {
		name  string
		query string
	}{
		// One approved BUNDLE PA per episode, enforced at the store level as
		// well as in the service guard.
		{
			name:  "uq_pa_codes_approved_bundle",
			query: `CREATE UNIQUE INDEX IF NOT EXISTS uq_pa_codes_approved_bundle ON claims.pa_codes (referral_id) WHERE deleted_at IS NULL AND type = 'BUNDLE' AND status IN ('approved', 'used')`,
		},
		// One active admission per enrollee.
		{
			name:  "uq_admissions_active_enrollee",
			query: `CREATE UNIQUE INDEX IF NOT EXISTS uq_admissions_active_enrollee ON claims.admissions (enrollee_id) WHERE deleted_at IS NULL AND status = 'active'`,
		},
		// At most one bundle line per claim.
		{
			name:  "uq_claim_lines_bundle",
			query: `CREATE UNIQUE INDEX IF NOT EXISTS uq_claim_lines_bundle ON claims.claim_lines (claim_id) WHERE tariff_type = 'BUNDLE'`,
		},
		{
			name:  "idx_claims_facility_status",
			query: `CREATE INDEX IF NOT EXISTS idx_claims_facility_status ON claims.claims (facility_id, status) WHERE deleted_at IS NULL`,
		},
		{
			name:  "idx_pa_codes_expiring",
			query: `CREATE INDEX IF NOT EXISTS idx_pa_codes_expiring ON claims.pa_codes (valid_until) WHERE deleted_at IS NULL AND status IN ('pending', 'approved')`,
		},
	}

	for _, idx := range indexes {
		if err := db.Exec(idx.query).Error; err != nil {
			return fmt.Errorf("creating index %s: %w", idx.name, err)
		}
	}

	return nil
}
