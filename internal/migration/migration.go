package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	subscriptiondomain "github.com/smallbiznis/telcousage/internal/subscription/domain"
	usagedomain "github.com/smallbiznis/telcousage/internal/usage/domain"
	"gorm.io/gorm"
)

//go:embed sql/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "sql"

// RunMigrations applies the embedded Postgres schema.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// Models lists every table the service owns, subscriptions first.
func Models() []any {
	return []any{
		&subscriptiondomain.Plan{},
		&subscriptiondomain.ATTSubscription{},
		&subscriptiondomain.SprintSubscription{},
		&usagedomain.DataUsageRecord{},
		&usagedomain.VoiceUsageRecord{},
		&usagedomain.AggDataUsage{},
		&usagedomain.AggVoiceUsage{},
	}
}

// AutoMigrate builds the schema through GORM for SQLite and MySQL, adding the
// per-carrier aggregate uniqueness that struct tags cannot express.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	for _, model := range []any{&usagedomain.AggDataUsage{}, &usagedomain.AggVoiceUsage{}} {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return err
		}
		table := stmt.Schema.Table
		for _, field := range []usagedomain.IdentityField{usagedomain.FieldATTSubscription, usagedomain.FieldSprintSubscription} {
			name := fmt.Sprintf("uq_%s_%s_date", table, field)
			if db.Migrator().HasIndex(model, name) {
				continue
			}
			if err := db.Exec(fmt.Sprintf("CREATE UNIQUE INDEX %s ON %s (%s, usage_date)", name, table, field.Column())).Error; err != nil {
				return fmt.Errorf("create index %s: %w", name, err)
			}
		}
	}
	return nil
}
