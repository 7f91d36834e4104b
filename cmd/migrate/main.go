package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storepos-backend/internal/ledger"
	product "github.com/angelmondragon/storepos-backend/internal/products"
	"github.com/angelmondragon/storepos-backend/internal/users"
	"github.com/angelmondragon/storepos-backend/pkg/config"
	"github.com/angelmondragon/storepos-backend/pkg/db"
	"github.com/angelmondragon/storepos-backend/pkg/enums"
	"github.com/angelmondragon/storepos-backend/pkg/logger"
	"github.com/angelmondragon/storepos-backend/pkg/migrate"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|create|validate|seed-admin|seed-catalog")
	dir := flag.String("dir", migrate.DefaultDir, "goose migrations directory")
	embedded := flag.Bool("embedded", false, "use the migrations compiled into the binary instead of -dir")

	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	adminUsername := flag.String("admin-username", "admin", "username for -cmd=seed-admin")
	adminName := flag.String("admin-name", "Store Administrator", "full name for -cmd=seed-admin")

	flag.Parse()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       cfg.App.LogLevel,
		Version:     cfg.App.Version,
		WarnStack:   cfg.App.LogWarnStack,
	})

	src := migrate.Disk(*dir)
	if *embedded {
		src = migrate.Embedded()
	}

	ctx = logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"cmd":      *cmd,
		"dir":      src.Dir,
		"embedded": *embedded,
	})

	switch *cmd {
	case "create":
		if *name == "" {
			fail("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(*dir, *name)
		if err != nil {
			fail("failed to create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return

	case "validate":
		if err := migrate.ValidateDir(*dir); err != nil {
			fail("migration validation failed: %v", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	logg.Info(logg.WithField(ctx, "driver", dbClient.Dialect()), "migrate ready")

	switch *cmd {
	case "seed-admin":
		seedAdmin(ctx, logg, cfg, dbClient, *adminUsername, *adminName)
		return
	case "seed-catalog":
		seedCatalog(ctx, logg, dbClient)
		return
	}

	// The goose files target Postgres; SQLite only supports bringing the schema up.
	if dbClient.Dialect() == db.DialectSQLite {
		if *cmd != "up" {
			fail("-cmd=%s is not supported on sqlite", *cmd)
		}
		if err := migrate.Apply(ctx, dbClient); err != nil {
			fail("sqlite schema migrate failed: %v", err)
		}
		return
	}

	sqlDB, err := dbClient.SQLDB()
	requireResource(ctx, logg, "sql database", err)

	switch *cmd {
	case "up", "down", "status":
		if err := migrate.Run(ctx, sqlDB, src, *cmd); err != nil {
			fail("goose %s failed: %v", *cmd, err)
		}

	case "version":
		if *version == "" {
			fail("missing -version for version command")
		}
		if err := migrate.MigrateToVersion(ctx, sqlDB, src, *version); err != nil {
			fail("goose version migrate failed: %v", err)
		}

	default:
		fail("unknown -cmd value: %s", *cmd)
	}
}

// seedAdmin creates the first admin account. The password comes from
// STOREPOS_SEED_ADMIN_PASSWORD so it never shows up in shell history.
func seedAdmin(ctx context.Context, logg *logger.Logger, cfg *config.Config, dbClient *db.Client, username, fullName string) {
	password := strings.TrimSpace(os.Getenv("STOREPOS_SEED_ADMIN_PASSWORD"))
	if password == "" {
		fail("STOREPOS_SEED_ADMIN_PASSWORD is required for seed-admin")
	}
	svc, err := users.NewService(users.NewRepository(dbClient.DB()), cfg.Password)
	requireResource(ctx, logg, "user service", err)

	user, err := svc.Create(ctx, users.CreateUserInput{
		Username: username,
		Password: password,
		FullName: fullName,
		Role:     enums.UserRoleAdmin,
	})
	if err != nil {
		fail("seed admin failed: %v", err)
	}
	logg.Info(logg.WithField(ctx, "user_id", user.ID), "admin user created")
}

type sampleProduct struct {
	name         string
	description  string
	category     string
	barcode      string
	price        string
	costPrice    string
	openingStock int
	reorderLevel int
}

var sampleCatalog = []sampleProduct{
	{"Milk", "Fresh whole milk", "Dairy", "123456789", "3.99", "2.50", 50, 10},
	{"Bread", "White bread", "Bakery", "987654321", "2.49", "1.20", 30, 15},
	{"Apple", "Fresh red apples", "Fruits & Vegetables", "456789123", "0.50", "0.30", 100, 20},
	{"Chicken", "Fresh chicken breast", "Meat & Poultry", "789123456", "5.99", "4.00", 20, 5},
	{"Cola", "Cola soft drink", "Beverages", "321654987", "1.99", "1.00", 60, 24},
	{"Chips", "Potato chips", "Snacks", "147258369", "2.99", "1.50", 40, 15},
}

// seedCatalog loads the demo catalog into an empty products table. Products
// start at zero and receive their opening stock as a manual ledger entry so
// the stock history reconciles from the first row.
func seedCatalog(ctx context.Context, logg *logger.Logger, dbClient *db.Client) {
	gormDB := dbClient.DB()

	var existing int64
	if err := gormDB.WithContext(ctx).Table("products").Count(&existing).Error; err != nil {
		fail("count products failed: %v", err)
	}
	if existing > 0 {
		logg.Info(logg.WithField(ctx, "products", existing), "catalog already populated; skipping seed")
		return
	}

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(gormDB))
	requireResource(ctx, logg, "ledger service", err)
	productSvc, err := product.NewService(product.ServiceParams{
		Repository: product.NewRepository(gormDB),
		DB:         dbClient,
		Ledger:     ledgerSvc,
		Logger:     logg,
	})
	requireResource(ctx, logg, "product service", err)

	for _, sample := range sampleCatalog {
		description, category, barcode := sample.description, sample.category, sample.barcode
		reorder := sample.reorderLevel
		created, err := productSvc.Create(ctx, product.CreateProductInput{
			Name:         sample.name,
			Description:  &description,
			Category:     &category,
			Barcode:      &barcode,
			Price:        decimal.RequireFromString(sample.price),
			CostPrice:    decimal.RequireFromString(sample.costPrice),
			ReorderLevel: &reorder,
		})
		if err != nil {
			fail("seed product %s failed: %v", sample.name, err)
		}
		if _, err := productSvc.AdjustStock(ctx, product.AdjustStockInput{
			ProductID: created.ID,
			Delta:     sample.openingStock,
			Type:      enums.InventoryTransactionManual,
			Reason:    "opening stock",
		}); err != nil {
			fail("opening stock for %s failed: %v", sample.name, err)
		}
	}
	logg.Info(logg.WithField(ctx, "products", len(sampleCatalog)), "sample catalog seeded")
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
