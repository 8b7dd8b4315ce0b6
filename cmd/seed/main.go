// Package main provides a CLI tool for seeding the database with initial data.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"pharmadesk/internal/config"
	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/core/security"
	"pharmadesk/internal/domain/auth"
	"pharmadesk/internal/domain/catalogs/product"
	"pharmadesk/internal/infrastructure/numerator"
	"pharmadesk/internal/infrastructure/storage/postgres"
	"pharmadesk/internal/infrastructure/storage/postgres/auth_repo"
	"pharmadesk/internal/infrastructure/storage/postgres/catalog_repo"
	"pharmadesk/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalw("failed to load configuration", "error", err)
	}

	ctx := context.Background()

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.Database.URL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	if err := postgres.ApplySchema(ctx, pool); err != nil {
		log.Fatalw("failed to apply schema", "error", err)
	}

	txManager := postgres.NewTxManager(pool)

	authService := auth.NewService(
		auth_repo.NewUserRepo(txManager),
		txManager,
		auth.NewJWTService(auth.DefaultJWTConfig(cfg.JWT.Secret)),
		auth.DefaultServiceConfig(),
	)
	if err := seedAdminUser(ctx, authService, log); err != nil {
		log.Fatalw("failed to seed admin user", "error", err)
	}

	if os.Getenv("SEED_DEMO_DATA") == "true" {
		productService := product.NewService(catalog_repo.NewProductRepo(txManager), txManager, numerator.New(txManager))
		if err := seedDemoProducts(ctx, productService, log); err != nil {
			log.Fatalw("failed to seed demo data", "error", err)
		}
	}

	log.Info("seeding completed successfully")
}

func seedAdminUser(ctx context.Context, svc *auth.Service, log *logger.Logger) error {
	username := os.Getenv("ADMIN_USERNAME")
	if username == "" {
		username = "admin"
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "Admin123!"
	}

	user, err := svc.CreateUser(ctx, auth.CreateUserRequest{
		Username: username,
		FullName: "Administrator",
		Password: password,
		Role:     string(security.RoleAdmin),
	})
	if apperror.HasCode(err, apperror.CodeDuplicate) {
		log.Infow("admin user already exists", "username", username)
		return nil
	}
	if err != nil {
		return err
	}

	log.Infow("admin user created", "username", user.Username, "id", user.ID)
	return nil
}

type demoProduct struct {
	code, name, category string
	purchase, selling    string
	stock, threshold     int64
	expiresInDays        int
	classification       product.Classification
}

var demoProducts = []demoProduct{
	{"DOLI-1000", "Doliprane 1000mg", "Analgesics", "18.00", "25.00", 120, 20, 540, product.ClassOTC},
	{"AMOX-500", "Amoxicillin 500mg", "Antibiotics", "42.50", "60.00", 35, 15, 210, product.ClassPrescription},
	{"SMEC-3G", "Smecta 3g", "Gastro", "30.00", "45.00", 8, 10, 25, product.ClassOTC},
	{"VITC-1G", "Vitamin C 1g", "Supplements", "12.00", "20.00", 0, 10, 365, product.ClassOTC},
	{"IBU-400", "Ibuprofen 400mg", "Analgesics", "15.00", "22.00", 60, 20, -10, product.ClassOTC},
}

func seedDemoProducts(ctx context.Context, svc *product.Service, log *logger.Logger) error {
	today := time.Now().UTC().Truncate(24 * time.Hour)

	for _, d := range demoProducts {
		p := product.NewProduct(d.code, d.name)
		p.Category = d.category
		p.PurchasePrice = decimal.RequireFromString(d.purchase)
		p.SellingPrice = decimal.RequireFromString(d.selling)
		p.InitialStock = d.stock
		p.LowStockThreshold = d.threshold
		p.Classification = d.classification
		expiry := today.AddDate(0, 0, d.expiresInDays)
		p.ExpiryDate = &expiry

		err := svc.Create(ctx, p)
		if apperror.HasCode(err, apperror.CodeDuplicate) {
			continue
		}
		if err != nil {
			return fmt.Errorf("create %s: %w", d.code, err)
		}
		log.Infow("demo product created", "code", p.Code, "stock", p.InitialStock)
	}
	return nil
}
