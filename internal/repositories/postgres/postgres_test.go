//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	domain "github.com/craftmarket/api/internal/domain"
	"github.com/craftmarket/api/internal/repositories/postgres"
)

const migrationsDir = "../../../migrations"

func startPostgres(ctx context.Context) (*tcpostgres.PostgresContainer, string, error) {
	container, err := tcpostgres.Run(ctx, "postgres:17.6-alpine3.22",
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, "", fmt.Errorf("postgres.Run: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, "", fmt.Errorf("container.ConnectionString: %w", err)
	}

	if err := migrate(connStr); err != nil {
		return nil, "", err
	}
	return container, connStr, nil
}

func migrate(connStr string) error {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return fmt.Errorf("sql.Open: %w", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose.SetDialect: %w", err)
	}
	if err := goose.Up(db, migrationsDir); err != nil {
		return fmt.Errorf("goose.Up: %w", err)
	}
	return nil
}

func newTestProvider(ctx context.Context, connStr string) (*postgres.Provider, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	provider, err := postgres.NewProviderFromPool(pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return provider, pool, nil
}

// Fixture helpers ------------------------------------------------------------

func insertUser(ctx context.Context, pool *pgxpool.Pool, role domain.UserRole) (domain.User, error) {
	user := domain.User{
		ID:          "usr_" + gofakeit.UUID(),
		Role:        role,
		DisplayName: gofakeit.Name(),
		Email:       gofakeit.Email(),
		CreatedAt:   time.Now().UTC(),
	}
	_, err := pool.Exec(ctx, `
		INSERT INTO users (id, role, display_name, email, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		user.ID, user.Role, user.DisplayName, user.Email, user.CreatedAt)
	return user, err
}

func insertAddress(ctx context.Context, pool *pgxpool.Pool, userID string) (domain.Address, error) {
	addr := domain.Address{
		ID:         "adr_" + gofakeit.UUID(),
		UserID:     userID,
		Recipient:  gofakeit.Name(),
		Line1:      gofakeit.Street(),
		City:       gofakeit.City(),
		PostalCode: gofakeit.Zip(),
		Country:    "JP",
	}
	_, err := pool.Exec(ctx, `
		INSERT INTO addresses (id, user_id, recipient, line1, city, postal_code, country)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		addr.ID, addr.UserID, addr.Recipient, addr.Line1, addr.City, addr.PostalCode, addr.Country)
	return addr, err
}

func insertProduct(ctx context.Context, pool *pgxpool.Pool, sellerID string, quantity int, customizable bool) (domain.Product, error) {
	product := domain.Product{
		ID:             "prd_" + gofakeit.UUID(),
		SellerID:       sellerID,
		Name:           gofakeit.ProductName(),
		Status:         domain.ProductStatusPublished,
		Price:          decimal.NewFromFloat(gofakeit.Price(10, 500)).Round(2),
		Quantity:       quantity,
		IsCustomizable: customizable,
		UpdatedAt:      time.Now().UTC(),
	}
	_, err := pool.Exec(ctx, `
		INSERT INTO products (id, seller_id, name, status, price, quantity, is_customizable, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		product.ID, product.SellerID, product.Name, product.Status, product.Price,
		product.Quantity, product.IsCustomizable, product.UpdatedAt)
	return product, err
}

func insertCartItem(ctx context.Context, pool *pgxpool.Pool, userID, productID string, quantity int) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO cart_items (id, user_id, product_id, quantity, added_at)
		VALUES ($1, $2, $3, $4, $5)`,
		"cit_"+gofakeit.UUID(), userID, productID, quantity, time.Now().UTC())
	return err
}
