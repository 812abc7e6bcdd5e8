// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev user (dev@example.com) already exists.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"account-security-plane/internal/config"
	"account-security-plane/internal/db"
	identitydomain "account-security-plane/internal/identity/domain"
	identityrepo "account-security-plane/internal/identity/repository"
	"account-security-plane/internal/password"
	"account-security-plane/internal/security"
	userdomain "account-security-plane/internal/user/domain"
	userrepo "account-security-plane/internal/user/repository"
)

const (
	devUserEmail  = "dev@example.com"
	devPassword   = "Dev#Zvq7Lbat9Km"
	devUserID     = "dev-user-001"
	devIdentityID = "dev-identity-001"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	users := userrepo.NewPostgresRepository(conn)
	identities := identityrepo.NewPostgresRepository(conn)

	existing, err := users.GetByEmail(ctx, devUserEmail)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (dev@example.com exists). Skipping.")
		os.Exit(0)
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	passwordHash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()
	if err := users.Create(ctx, &userdomain.User{
		ID:        devUserID,
		Email:     devUserEmail,
		Name:      "Dev User",
		Status:    userdomain.UserStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		log.Fatalf("create dev user: %v", err)
	}

	assessment := password.Evaluate(devPassword)
	if err := identities.Create(ctx, &identitydomain.Identity{
		ID:               devIdentityID,
		UserID:           devUserID,
		Provider:         identitydomain.IdentityProviderLocal,
		ProviderID:       devUserEmail,
		PasswordHash:     passwordHash,
		PasswordStrength: assessment.Strength.String(),
		CreatedAt:        now,
	}); err != nil {
		log.Fatalf("create dev identity: %v", err)
	}

	log.Println("Seed completed successfully.")
	fmt.Printf("Dev login: %s / %s\n", devUserEmail, devPassword)
}
