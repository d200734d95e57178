// Command token mints a bearer token for an existing user, typically a staff account.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/safar/go-storefront/internal/auth"
	"github.com/safar/go-storefront/internal/config"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/store"
)

func main() {
	userID := flag.Int64("user", 0, "id of the user to issue the token for")
	email := flag.String("email", "", "email of the user to issue the token for")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to AUTH_TOKEN_TTL)")
	flag.Parse()

	if (*userID <= 0) == (*email == "") {
		log.Fatal("Usage: go run ./cmd/token (-user <id> | -email <address>) [-ttl 24h]")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	db, err := database.NewConnection(context.Background(), &cfg.Database, nil)
	if err != nil {
		log.Fatalf("Connect to database: %v", err)
	}
	defer db.Close()

	var user *models.User
	if *email != "" {
		user, err = store.GetUserByEmail(context.Background(), db, *email)
	} else {
		user, err = store.GetUser(context.Background(), db, *userID)
	}
	if err != nil {
		log.Fatalf("Look up user: %v", err)
	}

	lifetime := *ttl
	if lifetime <= 0 {
		lifetime = cfg.Auth.TokenTTL
	}

	token, err := auth.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer).IssueToken(user.ID, user.Role, lifetime)
	if err != nil {
		log.Fatalf("Issue token: %v", err)
	}

	fmt.Println(token)
}
