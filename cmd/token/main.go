// Command token prints a signed bearer token for local testing of the
// authenticated DELETE and PUT routes.
package main

import (
	"flag"
	"fmt"
	"strconv"
	"time"

	"github.com/Varun5711/shortlinks/internal/auth"
	"github.com/Varun5711/shortlinks/internal/config"
	"github.com/Varun5711/shortlinks/internal/logger"
)

func main() {
	log := logger.New("token")

	ownerID := flag.Int64("owner", 1, "owner id carried by the token")
	email := flag.String("email", "dev@localhost", "email claim")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to JWT_TOKEN_DURATION)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config: %v", err)
	}

	duration := cfg.Auth.TokenDuration
	if *ttl > 0 {
		duration = *ttl
	}

	token, expiresAt, err := auth.NewJWTManager(cfg.Auth.JWTSecret, duration).
		GenerateToken(strconv.FormatInt(*ownerID, 10), *email)
	if err != nil {
		log.Fatal("%v", err)
	}

	log.Info("Token for owner %d expires at %s", *ownerID, expiresAt.Format(time.RFC3339))
	fmt.Println(token)
}
