package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/devroom-sh/devroom/internal/models"
	"github.com/devroom-sh/devroom/internal/token"
)

// gentoken mints a session token for local testing against a running
// server, e.g. for connecting a websocket client by hand.
func main() {
	secret := flag.String("secret", os.Getenv("SESSION_SECRET"), "HMAC signing secret")
	userID := flag.String("user", "", "User UUID")
	email := flag.String("email", "dev@localhost", "User email")
	ttl := flag.Duration("ttl", 24*time.Hour, "Token lifetime")
	flag.Parse()

	if *secret == "" {
		*secret = "devroom-dev-secret"
	}
	if *userID == "" {
		fmt.Fprintln(os.Stderr, "Usage: gentoken -user <uuid> [-email <email>] [-secret <secret>] [-ttl <duration>]")
		os.Exit(1)
	}

	id, err := uuid.Parse(*userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid user UUID: %v\n", err)
		os.Exit(1)
	}

	tokens := token.NewManager(*secret, *ttl, nil)
	signed, err := tokens.Sign(&models.User{ID: id, Email: *email})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(signed)
}
