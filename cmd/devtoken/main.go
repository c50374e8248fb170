package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"roomchat/internal/auth"
	"roomchat/internal/config"
	"roomchat/internal/models"
)

func main() {
	id := flag.String("id", "", "Identity id (random UUID if empty)")
	name := flag.String("name", "", "Display name")
	ttl := flag.Duration("ttl", 0, "Token lifetime (JWT_EXPIRES_IN if zero)")
	flag.Parse()

	if *name == "" {
		fmt.Fprintln(os.Stderr, "Usage: devtoken -name <display-name> [-id <identity-id>] [-ttl 24h]")
		fmt.Fprintln(os.Stderr, "  Signs with JWT_SECRET from the environment or .env")
		os.Exit(1)
	}
	if *id == "" {
		*id = uuid.NewString()
	}

	cfg := config.Load()
	token, err := auth.NewService(cfg).IssueToken(models.Identity{ID: *id, DisplayName: *name}, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
	if *ttl > 0 {
		fmt.Fprintf(os.Stderr, "expires %s\n", time.Now().Add(*ttl).Format(time.RFC3339))
	}
}
