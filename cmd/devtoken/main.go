// Command devtoken prints an access token for local testing, signed with
// JWT_SECRET from the environment or .env.
//
//	go run ./cmd/devtoken -id 7 -role CUSTOMER -email alice@example.com
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/resource-rental/internal/utils"
)

func main() {
	id := flag.Uint64("id", 1, "actor id (token subject)")
	role := flag.String("role", "CUSTOMER", "CUSTOMER or OWNER")
	email := flag.String("email", "", "email claim")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("devtoken: JWT_SECRET is not set")
	}
	if *role != "CUSTOMER" && *role != "OWNER" {
		log.Fatalf("devtoken: role must be CUSTOMER or OWNER, got %q", *role)
	}
	tok, err := utils.NewAccessToken(secret, *id, *role, *email, *ttl)
	if err != nil {
		log.Fatalf("devtoken: %v", err)
	}
	fmt.Println(tok.Token)
}
