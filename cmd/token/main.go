// Command token issues a bearer token for local testing and operator tooling.
//
//	go run ./cmd/token -user t-1 -role TEACHER
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/noah-isme/classroom-workflow-api/internal/models"
	"github.com/noah-isme/classroom-workflow-api/internal/service"
	"github.com/noah-isme/classroom-workflow-api/pkg/clock"
	"github.com/noah-isme/classroom-workflow-api/pkg/config"
)

func main() {
	userID := flag.String("user", "", "user id carried in the token")
	role := flag.String("role", string(models.RoleStudent), "ADMIN, TEACHER or STUDENT")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to JWT_EXPIRATION)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	lifetime := cfg.JWT.Expiration
	if *ttl > 0 {
		lifetime = *ttl
	}

	tokens := service.NewTokenService(cfg.JWT.Secret, lifetime, clock.System{})
	token, expiresAt, err := tokens.Issue(*userID, models.UserRole(strings.ToUpper(*role)))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.Format(time.RFC3339))
}
