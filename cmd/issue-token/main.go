// Package main mints an access token signed with JWT_SECRET, for local
// development and manual testing of services behind the authentication gate.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	jwttoken "enrollment/internal/jwt_token"
	"enrollment/internal/platform/config"
)

type tokenConfig struct {
	JWT config.JWT `envPrefix:"JWT_"`
}

func main() {
	var (
		subject  string
		userID   int64
		role     string
		fullName string
		ttl      time.Duration
	)
	flag.StringVar(&subject, "sub", "admin@university.com", "subject (user email)")
	flag.Int64Var(&userID, "uid", 1, "numeric user id")
	flag.StringVar(&role, "role", "ADMIN", "role tag (ADMIN or USER)")
	flag.StringVar(&fullName, "name", "Administrador", "display name")
	flag.DurationVar(&ttl, "ttl", 0, "token lifetime (default JWT_TTL)")
	flag.Parse()

	var cfg tokenConfig
	if err := config.ParseEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if ttl == 0 {
		ttl = cfg.JWT.TTL
	}

	svc, err := jwttoken.NewJWTService(cfg.JWT.Secret)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	token, err := svc.Issue(subject, userID, role, fullName, ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
