// Command token prints a signed identity token for local development.
//
//	token -email reader@example.com -name "Reader" [-ttl 24h]
//
// The token is signed with AUTH_JWT_SECRET and carries AUTH_ISSUER and
// AUTH_AUDIENCE when set, so the API accepts it as a provider token.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/oklog/ulid/v2"

	"github.com/shelfkeep/shelfkeep/internal/auth"
	"github.com/shelfkeep/shelfkeep/internal/model"
)

type tokenConfig struct {
	Secret   string `env:"AUTH_JWT_SECRET,required,notEmpty"`
	Issuer   string `env:"AUTH_ISSUER"`
	Audience string `env:"AUTH_AUDIENCE"`
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "token:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fset := flag.NewFlagSet("token", flag.ContinueOnError)
	email := fset.String("email", "", "email claim (required)")
	name := fset.String("name", "", "display name claim")
	subject := fset.String("subject", "", "subject claim (defaults to the email)")
	ttl := fset.Duration("ttl", time.Hour, "token lifetime")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return errors.New("-email is required")
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg tokenConfig
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	token, err := issue(cfg, model.Identity{Subject: *subject, Email: *email, Name: *name}, *ttl)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, token)
	return err
}

func issue(cfg tokenConfig, identity model.Identity, ttl time.Duration) (string, error) {
	if identity.Subject == "" {
		identity.Subject = identity.Email
	}

	issuer := &auth.TokenIssuer{
		Secret:   []byte(cfg.Secret),
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
		TTL:      ttl,
	}
	return issuer.Issue(identity, ulid.Make().String())
}
