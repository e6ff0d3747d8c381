package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	pkgAuth "github.com/angelmondragon/blingbridge/pkg/auth"
	"github.com/angelmondragon/blingbridge/pkg/config"
	"github.com/angelmondragon/blingbridge/pkg/logger"
)

// token mints an access token for the admin or store surface of the api.
func main() {
	var (
		subject = flag.String("subject", "", "token subject, e.g. the operator email or store name")
		role    = flag.String("role", string(pkgAuth.RoleAdmin), "role to grant: admin or store")
		ttl     = flag.Int("ttl", 0, "override the configured expiration in minutes")
	)
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "token", Format: "console", Output: os.Stderr})
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		logg.Debug(ctx, ".env file not found, relying on environment")
	}

	var jwtCfg config.JWTConfig
	if err := envconfig.Process(config.EnvPrefix, &jwtCfg); err != nil {
		logg.Error(ctx, "failed to load jwt config", err)
		os.Exit(1)
	}
	if *ttl > 0 {
		jwtCfg.ExpirationMinutes = *ttl
	}

	token, err := pkgAuth.MintAccessToken(jwtCfg, time.Now().UTC(), pkgAuth.AccessTokenPayload{
		Subject: *subject,
		Role:    pkgAuth.Role(*role),
	})
	if err != nil {
		logg.Error(logg.WithFields(ctx, map[string]any{"subject": *subject, "role": *role}), "failed to mint token", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
