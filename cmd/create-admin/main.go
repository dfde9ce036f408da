// Command create-admin creates an administrator account, or resets an
// existing one. The account must change its password on first login.
//
//	create-admin -email admin@example.com -username admin -password 'temporary'
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/markdave123-py/Inkwell/internal/app"
	"github.com/markdave123-py/Inkwell/internal/config"
	db "github.com/markdave123-py/Inkwell/internal/core/database"
	"github.com/markdave123-py/Inkwell/internal/services"
)

func main() {
	email := flag.String("email", "admin@inkwell.local", "administrator email")
	username := flag.String("username", "admin", "administrator username")
	password := flag.String("password", os.Getenv("ADMIN_PASSWORD"), "temporary password (defaults to $ADMIN_PASSWORD)")
	flag.Parse()

	if err := run(*email, *username, *password); err != nil {
		logrus.Errorf("create-admin: %v", err)
		os.Exit(1)
	}
}

func run(email, username, password string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	app.ConfigureLogging(cfg)
	if password == "" {
		return errors.New("a password is required (-password or ADMIN_PASSWORD)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client, err := db.NewDatabaseClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer client.Close()

	users := services.NewUserService(client, services.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL))
	u, created, err := users.EnsureAdmin(ctx, email, username, password)
	if err != nil {
		return err
	}

	log := logrus.WithFields(logrus.Fields{"user_id": u.ID, "email": u.Email, "username": u.Username})
	if created {
		log.Info("administrator created; password change required on first login")
	} else {
		log.Info("administrator reset; password change required on next login")
	}
	return nil
}
