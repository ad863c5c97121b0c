package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"syscall"

	"github.com/backtrackjee/portal-backend/internal/config"
	"github.com/backtrackjee/portal-backend/internal/database"
	"github.com/backtrackjee/portal-backend/internal/logger"
	"github.com/backtrackjee/portal-backend/internal/model"
	"github.com/backtrackjee/portal-backend/internal/repository"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

// create-user registers an account from the command line, prompting for the
// password without echo. Useful for seeding accounts before the portal opens.
func main() {
	name := flag.String("name", "", "display name")
	email := flag.String("email", "", "email address")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	if *name == "" || *email == "" {
		fmt.Println("usage: create-user -name <name> -email <email>")
		os.Exit(1)
	}

	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		log.Fatal().Err(err).Msg("Password read failed")
	}
	if len(password) < 6 {
		log.Fatal().Msg("Password must be at least 6 characters")
	}

	hash, err := bcrypt.GenerateFromPassword(password, cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Password hash failed")
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("PostgreSQL connection failed")
	}
	defer pool.Close()

	user := &model.User{
		Name:         *name,
		Email:        *email,
		PasswordHash: string(hash),
	}
	if err := repository.NewUserRepository(pool).Create(ctx, user); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Fatal().Str("email", *email).Msg("Email already registered")
		}
		log.Fatal().Err(err).Msg("User creation failed")
	}

	log.Info().Int("id", user.ID).Str("email", user.Email).Msg("User created")
}
