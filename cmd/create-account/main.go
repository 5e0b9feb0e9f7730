package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/stemsi/elearn-backend/internal/config"
	"github.com/stemsi/elearn-backend/internal/database"
	"github.com/stemsi/elearn-backend/internal/logger"
	"github.com/stemsi/elearn-backend/internal/model"
	"github.com/stemsi/elearn-backend/internal/repository"
	"github.com/stemsi/elearn-backend/internal/service"
)

const minPasswordLen = 6

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	accountRepo := repository.NewAccountRepository(pool)
	authService := service.NewAuthService(cfg, accountRepo, log)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Create New Account ===")

	role := model.Role(prompt(reader, "Role (admin/teacher/student): "))
	if !role.Valid() {
		fail("role must be admin, teacher or student")
	}

	username := prompt(reader, "Username: ")
	if len(username) < 2 {
		fail("username must be at least 2 characters")
	}

	email := prompt(reader, "Email: ")
	if !strings.Contains(email, "@") {
		fail("a valid email is required")
	}

	module := ""
	if role == model.RoleTeacher {
		module = prompt(reader, "Module (default General): ")
		if module == "" {
			module = "General"
		}
	}

	fmt.Print("Password: ")
	bytePassword, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println() // Newline after password input
	if err != nil {
		fail("could not read password")
	}
	password := string(bytePassword)
	if len(password) < minPasswordLen {
		fail(fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	hash, err := authService.HashPassword(password)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	var account model.Account
	switch role {
	case model.RoleAdmin:
		account = &model.AdminAccount{Username: username, Email: email, PasswordHash: hash}
	case model.RoleTeacher:
		account = &model.TeacherAccount{Username: username, Email: email, PasswordHash: hash, Module: module, IsActivated: true}
	case model.RoleStudent:
		account = &model.StudentAccount{Username: username, Email: email, PasswordHash: hash, IsActivated: true}
	}

	if err := accountRepo.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			fail("an account with this email already exists")
		}
		log.Fatal().Err(err).Msg("Failed to create account")
	}

	fmt.Printf("\nSuccess! %s '%s' (%s) created with ID: %d\n", role, username, email, account.AccountID())
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, "Error:", msg)
	os.Exit(1)
}
