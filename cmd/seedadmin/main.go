// Command seedadmin creates the primary admin account, or repairs it when it
// was deactivated or demoted. With -reset-password it also replaces the
// password, which is the way back in when the recovery answer is lost.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"hrportal-backend/internal/audit"
	"hrportal-backend/internal/auth"
	"hrportal-backend/internal/config"
	"hrportal-backend/internal/database"
	"hrportal-backend/internal/logging"

	"golang.org/x/term"
)

func main() {
	resetPassword := flag.Bool("reset-password", false, "replace the password of an existing primary admin")
	flag.Parse()

	if err := run(context.Background(), *resetPassword); err != nil {
		fmt.Fprintln(os.Stderr, "seedadmin:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, resetPassword bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, cfg.IsDevelopment(), cfg.LogLevel)

	db, err := database.Open(cfg, logger)
	if err != nil {
		return err
	}
	store := database.NewUserStore(db)

	var password string
	existing, err := store.FindByEmail(ctx, cfg.PrimaryAdminEmail)
	switch {
	case errors.Is(err, database.ErrNotFound), err == nil && resetPassword:
		if password, err = readPassword(os.Stdout, "Password for "+cfg.PrimaryAdminEmail); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		logger.Info("primary admin exists, password left unchanged", "user_id", existing.ID)
	}

	svc := auth.NewService(store, auth.NewHasher(cfg.BcryptCost), auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL),
		audit.NewRecorder(db, logger), cfg.PrimaryAdminEmail, logger)

	admin, created, err := svc.EnsurePrimaryAdmin(ctx, password, resetPassword)
	if err != nil {
		return err
	}
	if created {
		fmt.Printf("created primary admin %s (id %d)\n", admin.Email, admin.ID)
	} else {
		fmt.Printf("primary admin %s (id %d) is active with role %s\n", admin.Email, admin.ID, admin.Role)
	}
	return nil
}

// readPassword prompts on a terminal, or reads one line when stdin is piped.
func readPassword(w io.Writer, prompt string) (string, error) {
	if env := os.Getenv("SEED_ADMIN_PASSWORD"); env != "" {
		return env, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}

	fmt.Fprint(w, prompt+": ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	fmt.Fprint(w, "Repeat password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}
