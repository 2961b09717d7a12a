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

	"fitness-dashboard/internal/auth"
	"fitness-dashboard/internal/config"
	"fitness-dashboard/internal/models"
	"fitness-dashboard/internal/storage"

	"golang.org/x/term"
)

const (
	defaultStorePath = "users.json"
	defaultDBPath    = "fitness.db"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	fs.SetOutput(stderr)

	username := fs.String("user", "", "Username")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	backend := fs.String("backend", config.BackendJSON, "User store backend (json or sqlite)")
	storePath := fs.String("store", defaultStorePath, "Path to the JSON user store")
	dbPath := fs.String("db", defaultDBPath, "Path to the SQLite database (sqlite backend)")
	goal := fs.Float64("goal", models.DefaultGoal, "Weekly calorie goal in kcal")
	scheme := fs.String("scheme", string(auth.SchemeSHA256), "Password hash scheme (sha256 or bcrypt)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *username == "" {
		fmt.Fprintln(stdout, "Usage: adduser -user <username> [-password <password>] [-backend json|sqlite] [-store <store_path>] [-db <db_path>] [-goal <kcal>]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: user")
	}

	if *goal <= 0 {
		return fmt.Errorf("goal must be positive")
	}

	hasher, err := auth.NewHasher(auth.Scheme(*scheme))
	if err != nil {
		return err
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout) // Print newline after password input
	}

	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("password cannot be empty")
	}

	// Env vars apply only where the flag was left at its default, matching
	// the server's settings.
	if v := os.Getenv("STORE_BACKEND"); v != "" && *backend == config.BackendJSON {
		*backend = v
	}
	if path := os.Getenv("STORE_PATH"); path != "" && *storePath == defaultStorePath {
		*storePath = path
	}
	if path := os.Getenv("DB_PATH"); path != "" && *dbPath == defaultDBPath {
		*dbPath = path
	}

	store, location, closeStore, err := openStore(*backend, *storePath, *dbPath)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx := context.Background()

	err = auth.ValidateSignup(auth.SignupRequest{
		Username:        *username,
		Password:        password,
		ConfirmPassword: password,
	}, func(name string) (bool, error) {
		return storage.Exists(ctx, store, name)
	})
	var verr *auth.ValidationError
	if errors.As(err, &verr) {
		if verr.Field == "username" {
			return fmt.Errorf("user %s already exists", *username)
		}
		return errors.New(verr.Message)
	}
	if err != nil {
		return err
	}

	hash, err := hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := storage.CreateUser(ctx, store, *username, hash); err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			return fmt.Errorf("user %s already exists", *username)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	if *goal != models.DefaultGoal {
		if err := storage.SetGoal(ctx, store, *username, *goal); err != nil {
			return fmt.Errorf("failed to set goal: %w", err)
		}
	}

	fmt.Fprintf(stdout, "User %s created successfully in %s\n", *username, location)
	return nil
}

// openStore returns the user repository the server would read for backend,
// with a description of where it lives.
func openStore(backend, storePath, dbPath string) (storage.Repository, string, func(), error) {
	switch strings.ToLower(backend) {
	case config.BackendJSON:
		store := storage.NewJSONStore(storePath)
		return store, store.Path(), func() {}, nil
	case config.BackendSQLite:
		db, err := storage.NewDB(dbPath)
		if err != nil {
			return nil, "", nil, fmt.Errorf("failed to open database: %w", err)
		}
		return db, dbPath, func() { db.Close() }, nil
	default:
		return nil, "", nil, fmt.Errorf("unknown store backend: %s", backend)
	}
}

func readPassword(stdin io.Reader) (string, error) {
	// Check if stdin is a terminal
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	// Fallback for non-terminal (e.g. tests, pipes)
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
