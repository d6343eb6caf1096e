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

	"golang.org/x/term"

	"spendwise/internal/auth"
	"spendwise/internal/backend"
	"spendwise/internal/cli"
	"spendwise/internal/config"
	"spendwise/internal/core"
	"spendwise/internal/log"
)

func main() {
	if err := cli.LoadEnvFile(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	defaults := config.Load()

	fs := flag.NewFlagSet("spendwise-adduser", flag.ContinueOnError)
	fs.SetOutput(stderr)

	username := fs.String("user", "", "Username")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	backendType := fs.String("backend", defaults.DataBackend, "Storage backend: sqlite or postgres")
	dbPath := fs.String("db", defaults.SQLiteDBPath, "Path to the SQLite database file")
	databaseURL := fs.String("database-url", defaults.DatabaseURL, "PostgreSQL connection URL")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *username == "" {
		fmt.Fprintln(stdout, "Usage: spendwise-adduser -user <username> [-password <password>] [-backend sqlite|postgres] [-db <path>] [-database-url <url>]")
		fs.PrintDefaults()
		return errors.New("missing required flags: user")
	}
	if *backendType == string(backend.MemoryBackend) {
		return errors.New("the memory backend does not persist users")
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		var err error
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password cannot be empty")
	}

	res, err := backend.NewFactory(log.New(log.Config{Level: log.ParseLevel("warn"), Output: stderr})).
		CreateBackend(ctx, backend.Config{
			Type:         backend.BackendType(*backendType),
			SQLiteDBPath: *dbPath,
			DatabaseURL:  *databaseURL,
		})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer res.Cleanup()

	if _, err := res.Store.GetUserByUsername(ctx, *username); err == nil {
		return fmt.Errorf("user %s already exists", core.NormalizeUsername(*username))
	} else if !errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("failed to look up user: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := res.Store.CreateUser(ctx, *username, hash)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(stdout, "User %s created successfully with ID %s\n", user.Username, user.ID)
	return nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
