package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"accounts/internal/auth"
	"accounts/internal/config"
	"accounts/internal/db"
	"accounts/internal/mongodb"
	"accounts/internal/schema"
	"accounts/internal/store"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	configPath := flag.String("config", "config.yaml", "path to config file")
	fixturePath := flag.String("file", "seed.yaml", "path to the YAML list of accounts")
	reset := flag.Bool("reset", false, "delete existing accounts before seeding")
	flag.Parse()

	if err := run(*configPath, *fixturePath, *reset); err != nil {
		slog.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, fixturePath string, reset bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	data, err := os.ReadFile(fixturePath)
	if err != nil {
		return fmt.Errorf("reading fixture: %w", err)
	}
	requests, err := parseFixture(data)
	if err != nil {
		return err
	}

	hasher, err := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}

	ctx := context.Background()
	st, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close(ctx)

	if reset {
		if err := wipe(ctx, st.Accounts(), requests); err != nil {
			return err
		}
	}

	created, err := seed(ctx, st.Accounts(), hasher, requests)
	if err != nil {
		return err
	}
	slog.Info("seed complete", "created", created, "skipped", len(requests)-created)
	return nil
}

// parseFixture reads a YAML list of register payloads and runs each through
// the same decoding and validation as POST /api/auth/register.
func parseFixture(data []byte) ([]*schema.RegisterRequest, error) {
	var raw []map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}

	requests := make([]*schema.RegisterRequest, 0, len(raw))
	for i, entry := range raw {
		payload, err := json.Marshal(jsonCompatible(entry))
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}

		var req schema.RegisterRequest
		if err := schema.DecodeJSON(bytes.NewReader(payload), &req); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if err := schema.Validate(&req); err != nil {
			return nil, fmt.Errorf("entry %d (%s): %w", i, req.Email, err)
		}
		requests = append(requests, &req)
	}
	return requests, nil
}

// jsonCompatible turns unquoted YAML dates back into the YYYY-MM-DD strings
// the register schema expects.
func jsonCompatible(v any) any {
	switch val := v.(type) {
	case time.Time:
		return val.Format(time.DateOnly)
	case map[string]any:
		for k, inner := range val {
			val[k] = jsonCompatible(inner)
		}
		return val
	case []any:
		for i, inner := range val {
			val[i] = jsonCompatible(inner)
		}
		return val
	default:
		return v
	}
}

// wipe removes every non-admin account plus any admin the fixture is about
// to recreate.
func wipe(ctx context.Context, accounts store.Accounts, requests []*schema.RegisterRequest) error {
	deleted, _, err := accounts.DeleteNonAdmins(ctx)
	if err != nil {
		return fmt.Errorf("deleting accounts: %w", err)
	}

	for _, req := range requests {
		existing, err := accounts.FindByEmail(ctx, req.Email)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("looking up %s: %w", req.Email, err)
		}
		if _, err := accounts.Delete(ctx, existing.ID); err != nil {
			return fmt.Errorf("deleting %s: %w", req.Email, err)
		}
		deleted++
	}

	slog.Info("existing accounts removed", "count", deleted)
	return nil
}

// seed inserts the accounts, skipping emails that are already registered.
func seed(ctx context.Context, accounts store.Accounts, hasher *auth.PasswordHasher, requests []*schema.RegisterRequest) (int, error) {
	created := 0
	for _, req := range requests {
		newAccount := req.NewAccount()
		passwordHash, err := hasher.Hash(newAccount.Password)
		if err != nil {
			return created, fmt.Errorf("hashing password for %s: %w", req.Email, err)
		}

		account := newAccount.Account(passwordHash)
		err = accounts.Create(ctx, account)
		if errors.Is(err, store.ErrDuplicate) {
			slog.Warn("account already exists", "email", req.Email)
			continue
		}
		if err != nil {
			return created, fmt.Errorf("creating %s: %w", req.Email, err)
		}
		slog.Info("account created", "id", account.ID, "email", account.Email, "is_admin", account.IsAdmin)
		created++
	}
	return created, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.Database.Driver == config.DriverMongo {
		connectCtx, cancel := context.WithTimeout(ctx, cfg.Database.ConnectTimeout)
		defer cancel()
		return mongodb.Connect(connectCtx, cfg.Database.URI, cfg.Database.Name)
	}

	database, err := db.Open(ctx, cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	return db.NewStore(database), nil
}
