// Command seed creates the default branches and provisions one account.
//
//	seed -email admin@school.edu -password secret -role admin -branch ACEIS -name "Lab Admin"
//
// Running it again with the same email replaces the password, role,
// branch and name of that account.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"invencea-api/internal/config"
	"invencea-api/internal/model"
	"invencea-api/internal/repository"
	"invencea-api/pkg/argon"
	"invencea-api/pkg/uid"
)

type seedArgs struct {
	email    string
	password string
	role     string
	branch   string
	name     string
}

func main() {
	var a seedArgs
	flag.StringVar(&a.email, "email", "", "account email (required)")
	flag.StringVar(&a.password, "password", "", "account password (required)")
	flag.StringVar(&a.role, "role", "admin", "admin, faculty or kiosk")
	flag.StringVar(&a.branch, "branch", "ACEIS", "branch code: ACEIS, ECEIS or CPEIS")
	flag.StringVar(&a.name, "name", "", "full name (defaults to the email)")
	branchesOnly := flag.Bool("branches-only", false, "create branches and exit")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := run(a, *branchesOnly); err != nil {
		fmt.Fprintln(os.Stderr, "seed:", err)
		os.Exit(1)
	}
}

func run(a seedArgs, branchesOnly bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := repository.Open(ctx, repository.Options{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN(),
	})
	if err != nil {
		return err
	}
	defer db.Close()

	branches := repository.NewBranchStore(db)
	all, err := branches.EnsureDefaults(ctx)
	if err != nil {
		return err
	}
	for _, b := range all {
		fmt.Printf("branch %s\t%s\n", b.Code, b.ID)
	}
	if branchesOnly {
		return nil
	}

	user, err := buildUser(ctx, a, branches)
	if err != nil {
		return err
	}
	if err := repository.NewUserStore(db).Upsert(ctx, user); err != nil {
		return err
	}

	fmt.Printf("user %s\t%s\t%s\t%s\n", user.Email, user.Role, a.branch, user.ID)
	return nil
}

func buildUser(ctx context.Context, a seedArgs, branches repository.BranchRepository) (*model.User, error) {
	email := strings.TrimSpace(a.email)
	if email == "" || a.password == "" {
		return nil, errors.New("-email and -password are required")
	}
	role, ok := model.ParseRole(a.role)
	if !ok {
		return nil, fmt.Errorf("unknown role %q", a.role)
	}
	code, ok := model.ParseBranchCode(a.branch)
	if !ok {
		return nil, fmt.Errorf("unknown branch %q", a.branch)
	}
	branch, err := branches.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("load branch %s: %w", code, err)
	}

	hash, err := argon.CreateHash(a.password, argon.DefaultParams)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	name := strings.TrimSpace(a.name)
	if name == "" {
		name = email
	}

	return &model.User{
		ID:           uid.New(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		BranchID:     branch.ID,
		FullName:     name,
	}, nil
}
