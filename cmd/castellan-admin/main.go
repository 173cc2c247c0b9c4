// Package main is the entry point for the Castellan admin CLI.
// It manages user accounts directly against the database, without going
// through the HTTP API, and generates signing secrets for deployment.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/castellan/internal/config"
	"github.com/prn-tf/castellan/internal/pkg/crypto"
	"github.com/prn-tf/castellan/internal/repository"
	"github.com/prn-tf/castellan/internal/repository/postgres"
	"github.com/prn-tf/castellan/internal/repository/sqlite"
	"github.com/prn-tf/castellan/internal/service"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	var err error
	switch command {
	case "version":
		fmt.Printf("Castellan Admin CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "user":
		err = runUser(*configPath, args)

	case "secret":
		err = runSecret(args)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runUser(configPath string, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("user subcommand required (list, create, block, unblock, delete)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cfg := config.MustLoad(configPath)
	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel).With().Timestamp().Logger()

	userRepo, closeDB, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	switch args[0] {
	case "list":
		return listUsers(ctx, userRepo)
	case "create":
		return createUser(ctx, cfg, userRepo, logger, args[1:])
	case "block":
		return bulkAction(ctx, userRepo, logger, args[1:], "block",
			func(s *service.UsersService, ids []int64) (*service.BulkResult, error) {
				return s.BlockMany(ctx, ids)
			})
	case "unblock":
		return bulkAction(ctx, userRepo, logger, args[1:], "unblock",
			func(s *service.UsersService, ids []int64) (*service.BulkResult, error) {
				return s.UnblockMany(ctx, ids)
			})
	case "delete":
		return bulkAction(ctx, userRepo, logger, args[1:], "delete",
			func(s *service.UsersService, ids []int64) (*service.BulkResult, error) {
				return s.DeleteMany(ctx, ids)
			})
	default:
		return fmt.Errorf("unknown user subcommand: %s", args[0])
	}
}

func openRepository(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (repository.UserRepository, func(), error) {
	if cfg.Database.IsEmbedded() {
		db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(cfg.Database.Path), logger)
		if err != nil {
			return nil, nil, err
		}
		return sqlite.NewUserRepository(db), func() { _ = db.Close() }, nil
	}

	db, err := postgres.NewDB(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, err
	}
	return postgres.NewUserRepository(db), func() { db.Close() }, nil
}

func listUsers(ctx context.Context, userRepo repository.UserRepository) error {
	result, err := userRepo.List(ctx, repository.ListOptions{Page: 1, PageSize: 100})
	if err != nil {
		return err
	}

	fmt.Printf("%-6s %-30s %-40s %-8s %s\n", "ID", "NAME", "EMAIL", "BLOCKED", "LAST LOGIN")
	for _, u := range result.Items {
		lastLogin := "never"
		if u.LastLogin != nil {
			lastLogin = u.LastLogin.Format(time.RFC3339)
		}
		fmt.Printf("%-6d %-30s %-40s %-8t %s\n", u.ID, u.Name, u.Email, u.IsBlocked, lastLogin)
	}
	fmt.Printf("\n%d users total\n", result.Total)
	return nil
}

func createUser(ctx context.Context, cfg *config.Config, userRepo repository.UserRepository, logger zerolog.Logger, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: user create <name> <email> <password>")
	}

	hasher := crypto.NewPasswordHasher(cfg.Auth.BcryptCost)
	// The admin CLI reuses the registration flow; the issuer is not
	// needed because no token is minted here.
	authService := service.NewAuthService(userRepo, hasher, nil, logger)

	output, err := authService.Register(ctx, service.RegisterInput{
		Name:     args[0],
		Email:    args[1],
		Password: args[2],
	})
	if err != nil {
		return err
	}

	fmt.Printf("created user %d (%s)\n", output.User.ID, output.User.Email)
	return nil
}

func bulkAction(ctx context.Context, userRepo repository.UserRepository, logger zerolog.Logger, args []string, action string,
	fn func(*service.UsersService, []int64) (*service.BulkResult, error)) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: user %s <id> [id...]", action)
	}

	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid user id %q", arg)
		}
		ids = append(ids, id)
	}

	usersService := service.NewUsersService(userRepo, logger)
	result, err := fn(usersService, ids)
	if err != nil {
		return err
	}

	fmt.Printf("%s applied to %d users", action, len(result.Processed))
	if len(result.Skipped) > 0 {
		fmt.Printf(", skipped unknown ids %v", result.Skipped)
	}
	fmt.Println()
	return nil
}

func runSecret(args []string) error {
	if len(args) < 1 || args[0] != "generate" {
		return fmt.Errorf("usage: secret generate")
	}

	secret, err := crypto.GenerateSigningSecret()
	if err != nil {
		return err
	}

	fmt.Println(secret)
	return nil
}

func printUsage() {
	fmt.Println(`Castellan Admin CLI

Usage:
  castellan-admin [-config path] <command> [arguments]

Commands:
  user list                            List user accounts
  user create <name> <email> <pass>    Create a user account
  user block <id> [id...]              Block user accounts
  user unblock <id> [id...]            Unblock user accounts
  user delete <id> [id...]             Delete user accounts
  secret generate                      Generate a JWT signing secret
  version                              Print version information
  help                                 Show this help message

Configuration comes from the same config file and CASTELLAN_* environment
variables as the server.`)
}
