// Command passkeyctl provisions the passkeys that gate registration.
//
//	passkeyctl create [-key KEY] [-label LABEL] [-single-use]
//	passkeyctl list
//	passkeyctl disable KEY
//
// It reads MONGO_URI and MONGO_DB like the server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-envconfig"

	"github.com/pairchat/pairchat/internal/core/domain"
	"github.com/pairchat/pairchat/internal/core/ports"
	"github.com/pairchat/pairchat/internal/infrastructure/config"
	"github.com/pairchat/pairchat/internal/infrastructure/db/mongo"
	"github.com/pairchat/pairchat/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log := logger.Init(logger.Options{Level: "warn", Pretty: true})

	var cfg config.MongoConfig
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatal().Err(err).Msg("load configuration")
	}

	client, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.URI, Database: cfg.Database})
	if err != nil {
		log.Fatal().Err(err).Msg("connect mongodb")
	}
	defer client.Disconnect(context.Background())

	repo := mongo.NewPasskeyRepository(db)
	if err := repo.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("create indexes")
	}

	if err := run(ctx, repo, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "passkeyctl:", err)
		stop()
		os.Exit(1)
	}
}

var errUsage = errors.New("usage: passkeyctl create [-key KEY] [-label LABEL] [-single-use] | list | disable KEY")

func run(ctx context.Context, repo ports.PasskeyRepository, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	switch args[0] {
	case "create":
		fs := flag.NewFlagSet("create", flag.ContinueOnError)
		key := fs.String("key", "", "passkey value (generated when empty)")
		label := fs.String("label", "", "free-text description")
		singleUse := fs.Bool("single-use", false, "deactivate the passkey after one registration")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		return create(ctx, repo, out, strings.TrimSpace(*key), *label, *singleUse)
	case "list":
		return list(ctx, repo, out)
	case "disable":
		if len(args) != 2 {
			return errUsage
		}
		if err := repo.Disable(ctx, args[1]); err != nil {
			return fmt.Errorf("disable %q: %w", args[1], err)
		}
		fmt.Fprintf(out, "disabled %s\n", args[1])
		return nil
	default:
		return errUsage
	}
}

func create(ctx context.Context, repo ports.PasskeyRepository, out io.Writer, key, label string, singleUse bool) error {
	if key == "" {
		key = uuid.NewString()
	}
	p, err := repo.Create(ctx, &domain.Passkey{
		Key:       key,
		Label:     label,
		Active:    true,
		SingleUse: singleUse,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	fmt.Fprintln(out, p.Key)
	return nil
}

func list(ctx context.Context, repo ports.PasskeyRepository, out io.Writer) error {
	keys, err := repo.List(ctx)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tLABEL\tACTIVE\tSINGLE-USE\tCONSUMED\tCREATED")
	for _, p := range keys {
		consumed := "-"
		if p.ConsumedAt != nil {
			consumed = p.ConsumedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%t\t%s\t%s\n", p.Key, p.Label, p.Active, p.SingleUse, consumed, p.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}
