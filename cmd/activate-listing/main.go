// Command activate-listing force-activates a paid listing whose payment
// went through but whose webhook never arrived.
//
//	activate-listing <listing-id>
//	activate-listing --list
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"greendrake/localboard/internal/config"
	"greendrake/localboard/internal/db"
	"greendrake/localboard/internal/logging"
	"greendrake/localboard/internal/models"
	"greendrake/localboard/internal/repository"
	"greendrake/localboard/internal/services"
	"greendrake/localboard/internal/utils"
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

var (
	mongoURIFlag = &cli.StringFlag{
		Name:     "mongo-uri",
		Usage:    "MongoDB connection string",
		Required: true,
		Sources:  cli.EnvVars("MONGO_URI"),
	}
	mongoDBFlag = &cli.StringFlag{
		Name:    "mongo-db",
		Usage:   "MongoDB database name",
		Value:   "localboard",
		Sources: cli.EnvVars("MONGO_DB_NAME"),
	}
	logLevelFlag = &cli.StringFlag{
		Name:    "log-level",
		Aliases: []string{"l"},
		Usage:   "The level of the logs",
		Value:   "warn",
		Validator: func(value string) error {
			if !slices.Contains(validLogLevels, value) {
				return fmt.Errorf("invalid log level: %s, allowed values are: %s", value, validLogLevels)
			}
			return nil
		},
		Sources: cli.EnvVars("LOG_LEVEL"),
	}
	listFlag = &cli.BoolFlag{
		Name:  "list",
		Usage: "List paid listings still waiting for activation",
	}
)

// activator is the part of the listing service the command drives.
type activator interface {
	ForceActivate(ctx context.Context, id utils.SixID, now time.Time) (*services.ActivationReport, error)
	ListPendingPaid(ctx context.Context) ([]models.Listing, error)
}

type env struct {
	listings  repository.IListingRepository
	users     repository.IUserRepository
	activator activator
	now       func() time.Time
}

// opener builds the command's dependencies from parsed flags. The returned
// func releases them.
type opener func(ctx context.Context, c *cli.Command) (*env, func(), error)

func newCommand(open opener, stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "activate-listing",
		Usage:     "Manually activate a paid listing",
		ArgsUsage: "<listing-id>",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags:     []cli.Flag{mongoURIFlag, mongoDBFlag, logLevelFlag, listFlag},
		Action: func(ctx context.Context, c *cli.Command) error {
			if !c.Bool("list") && c.NArg() != 1 {
				return errors.New("usage: activate-listing <listing-id> | --list")
			}
			var id utils.SixID
			if !c.Bool("list") {
				parsed, err := utils.ParseSixID(c.Args().First())
				if err != nil {
					return fmt.Errorf("invalid listing id %q: %w", c.Args().First(), err)
				}
				id = parsed
			}

			e, closeFn, err := open(ctx, c)
			if err != nil {
				return err
			}
			defer closeFn()

			if c.Bool("list") {
				return listPending(ctx, e, stdout)
			}
			return activate(ctx, e, id, stdout)
		},
	}
}

func listPending(ctx context.Context, e *env, out io.Writer) error {
	pending, err := e.activator.ListPendingPaid(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Fprintln(out, "No pending paid listings found.")
		return nil
	}
	fmt.Fprintf(out, "%d pending paid listing(s):\n", len(pending))
	for _, l := range pending {
		fmt.Fprintf(out, "  %s  %-15s  %s  %q  session=%s\n",
			l.ID, l.Status, l.CreatedAt.Format(time.DateOnly), l.Title, orNone(l.CheckoutSessionID))
	}
	return nil
}

func activate(ctx context.Context, e *env, id utils.SixID, out io.Writer) error {
	listing, err := e.listings.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("listing %s not found", id)
	}
	if err != nil {
		return fmt.Errorf("failed to load listing %s: %w", id, err)
	}

	fmt.Fprintf(out, "Listing:          %s\n", listing.ID)
	fmt.Fprintf(out, "Title:            %s\n", listing.Title)
	fmt.Fprintf(out, "Category:         %s\n", listing.Category)
	fmt.Fprintf(out, "Status:           %s\n", listing.Status)
	fmt.Fprintf(out, "Poster:           %s\n", poster(ctx, e.users, listing.UserID))
	fmt.Fprintf(out, "Checkout session: %s\n", orNone(listing.CheckoutSessionID))

	if !listing.Category.RequiresPayment() {
		return fmt.Errorf("listing %s is %s; only paid listings can be activated here", id, listing.Category)
	}
	if listing.Status == models.StatusActive {
		fmt.Fprintf(out, "Already ACTIVE, expires %s. Nothing to do.\n", formatTime(listing.ExpiresAt))
		return nil
	}

	report, err := e.activator.ForceActivate(ctx, id, e.now())
	if err != nil {
		return fmt.Errorf("activation failed: %w", err)
	}
	if !report.Activated {
		fmt.Fprintf(out, "Already ACTIVE, expires %s. Nothing to do.\n", formatTime(report.Listing.ExpiresAt))
		return nil
	}
	fmt.Fprintf(out, "Activated (was %s).\n", report.PriorStatus)
	fmt.Fprintf(out, "New expiry:       %s\n", formatTime(report.Listing.ExpiresAt))
	return nil
}

func poster(ctx context.Context, users repository.IUserRepository, id utils.SixID) string {
	user, err := users.FindByID(ctx, id)
	if err != nil {
		return id.String() + " (profile unavailable)"
	}
	if user.Email != "" {
		return fmt.Sprintf("%s <%s> %s", user.DisplayName(), user.Email, id)
	}
	return fmt.Sprintf("%s %s", user.DisplayName(), id)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.UTC().Format(time.RFC3339)
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func openMongo(_ context.Context, c *cli.Command) (*env, func(), error) {
	log, err := logging.New(c.String("log-level"), true)
	if err != nil {
		return nil, nil, err
	}
	client, database, err := db.ConnectDB(c.String("mongo-uri"), c.String("mongo-db"), log)
	if err != nil {
		return nil, nil, err
	}
	cfg := &config.Config{
		RunMode:     "cli",
		MongoURI:    c.String("mongo-uri"),
		MongoDbName: c.String("mongo-db"),
		LogLevel:    c.String("log-level"),
	}
	listings := repository.NewListingRepository(database)
	// Activation touches neither object storage nor the task queue.
	svc := services.NewListingService(listings, nil, nil, cfg, log)

	closeFn := func() {
		if err := db.DisconnectDB(client); err != nil {
			log.Warn("disconnect failed", zap.Error(err))
		}
		_ = log.Sync()
	}
	return &env{
		listings:  listings,
		users:     repository.NewUserRepository(database),
		activator: svc,
		now:       time.Now,
	}, closeFn, nil
}

func main() {
	cmd := newCommand(openMongo, os.Stdout, os.Stderr)
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
