package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/brojonat/ticketchain/service/db"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"
)

func listSubmissionsCommand() *cli.Command {
	return &cli.Command{
		Name:    "list-submissions",
		Usage:   "List recorded submissions",
		Aliases: []string{"ls"},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "signer",
				Aliases: []string{"s"},
				Usage:   "Filter by signer address",
			},
			&cli.StringFlag{
				Name:  "status",
				Usage: "Filter by status (PENDING, SUCCESS, FAILED, TIMEOUT)",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Limit number of submissions",
				Value:   50,
			},
		},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			subs, err := store.ListSubmissions(context.Background(), db.ListSubmissionsParams{
				Signer: c.String("signer"),
				Limit:  int32(c.Int("limit")),
			})
			if err != nil {
				return fmt.Errorf("failed to list submissions: %w", err)
			}

			if statusFilter := c.String("status"); statusFilter != "" {
				filtered := make([]*db.Submission, 0, len(subs))
				for _, sub := range subs {
					if sub.Status == statusFilter {
						filtered = append(filtered, sub)
					}
				}
				subs = filtered
			}

			if jsonRequested(c) {
				return outputJSON(c, subs)
			}

			w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "HASH\tSIGNER\tSTATUS\tLEDGER\tSUBMITTED")
			for _, sub := range subs {
				ledger := "-"
				if sub.Ledger != nil {
					ledger = fmt.Sprint(*sub.Ledger)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					sub.Hash,
					sub.Signer,
					sub.Status,
					ledger,
					sub.SubmittedAt.Format(time.RFC3339),
				)
			}
			w.Flush()

			fmt.Fprintf(c.App.ErrWriter, "\nTotal: %d submissions\n", len(subs))
			return nil
		},
	}
}

func getSubmissionCommand() *cli.Command {
	return &cli.Command{
		Name:      "get-submission",
		Usage:     "Get submission details",
		Aliases:   []string{"get"},
		ArgsUsage: "<hash>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: transaction hash")
			}

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			sub, err := store.GetSubmission(context.Background(), c.Args().First())
			if err != nil {
				return fmt.Errorf("failed to get submission: %w", err)
			}

			if jsonRequested(c) {
				return outputJSON(c, sub)
			}

			w := c.App.Writer
			fmt.Fprintf(w, "Hash:      %s\n", sub.Hash)
			fmt.Fprintf(w, "Signer:    %s\n", sub.Signer)
			fmt.Fprintf(w, "Status:    %s\n", sub.Status)
			if sub.Ledger != nil {
				fmt.Fprintf(w, "Ledger:    %d\n", *sub.Ledger)
			} else {
				fmt.Fprintf(w, "Ledger:    -\n")
			}
			fmt.Fprintf(w, "Error:     %s\n", formatOptional(sub.Error))
			fmt.Fprintf(w, "Submitted: %s\n", sub.SubmittedAt.Format(time.RFC3339))
			fmt.Fprintf(w, "Updated:   %s\n", sub.UpdatedAt.Format(time.RFC3339))
			return nil
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply the submissions schema",
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			if err := store.Migrate(context.Background()); err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, "✓ Schema applied")
			return nil
		},
	}
}

// Helper function to connect to database
func getStore(c *cli.Context) (*db.Store, func(), error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		return nil, nil, fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := db.NewStore(pool, nil)
	closer := func() { pool.Close() }

	return store, closer, nil
}
