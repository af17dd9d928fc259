package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/brojonat/ticketchain/app"
	"github.com/brojonat/ticketchain/app/tui"
	"github.com/brojonat/ticketchain/client"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
)

var errNotConnected = errors.New("not connected: run `ticketchain connect` first")

func mintCommand() *cli.Command {
	return &cli.Command{
		Name:  "mint",
		Usage: "Mint tickets for the connected account",
		Description: `Build a mint_ticket transaction on the server, sign it with the
keystore and submit it. Totals are read again after the refresh delay
(TICKETCHAIN_REFRESH_DELAY, default 2s).

Example:
  ticketchain mint --amount 2 --recipient GB...`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "amount",
				Aliases: []string{"a"},
				Usage:   "Number of tickets to mint",
				Value:   "1",
			},
			&cli.StringFlag{
				Name:    "recipient",
				Aliases: []string{"r"},
				Usage:   "Recipient address (defaults to the connected account)",
			},
			&cli.BoolFlag{
				Name:    "wait",
				Aliases: []string{"w"},
				Usage:   "Wait for the confirmation event on the server's stream",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "How long --wait waits for confirmation",
				Value: 2 * time.Minute,
			},
		},
		Action: func(c *cli.Context) error {
			s, err := loadSettings(c)
			if err != nil {
				return err
			}

			api := newAPIClient(s)
			router := app.NewRouter(app.RouteMain)
			page := app.NewMainPage(api, newWallet(s, passwordSource()), app.NewFileSessionStore(s.SessionFile), router, s.RefreshDelay, cliLogger())
			defer page.Close()

			ctx := context.Background()
			if err := page.Mount(ctx); err != nil {
				return err
			}
			if router.Current() != app.RouteMain {
				return errNotConnected
			}

			page.SetAmount(c.String("amount"))
			if r := c.String("recipient"); r != "" {
				page.SetRecipient(r)
			}

			result, err := page.Mint(ctx)
			if err != nil {
				return err
			}

			var confirmation *client.TicketEvent
			if c.Bool("wait") && result.Hash != nil {
				confirmation, err = awaitConfirmation(ctx, api, *result.Hash, page.View().PublicKey, c.Duration("timeout"))
				if err != nil {
					return err
				}
			}

			time.Sleep(s.RefreshDelay)
			page.RefreshTotals(ctx)
			view := page.View()

			if jsonRequested(c) {
				return outputJSON(c, map[string]interface{}{
					"result":       result,
					"confirmation": confirmation,
					"total":        view.Total,
					"lastOwner":    view.LastOwner,
				})
			}

			w := c.App.Writer
			fmt.Fprintf(w, "✓ Transaction submitted\n")
			fmt.Fprintf(w, "  Status:  %s\n", result.Status)
			fmt.Fprintf(w, "  Hash:    %s\n", formatOptional(result.Hash))
			if confirmation != nil {
				fmt.Fprintf(w, "  Final:   %s (ledger %d)\n", confirmation.Status, confirmation.Ledger)
			}
			fmt.Fprintf(w, "\nTotal Tickets Minted: %d\n", view.Total)
			fmt.Fprintf(w, "Last Ticket Owner:    %s\n", view.LastOwner)
			return nil
		},
	}
}

var errConfirmed = errors.New("confirmed")

const confirmationLookback = 50

// awaitConfirmation blocks until the confirmed event for hash arrives. The
// stream only carries events published after it connects, so when it ends
// without the event the signer's recorded submissions are checked for a final
// status.
func awaitConfirmation(ctx context.Context, api *client.Client, hash, signer string, timeout time.Duration) (*client.TicketEvent, error) {
	waitCtx, cancel := context.WithTimeoutCause(ctx, timeout, fmt.Errorf("no confirmation for %s within %s", hash, timeout))
	defer cancel()

	var found *client.TicketEvent
	streamCtx, stop := context.WithCancelCause(waitCtx)
	defer stop(nil)

	err := api.StreamTickets(streamCtx, "confirmed", func(event *client.TicketEvent) {
		if event.Hash == hash {
			found = event
			stop(errConfirmed)
		}
	})
	if found != nil {
		return found, nil
	}

	if recorded := recordedConfirmation(ctx, api, hash, signer); recorded != nil {
		return recorded, nil
	}

	if cause := context.Cause(waitCtx); cause != nil {
		return nil, cause
	}
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("event stream closed before %s was confirmed", hash)
}

// recordedConfirmation looks hash up in the signer's submission history and
// returns it as a confirmed event if it already reached a final status.
func recordedConfirmation(ctx context.Context, api *client.Client, hash, signer string) *client.TicketEvent {
	if signer == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	subs, err := api.ListSubmissions(ctx, signer, confirmationLookback, 0)
	if err != nil {
		return nil
	}
	for _, sub := range subs {
		if sub.Hash != hash || sub.Status == "PENDING" {
			continue
		}
		event := &client.TicketEvent{
			Kind:        "confirmed",
			Hash:        sub.Hash,
			Signer:      signer,
			Status:      sub.Status,
			PublishedAt: sub.UpdatedAt,
		}
		if sub.Ledger != nil {
			event.Ledger = uint32(*sub.Ledger)
		}
		if sub.Error != nil {
			event.Error = *sub.Error
		}
		return event
	}
	return nil
}

func totalsCommand() *cli.Command {
	return &cli.Command{
		Name:  "totals",
		Usage: "Show total tickets minted and the last owner",
		Action: func(c *cli.Context) error {
			s, err := loadSettings(c)
			if err != nil {
				return err
			}

			totals := newAPIClient(s).GetTotals(context.Background())
			if totals == nil {
				return fmt.Errorf("failed to load totals from %s", s.ServerURL)
			}

			if jsonRequested(c) {
				return outputJSON(c, totals)
			}
			owner := "N/A"
			if totals.LastOwner != nil {
				owner = *totals.LastOwner
			}
			fmt.Fprintf(c.App.Writer, "Total Tickets Minted: %d\n", totals.Total)
			fmt.Fprintf(c.App.Writer, "Last Ticket Owner:    %s\n", owner)
			return nil
		},
	}
}

func submissionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "submissions",
		Usage: "List recorded submissions for an account",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "signer",
				Aliases: []string{"s"},
				Usage:   "Signer address (defaults to the connected account)",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of submissions",
				Value:   20,
			},
			&cli.IntFlag{
				Name:  "offset",
				Usage: "Number of submissions to skip",
			},
		},
		Action: func(c *cli.Context) error {
			s, err := loadSettings(c)
			if err != nil {
				return err
			}

			signer := c.String("signer")
			if signer == "" {
				signer, err = app.NewFileSessionStore(s.SessionFile).Load()
				if err != nil {
					return err
				}
				if signer == "" {
					return errNotConnected
				}
			}

			subs, err := newAPIClient(s).ListSubmissions(context.Background(), signer, c.Int("limit"), c.Int("offset"))
			if err != nil {
				return fmt.Errorf("failed to list submissions: %w", err)
			}

			if jsonRequested(c) {
				return outputJSON(c, subs)
			}
			printSubmissions(c, subs)
			return nil
		},
	}
}

func printSubmissions(c *cli.Context, subs []*client.Submission) {
	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "HASH\tSTATUS\tLEDGER\tSUBMITTED\tUPDATED")
	for _, sub := range subs {
		ledger := "-"
		if sub.Ledger != nil {
			ledger = humanize.Comma(*sub.Ledger)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			sub.Hash,
			sub.Status,
			ledger,
			humanize.Time(sub.SubmittedAt),
			humanize.Time(sub.UpdatedAt),
		)
	}
	w.Flush()

	fmt.Fprintf(c.App.ErrWriter, "\nTotal: %d submissions\n", len(subs))
}

func eventsCommand() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Stream ticket events from the server",
		Description: `Follow the server's Server-Sent Events stream at /api/stream/tickets.

Example:
  ticketchain events --kind confirmed`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "kind",
				Aliases: []string{"k"},
				Usage:   "Only show events of this kind (submitted, confirmed)",
			},
		},
		Action: func(c *cli.Context) error {
			s, err := loadSettings(c)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			asJSON := jsonRequested(c)
			if !asJSON {
				fmt.Fprintf(c.App.ErrWriter, "Streaming ticket events from %s (Ctrl+C to stop)\n\n", s.ServerURL)
			}

			err = newAPIClient(s).StreamTickets(ctx, c.String("kind"), func(event *client.TicketEvent) {
				if asJSON {
					if err := outputJSON(c, event); err != nil {
						fmt.Fprintf(c.App.ErrWriter, "failed to print event: %v\n", err)
					}
					return
				}
				printEvent(c, event)
			})
			if err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
}

func printEvent(c *cli.Context, event *client.TicketEvent) {
	line := fmt.Sprintf("[%s] %-9s %s %s", event.PublishedAt.Format(time.RFC3339), event.Kind, event.Hash, event.Status)
	if event.Ledger != 0 {
		line += fmt.Sprintf(" ledger=%d", event.Ledger)
	}
	if event.Signer != "" {
		line += " signer=" + app.TruncateKey(event.Signer)
	}
	if event.Error != "" {
		line += " error=" + event.Error
	}
	fmt.Fprintln(c.App.Writer, line)
}

func uiCommand() *cli.Command {
	return &cli.Command{
		Name:  "ui",
		Usage: "Open the interactive terminal UI",
		Action: func(c *cli.Context) error {
			s, err := loadSettings(c)
			if err != nil {
				return err
			}

			// The terminal belongs to the UI once it starts, so the keystore
			// password is read up front.
			password, err := unlockPassword(s)
			if err != nil {
				return err
			}

			session := app.NewFileSessionStore(s.SessionFile)
			start := app.RouteHome
			if key, err := session.Load(); err == nil && key != "" {
				start = app.RouteMain
			}

			router := app.NewRouter(start)
			wallet := newWallet(s, password)
			logger := cliLogger()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return tui.Run(ctx,
				app.NewConnectPage(wallet, session, router, logger),
				app.NewMainPage(newAPIClient(s), wallet, session, router, s.RefreshDelay, logger),
				router,
			)
		},
	}
}

func unlockPassword(s *app.Settings) (app.PasswordFunc, error) {
	if pw := os.Getenv("TICKETCHAIN_KEYSTORE_PASSWORD"); pw != "" {
		return app.StaticPassword(pw), nil
	}
	if _, err := os.Stat(s.KeystoreFile); err != nil {
		return nil, nil
	}

	raw, err := app.TerminalPassword("Keystore password: ")
	if err != nil {
		return nil, err
	}
	password := string(raw)
	clear(raw)
	return app.StaticPassword(password), nil
}
