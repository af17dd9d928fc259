package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	natspkg "github.com/brojonat/ticketchain/service/nats"
	"github.com/urfave/cli/v2"
)

// subscribeCommand follows ticket events straight from JetStream.
func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:  "subscribe",
		Usage: "Subscribe to ticket events on NATS JetStream",
		Description: `Stream ticket events as the server and worker publish them.

Events are published to tickets.submitted and tickets.confirmed.

Example:
  ticketchain nats subscribe --kind confirmed --json`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "kind",
				Aliases: []string{"k"},
				Usage:   "Only show events of this kind (submitted, confirmed)",
			},
		},
		Action: func(c *cli.Context) error {
			subject := natspkg.StreamSubjects
			switch kind := c.String("kind"); kind {
			case "":
			case natspkg.EventSubmitted, natspkg.EventConfirmed:
				subject = natspkg.SubjectPrefix + kind
			default:
				return fmt.Errorf("invalid kind %q: must be %q or %q", kind, natspkg.EventSubmitted, natspkg.EventConfirmed)
			}

			sub, err := natspkg.NewSubscriber(c.String("nats-url"), cliLogger())
			if err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			defer sub.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			asJSON := jsonRequested(c)
			if !asJSON {
				fmt.Fprintf(c.App.ErrWriter, "📡 Subscribing to: %s\n\n", subject)
			}

			return sub.Subscribe(ctx, subject, func(event *natspkg.TicketEvent) {
				if asJSON {
					if err := outputJSON(c, event); err != nil {
						fmt.Fprintf(c.App.ErrWriter, "failed to print event: %v\n", err)
					}
					return
				}
				fmt.Fprintf(c.App.Writer, "[%s] %-9s %s %s\n",
					event.PublishedAt.Format("15:04:05"), event.Kind, event.Hash, event.Status)
			})
		},
	}
}

// inspectStreamCommand shows information about the ticket JetStream stream.
func inspectStreamCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect-stream",
		Usage: "Inspect the TICKETS JetStream stream",
		Description: `Show information about the JetStream stream including:
- Message count
- Consumers
- Storage usage
- Stream configuration

Example:
  ticketchain nats inspect-stream`,
		Action: func(c *cli.Context) error {
			sub, err := natspkg.NewSubscriber(c.String("nats-url"), cliLogger())
			if err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			defer sub.Close()

			info, err := sub.StreamInfo(context.Background())
			if err != nil {
				return err
			}

			if jsonRequested(c) {
				return outputJSON(c, info)
			}

			w := c.App.Writer
			fmt.Fprintf(w, "Stream: %s\n", info.Config.Name)
			fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
			fmt.Fprintf(w, "Description:  %s\n", info.Config.Description)
			fmt.Fprintf(w, "Subjects:     %v\n", info.Config.Subjects)
			fmt.Fprintf(w, "Messages:     %d\n", info.State.Msgs)
			fmt.Fprintf(w, "Bytes:        %d\n", info.State.Bytes)
			fmt.Fprintf(w, "First Seq:    %d\n", info.State.FirstSeq)
			fmt.Fprintf(w, "Last Seq:     %d\n", info.State.LastSeq)
			fmt.Fprintf(w, "Consumers:    %d\n", info.State.Consumers)
			fmt.Fprintf(w, "Max Age:      %s\n", info.Config.MaxAge)
			fmt.Fprintf(w, "Storage:      %s\n", info.Config.Storage)
			return nil
		},
	}
}
