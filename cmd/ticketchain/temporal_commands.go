package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/brojonat/ticketchain/service/temporal"
	"github.com/urfave/cli/v2"
)

func describeConfirmationCommand() *cli.Command {
	return &cli.Command{
		Name:      "describe",
		Usage:     "Describe the confirmation workflow of a submission",
		ArgsUsage: "<hash>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: transaction hash")
			}

			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			info, err := tc.DescribeConfirmation(context.Background(), c.Args().First())
			if err != nil {
				return err
			}

			if jsonRequested(c) {
				return outputJSON(c, info)
			}

			w := c.App.Writer
			fmt.Fprintf(w, "Workflow ID: %s\n", info.WorkflowID)
			fmt.Fprintf(w, "Run ID:      %s\n", info.RunID)
			fmt.Fprintf(w, "Status:      %s\n", info.Status)
			fmt.Fprintf(w, "Started:     %s\n", info.StartTime.Format(time.RFC3339))
			if info.CloseTime != nil {
				fmt.Fprintf(w, "Closed:      %s\n", info.CloseTime.Format(time.RFC3339))
			}
			if info.Result != nil {
				fmt.Fprintf(w, "\nResult:      %s after %d polls\n", info.Result.Status, info.Result.Polls)
				if info.Result.Ledger != 0 {
					fmt.Fprintf(w, "Ledger:      %d\n", info.Result.Ledger)
				}
				if info.Result.Error != nil {
					fmt.Fprintf(w, "Error:       %s\n", *info.Result.Error)
				}
			}
			return nil
		},
	}
}

func startConfirmationCommand() *cli.Command {
	return &cli.Command{
		Name:      "confirm",
		Usage:     "Start tracking a submission that was not picked up automatically",
		ArgsUsage: "<hash>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "signer",
				Usage:    "Signer address of the submission",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: transaction hash")
			}
			hash := c.Args().First()

			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			if err := tc.StartConfirmation(context.Background(), hash, c.String("signer")); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "✓ Confirmation started for %s\n", hash)
			return nil
		},
	}
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Helper function to connect to Temporal
func getTemporalClient(c *cli.Context) (*temporal.Client, error) {
	host := c.String("temporal-host")
	if host == "" {
		host = getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	}
	namespace := c.String("temporal-namespace")
	if namespace == "" {
		namespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	}
	taskQueue := getEnvOrDefault("TEMPORAL_TASK_QUEUE", "ticketchain-confirmations")

	tc, err := temporal.NewClient(host, namespace, taskQueue, 0, 0, cliLogger())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}
	return tc, nil
}
