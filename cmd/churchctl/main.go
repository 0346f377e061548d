// churchctl runs maintenance tasks against the church database.
//
// Usage (from the repository root, with the same DB_* / REDIS_* env as the server):
//
//	go run ./cmd/churchctl migrate
//	go run ./cmd/churchctl seed --file seed.yaml
//	go run ./cmd/churchctl jobs recurring
//	go run ./cmd/churchctl jobs reminders
//	go run ./cmd/churchctl jobs tax-receipts --year 2025
//	go run ./cmd/churchctl reconcile --fix
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/utils"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "churchctl",
	Short:         "Maintenance commands for the church backend",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if config.GetDB() == nil {
			config.ConnectDatabaseWithRetry()
		}
		if config.GetRedisDB() == nil && os.Getenv("REDIS_ADDRESS") != "" {
			config.ConnectRedisWithRetry()
		}
	},
}

func systemContext(cmd *cobra.Command) context.Context {
	ctx := utils.SystemContext(cmd.Context())
	ctx = utils.SetUserNameInContext(ctx, "churchctl")
	return utils.SetCorrelationIdInContext(ctx, "churchctl-"+cmd.Name())
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "churchctl:", err)
		os.Exit(1)
	}
}
