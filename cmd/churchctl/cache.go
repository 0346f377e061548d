package main

import (
	"errors"
	"fmt"

	"github.com/mmdatafocus/church_backend/config"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the redis read cache",
}

var cacheFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Drop every cached record, list and report",
	RunE: func(cmd *cobra.Command, args []string) error {
		if config.GetRedisDB() == nil {
			return errors.New("REDIS_ADDRESS is not set")
		}
		if err := config.ClearRedis(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "cache flushed")
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheFlushCmd)
	rootCmd.AddCommand(cacheCmd)
}
