package main

import (
	"fmt"

	"github.com/mmdatafocus/church_backend/models"
	"github.com/spf13/cobra"
)

var reconcileFix bool

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Compare stored campaign, project, pledge and budget totals with their source rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		drifts, err := models.ReconcileLedgers(systemContext(cmd), reconcileFix)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(drifts) == 0 {
			fmt.Fprintln(out, "no drift")
			return nil
		}
		for _, d := range drifts {
			fmt.Fprintf(out, "%s #%d %s: recorded %s expected %s fixed=%t\n",
				d.Table, d.Id, d.Column, d.Recorded.StringFixed(2), d.Expected.StringFixed(2), d.Fixed)
		}
		return nil
	},
}

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileFix, "fix", false, "rewrite drifted totals")
	rootCmd.AddCommand(reconcileCmd)
}
