package main

import (
	"time"

	"github.com/mmdatafocus/church_backend/workflow"
	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Run a scheduled job once, now",
}

var jobsRecurringCmd = &cobra.Command{
	Use:   "recurring",
	Short: "Create donations for every recurring schedule that is due",
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := workflow.RunRecurringDonations(systemContext(cmd), time.Now())
		if err != nil {
			return err
		}
		return printJSON(cmd, result)
	},
}

var jobsRemindersCmd = &cobra.Command{
	Use:   "reminders",
	Short: "Mark overdue pledges and queue pledge reminders",
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := workflow.RunPledgeReminders(systemContext(cmd), time.Now())
		if err != nil {
			return err
		}
		return printJSON(cmd, result)
	},
}

var taxReceiptYear int

var jobsTaxReceiptsCmd = &cobra.Command{
	Use:   "tax-receipts",
	Short: "Issue annual tax receipts for a year (default: last year)",
	RunE: func(cmd *cobra.Command, args []string) error {
		year := taxReceiptYear
		if year == 0 {
			year = time.Now().Year() - 1
		}
		result, err := workflow.RunAnnualTaxReceipts(systemContext(cmd), year)
		if err != nil {
			return err
		}
		return printJSON(cmd, result)
	},
}

func init() {
	jobsTaxReceiptsCmd.Flags().IntVar(&taxReceiptYear, "year", 0, "tax year to issue receipts for")
	jobsCmd.AddCommand(jobsRecurringCmd, jobsRemindersCmd, jobsTaxReceiptsCmd)
	rootCmd.AddCommand(jobsCmd)
}
