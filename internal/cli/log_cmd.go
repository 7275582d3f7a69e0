package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/LeviWoodfall/Regia/internal/services"
)

var (
	logsLimit   int
	logsAccount string
	logsAction  string
	logsStatus  string
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent ingestion log entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		query := services.LogQuery{
			Action: logsAction,
			Status: logsStatus,
			Limit:  logsLimit,
		}
		if logsAccount != "" {
			account, err := services.NewAccountService(db).GetAccountByEmail(logsAccount)
			if err != nil {
				return err
			}
			query.AccountID = &account.ID
		}

		result, err := services.NewLogService(db).QueryLogs(query)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tSTATUS\tACTION\tMESSAGE")
		for i := range result.Logs {
			entry := &result.Logs[i]
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				entry.CreatedAt.Format("2006-01-02 15:04:05"),
				entry.Status, entry.Action, entry.Message)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("%d of %d entries\n", len(result.Logs), result.Total)
		return nil
	},
}

func init() {
	logsCmd.Flags().IntVar(&logsLimit, "limit", 50, "max entries to show")
	logsCmd.Flags().StringVar(&logsAccount, "account", "", "filter by account address")
	logsCmd.Flags().StringVar(&logsAction, "action", "", "filter by action")
	logsCmd.Flags().StringVar(&logsStatus, "status", "", "filter by status: success, warning or error")
}
