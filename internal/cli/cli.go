package cli

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/LeviWoodfall/Regia/internal/config"
)

var (
	db  *gorm.DB
	cfg *config.Config
	log *logrus.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "regia",
	Short: "Regia mail ingestion and document archive",
	Long: `Regia ingests mail from configured IMAP accounts, stores attachments
and invoice downloads as content-addressed documents, extracts their text,
and classifies them into a searchable archive.

Examples:
  regia account add --email you@example.com --host imap.example.com
  regia account list
  regia credential set --account you@example.com
  regia run --account you@example.com
  regia run --all`,
}

// Execute runs the CLI with the provided database and config
func Execute(database *gorm.DB, config *config.Config, logger *logrus.Logger) {
	db = database
	cfg = config
	log = logger

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(credentialCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(logsCmd)
}
