package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/LeviWoodfall/Regia/internal/classify"
	"github.com/LeviWoodfall/Regia/internal/credentials"
	"github.com/LeviWoodfall/Regia/internal/database/models"
	"github.com/LeviWoodfall/Regia/internal/ingest"
	"github.com/LeviWoodfall/Regia/internal/processing"
	"github.com/LeviWoodfall/Regia/internal/processing/extract"
	"github.com/LeviWoodfall/Regia/internal/services"
)

var (
	runAccountEmail string
	runAll          bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run ingestion for one account or all enabled accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !runAll && runAccountEmail == "" {
			return fmt.Errorf("provide --account or --all")
		}

		accountSvc := services.NewAccountService(db)
		orchestrator := buildOrchestrator()

		var accounts []models.MailAccount
		if runAll {
			list, err := accountSvc.ListEnabledAccounts()
			if err != nil {
				return err
			}
			accounts = list
		} else {
			account, err := accountSvc.GetAccountByEmail(runAccountEmail)
			if err != nil {
				return err
			}
			accounts = []models.MailAccount{*account}
		}

		failed := false
		for i := range accounts {
			summary := orchestrator.Run(&accounts[i])
			fmt.Printf("%s: found=%d new=%d processed=%d skipped=%d post-actions=%d\n",
				summary.AccountEmail, summary.Found, summary.New,
				summary.Processed, summary.Skipped, summary.PostActions)
			for _, e := range summary.Errors {
				fmt.Fprintf(os.Stderr, "  error: %s\n", e)
				failed = true
			}
		}
		if failed {
			os.Exit(1)
		}
		return nil
	},
}

func buildOrchestrator() *ingest.Orchestrator {
	logService := services.NewLogService(db)
	credStore := credentials.NewStore(db, cfg.GetEncryptionKey())
	dedup := processing.NewDeduplicator(db, cfg.Storage)
	registry := extract.DefaultRegistry(cfg.OCR, log)
	classifier := classify.NewClassifier(cfg.Classifier, log)

	var downloader processing.Downloader
	if cfg.Download.Enabled {
		downloader = processing.NewHTTPDownloader(cfg.Download, log)
	}

	pipeline := processing.NewPipeline(db, dedup, registry, classifier, downloader, nil, logService, log)
	return ingest.NewOrchestrator(db, pipeline, logService,
		ingest.IMAPMailboxFactory(credStore, log), log)
}

func init() {
	runCmd.Flags().StringVar(&runAccountEmail, "account", "", "account address to ingest")
	runCmd.Flags().BoolVar(&runAll, "all", false, "ingest every enabled account")
}
