package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/LeviWoodfall/Regia/internal/services"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage mail accounts",
}

var (
	addName         string
	addEmail        string
	addHost         string
	addPort         int
	addNoSSL        bool
	addAuthMethod   string
	addClientID     string
	addClientSecret string
	addFolders      []string
	addCriteria     string
	addMaxPerFetch  int
	addMaxAgeDays   int
	addAttachOnly   bool
	addMaxAttachMB  int
	addNoLinks      bool
	addPostAction   string
	addPostFolder   string
)

var accountAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a mail account",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := services.NewAccountService(db)
		account, err := svc.CreateAccount(services.CreateAccountInput{
			Name:               addName,
			Email:              addEmail,
			IMAPHost:           addHost,
			IMAPPort:           addPort,
			UseSSL:             !addNoSSL,
			AuthMethod:         addAuthMethod,
			OAuthClientID:      addClientID,
			OAuthClientSecret:  addClientSecret,
			Folders:            addFolders,
			SearchCriteria:     addCriteria,
			MaxPerFetch:        addMaxPerFetch,
			MaxAgeDays:         addMaxAgeDays,
			RequireAttachments: addAttachOnly,
			MaxAttachmentMB:    addMaxAttachMB,
			DownloadLinks:      !addNoLinks,
			PostAction:         addPostAction,
			PostActionFolder:   addPostFolder,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Account %d created for %s\n", account.ID, account.Email)
		fmt.Println("Set its credential with: regia credential set --account " + account.Email)
		return nil
	},
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := services.NewAccountService(db)
		accounts, err := svc.ListAccounts()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tEMAIL\tSERVER\tAUTH\tENABLED\tFOLDERS\tPOST-ACTION")
		for i := range accounts {
			a := &accounts[i]
			action := a.ResolvePostAction()
			fmt.Fprintf(w, "%d\t%s\t%s:%d\t%s\t%v\t%s\t%s\n",
				a.ID, a.Email, a.IMAPHost, a.IMAPPort, a.AuthMethod, a.Enabled,
				strings.Join(a.FolderList(), ","), action.Kind)
		}
		return w.Flush()
	},
}

var accountEnableCmd = &cobra.Command{
	Use:   "enable [email]",
	Short: "Include an account in ingestion runs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setAccountEnabled(args[0], true)
	},
}

var accountDisableCmd = &cobra.Command{
	Use:   "disable [email]",
	Short: "Exclude an account from ingestion runs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setAccountEnabled(args[0], false)
	},
}

func setAccountEnabled(email string, enabled bool) error {
	svc := services.NewAccountService(db)
	account, err := svc.GetAccountByEmail(email)
	if err != nil {
		return err
	}
	if err := svc.SetEnabled(account.ID, enabled); err != nil {
		return err
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	fmt.Printf("Account %s %s\n", account.Email, state)
	return nil
}

var accountTestCmd = &cobra.Command{
	Use:   "test [email]",
	Short: "Probe an account's IMAP server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := services.NewAccountService(db)
		account, err := svc.GetAccountByEmail(args[0])
		if err != nil {
			return err
		}

		result := services.TestIMAPConnection(account.IMAPHost, account.IMAPPort, account.UseSSL)
		fmt.Println(result.Message)
		if !result.Success {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	accountAddCmd.Flags().StringVar(&addName, "name", "", "display name")
	accountAddCmd.Flags().StringVar(&addEmail, "email", "", "account address (required)")
	accountAddCmd.Flags().StringVar(&addHost, "host", "", "IMAP server host (required)")
	accountAddCmd.Flags().IntVar(&addPort, "port", 993, "IMAP server port")
	accountAddCmd.Flags().BoolVar(&addNoSSL, "no-ssl", false, "connect without TLS")
	accountAddCmd.Flags().StringVar(&addAuthMethod, "auth", "app_password", "auth method: app_password or oauth2")
	accountAddCmd.Flags().StringVar(&addClientID, "oauth-client-id", "", "OAuth2 client id")
	accountAddCmd.Flags().StringVar(&addClientSecret, "oauth-client-secret", "", "OAuth2 client secret")
	accountAddCmd.Flags().StringSliceVar(&addFolders, "folders", []string{"INBOX"}, "folders to scan")
	accountAddCmd.Flags().StringVar(&addCriteria, "criteria", "UNSEEN", "search criteria: UNSEEN, ALL, SEEN or FLAGGED")
	accountAddCmd.Flags().IntVar(&addMaxPerFetch, "max-per-fetch", 50, "max messages per run")
	accountAddCmd.Flags().IntVar(&addMaxAgeDays, "max-age-days", 0, "skip messages older than N days (0 = no cutoff)")
	accountAddCmd.Flags().BoolVar(&addAttachOnly, "require-attachments", false, "only ingest messages with attachments")
	accountAddCmd.Flags().IntVar(&addMaxAttachMB, "max-attachment-mb", 50, "skip attachments larger than N MB")
	accountAddCmd.Flags().BoolVar(&addNoLinks, "no-links", false, "do not download invoice links")
	accountAddCmd.Flags().StringVar(&addPostAction, "post-action", "", "after ingestion: mark_read, move, delete or archive")
	accountAddCmd.Flags().StringVar(&addPostFolder, "post-action-folder", "", "destination folder for the move post-action")
	accountAddCmd.MarkFlagRequired("email")
	accountAddCmd.MarkFlagRequired("host")

	accountCmd.AddCommand(accountAddCmd)
	accountCmd.AddCommand(accountListCmd)
	accountCmd.AddCommand(accountEnableCmd)
	accountCmd.AddCommand(accountDisableCmd)
	accountCmd.AddCommand(accountTestCmd)
}
