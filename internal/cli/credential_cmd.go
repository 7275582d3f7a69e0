package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/LeviWoodfall/Regia/internal/credentials"
	"github.com/LeviWoodfall/Regia/internal/database/models"
	"github.com/LeviWoodfall/Regia/internal/services"
)

var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Manage account credentials",
}

var credAccount string

var credentialSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set an account's app password or OAuth2 tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		accountSvc := services.NewAccountService(db)
		account, err := accountSvc.GetAccountByEmail(credAccount)
		if err != nil {
			return err
		}

		store := credentials.NewStore(db, cfg.GetEncryptionKey())

		if models.AuthMethod(account.AuthMethod) == models.AuthMethodOAuth2 {
			return setOAuthTokens(store, account.ID)
		}
		return setAppPassword(store, account.ID)
	},
}

func setAppPassword(store *credentials.Store, accountID uint) error {
	fmt.Print("App password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if len(password) == 0 {
		return fmt.Errorf("empty password")
	}

	if err := store.SetAppPassword(accountID, string(password)); err != nil {
		return err
	}
	fmt.Println("App password stored.")
	return nil
}

func setOAuthTokens(store *credentials.Store, accountID uint) error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Access token (leave empty to keep current): ")
	accessToken, err := reader.ReadString('\n')
	if err != nil {
		return err
	}
	accessToken = strings.TrimSpace(accessToken)

	fmt.Print("Refresh token: ")
	refreshBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read refresh token: %w", err)
	}
	refreshToken := strings.TrimSpace(string(refreshBytes))

	if accessToken == "" && refreshToken == "" {
		return fmt.Errorf("no tokens provided")
	}

	// An unknown expiry forces a refresh on first use.
	expiry := time.Now().Add(-time.Minute)
	if err := store.SetOAuthTokens(accountID, accessToken, refreshToken, expiry); err != nil {
		return err
	}
	fmt.Println("OAuth2 tokens stored.")
	return nil
}

func init() {
	credentialSetCmd.Flags().StringVar(&credAccount, "account", "", "account address (required)")
	credentialSetCmd.MarkFlagRequired("account")

	credentialCmd.AddCommand(credentialSetCmd)
}
