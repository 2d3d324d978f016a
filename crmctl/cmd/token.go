package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	zohocrm "github.com/natserract/zoho/pkg/zoho/crm"
)

var revealToken bool

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Exchange the refresh token for an access token",
	Long: `Exchange ZOHO_REFRESH_TOKEN for a new access token and print it with
the API domain it is valid for. The token is abbreviated unless --reveal is
given.

The printed token and domain can be exported as ZOHO_ACCESS_TOKEN and
ZOHO_API_DOMAIN so later commands skip the exchange.`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().BoolVar(&revealToken, "reveal", false, "print the full access token")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client := zohocrm.NewWithLogger(cfg, logger)
	record, err := client.FetchToken(cmd.Context())
	if err != nil {
		return fmt.Errorf("fetching token: %w", err)
	}

	token := client.AbbreviatedAccessToken()
	if revealToken {
		token = client.AccessToken()
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "access token: %s\n", token)
	fmt.Fprintf(w, "api domain:   %s\n", client.APIDomain())
	if record.TokenType != nil {
		fmt.Fprintf(w, "token type:   %s\n", *record.TokenType)
	}
	if lifetime := record.Lifetime(); lifetime > 0 {
		fmt.Fprintf(w, "expires in:   %s\n", lifetime)
	}
	return nil
}
