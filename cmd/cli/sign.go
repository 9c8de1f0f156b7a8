package main

import (
	"fmt"
	"time"

	gateway "github.com/nimasrn/credit-gateway/internal/gateways"
	xhttp "github.com/nimasrn/credit-gateway/pkg/http"
	"github.com/spf13/cobra"
)

var signCmd = &cobra.Command{
	Use:   "sign ORDER_ID PAYMENT_ID",
	Short: "Compute the checkout signature for an order and payment",
	Long: `Compute hex(HMAC-SHA256(secret, "ORDER_ID|PAYMENT_ID")), the value the
provider checkout returns as razorpay_signature. Useful for exercising the
verify endpoint against a local deployment.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, _ := cmd.Flags().GetString("secret")
		if secret == "" {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			secret = cfg.RazorpayKeySecret
		}
		if secret == "" {
			return gateway.ErrGatewayNotConfigured
		}
		fmt.Fprintln(cmd.OutOrStdout(), gateway.Sign(secret, args[0], args[1]))
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token USER_ID",
	Short: "Issue a development bearer token for USER_ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, _ := cmd.Flags().GetString("secret")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		email, _ := cmd.Flags().GetString("email")
		if secret == "" {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			secret = cfg.AuthJwtSecret
		}
		if secret == "" {
			return fmt.Errorf("no signing secret: pass --secret or set AUTH_JWT_SECRET")
		}
		token, err := xhttp.IssueToken([]byte(secret), args[0], email, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	signCmd.Flags().String("secret", "", "Key secret (default RAZORPAY_KEY_SECRET)")
	tokenCmd.Flags().String("secret", "", "JWT secret (default AUTH_JWT_SECRET)")
	tokenCmd.Flags().String("email", "", "Email claim")
	tokenCmd.Flags().Duration("ttl", time.Hour, "Token lifetime")
	rootCmd.AddCommand(signCmd)
	rootCmd.AddCommand(tokenCmd)
}
