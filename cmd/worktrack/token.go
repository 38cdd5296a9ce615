package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/worktrack/worktrack/cmd/worktrack/cli"
	"github.com/worktrack/worktrack/internal/token"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Session token helpers",
	}

	var (
		lenient   bool
		leeway    time.Duration
		verifyKey string
	)
	inspect := &cobra.Command{
		Use:   "inspect <token>",
		Short: "Decode a session token and report expiry and roles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := token.Options{RequireExp: !lenient, Leeway: leeway}
			if verifyKey != "" {
				opts.VerifyKey = []byte(verifyKey)
			}
			report, err := cli.NewTokenCLI(token.NewValidator(opts)).Inspect(args[0])
			if err != nil {
				return err
			}
			report.Print(cmd.OutOrStdout())
			return nil
		},
	}
	inspect.Flags().BoolVar(&lenient, "lenient", false, "treat tokens without exp as valid")
	inspect.Flags().DurationVar(&leeway, "leeway", 0, "clock skew allowance")
	inspect.Flags().StringVar(&verifyKey, "verify-key", "", "HMAC key to verify the signature with")

	cmd.AddCommand(inspect)
	return cmd
}
