package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/suzukibelltree/SampleToDoApp/internal/auth"
)

func newTokenCmd(a *app) *cobra.Command {
	var deviceID string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a device token for the protected API",
		RunE: func(cmd *cobra.Command, args []string) error {
			issuer, err := auth.NewIssuer(a.cfg.Auth)
			if err != nil {
				return err
			}
			if deviceID == "" {
				deviceID = uuid.NewString()
			}
			token, err := issuer.GenerateToken(deviceID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&deviceID, "device", "", "device id to embed (random when empty)")
	return cmd
}
