package cli

import (
	"github.com/spf13/cobra"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List configured bridge providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Providers()
	},
}
