//go:build !windows && !linux && !darwin

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serviceCmd)
}

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage the broadcaster as a system service",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Service management is not implemented for this platform.")
	},
}
