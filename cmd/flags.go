package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// mustGetBool gets a bool flag value or panics if the flag doesn't exist.
func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

func mustGetInt(cmd *cobra.Command, name string) int {
	val, err := cmd.Flags().GetInt(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}
