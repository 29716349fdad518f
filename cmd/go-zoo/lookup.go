package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randomizedcoder/go-pan/internal/zoo"
)

var cmdLookup = &cobra.Command{
	Use:   "lookup <tag>",
	Short: "Print the pid of the first live record carrying tag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}
		defer reg.Close()

		pid, err := reg.Lookup(args[0])
		if errors.Is(err, zoo.ErrNotFound) {
			return fmt.Errorf("tag %q: %w", args[0], err)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), pid)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cmdLookup)
}
