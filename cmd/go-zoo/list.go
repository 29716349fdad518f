package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listTag string

var cmdList = &cobra.Command{
	Use:   "list",
	Short: "List live registry records",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}
		defer reg.Close()

		records, err := reg.List()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PID\tTAG\tCMDLINE")
		for _, r := range records {
			if listTag != "" && r.Tag != listTag {
				continue
			}
			fmt.Fprintf(w, "%d\t%s\t%s\n", r.PID, r.Tag, r.CmdLine)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(cmdList)
	cmdList.Flags().StringVar(&listTag, "tag", "", "only show records carrying this tag")
}
