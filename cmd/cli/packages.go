package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/nimasrn/credit-gateway/internal/catalog"
	"github.com/spf13/cobra"
)

var packagesCmd = &cobra.Command{
	Use:   "packages",
	Short: "List purchasable credit packages",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		c, err := catalog.Load(file)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCREDITS\tPRICE\tPOPULAR")
		for _, p := range c.All() {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%v\n", p.ID, p.Name, p.Credits, p.DisplayPrice(), p.Popular)
		}
		return w.Flush()
	},
}

func init() {
	packagesCmd.Flags().String("file", "", "TOML catalog file (default built-in packages)")
	rootCmd.AddCommand(packagesCmd)
}
