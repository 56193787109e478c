package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/unfloned/chronik/internal/app/engagement"
)

func init() {
	levelsCmd.Flags().IntVar(&levelsMax, "max", 20, "Highest level to print")
	rootCmd.AddCommand(levelsCmd)
}

var levelsMax int

var levelsCmd = &cobra.Command{
	Use:   "levels",
	Short: "Print the XP required for each level",
	RunE: func(cmd *cobra.Command, args []string) error {
		max := levelsMax
		if max < 1 || max > engagement.MaxLevel {
			max = engagement.MaxLevel
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "LEVEL\tTOTAL XP\tTO NEXT")
		for lvl := 1; lvl <= max; lvl++ {
			next := "-"
			if lvl < engagement.MaxLevel {
				next = fmt.Sprint(engagement.XPForLevel(lvl+1) - engagement.XPForLevel(lvl))
			}
			fmt.Fprintf(w, "%d\t%d\t%s\n", lvl, engagement.XPForLevel(lvl), next)
		}
		return w.Flush()
	},
}
