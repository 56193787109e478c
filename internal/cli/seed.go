package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	achievementsCmd.Flags().BoolVar(&achievementsHidden, "hidden", false, "Include hidden achievements")
	rootCmd.AddCommand(seedCmd, achievementsCmd)
}

var achievementsHidden bool

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert missing achievement definitions into storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := openOffline(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer o.Close()

		n, err := o.engine.Seed(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d achievement(s), %d in catalog.\n",
			n, len(o.engine.Catalog.Definitions()))
		return nil
	},
}

var achievementsCmd = &cobra.Command{
	Use:     "achievements",
	Aliases: []string{"ach"},
	Short:   "List the achievement catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := openOffline(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer o.Close()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tCATEGORY\tTYPE\tXP\tNAME")
		for _, d := range o.engine.Catalog.Definitions() {
			if d.Hidden && !achievementsHidden {
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", d.Key, d.Category, d.Type, d.XPReward, d.Name)
		}
		return w.Flush()
	},
}
