package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unfloned/chronik/internal/app/reminder"
	"github.com/unfloned/chronik/internal/infra/scheduler"
)

func init() {
	rootCmd.AddCommand(remindCmd)
}

var remindCmd = &cobra.Command{
	Use:   "remind <job>",
	Short: "Run one reminder job immediately",
	Long: `Run one reminder job once and exit. Jobs:
  habit-reminder, deadline-warning, subscription-reminder, streak-risk

Reminders already sent today are not repeated.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{reminder.JobHabitReminder, reminder.JobDeadlineWarning, reminder.JobSubscriptionReminder, reminder.JobStreakRisk},
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := openOffline(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer o.Close()

		rc := o.cfg.ReminderConfig()
		rc.Disabled = nil
		sched := scheduler.New(nil)
		if err := reminder.Register(sched, o.store, o.gw, rc, nil); err != nil {
			return err
		}
		if err := sched.RunNow(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s finished.\n", args[0])
		return nil
	},
}
