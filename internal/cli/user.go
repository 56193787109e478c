package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/unfloned/chronik/internal/app/engagement"
	"github.com/unfloned/chronik/internal/domain"
)

func init() {
	userAddCmd.Flags().StringVar(&userID, "id", "", "User ID (default: random UUID)")

	f := userPrefsCmd.Flags()
	f.StringVar(&prefsFlags.reminderTime, "reminder-time", "", "Daily habit reminder time (HH:MM)")
	f.BoolVar(&prefsFlags.habitReminders, "habit-reminders", true, "Send habit reminders")
	f.BoolVar(&prefsFlags.deadlineWarnings, "deadline-warnings", true, "Send deadline warnings")
	f.IntSliceVar(&prefsFlags.deadlineDays, "deadline-days", nil, "Days before a deadline to warn, e.g. 3,1,0")
	f.BoolVar(&prefsFlags.streakWarnings, "streak-warnings", true, "Send streak-at-risk warnings")
	f.BoolVar(&prefsFlags.push, "push", true, "Deliver notifications by push")

	userCmd.AddCommand(userAddCmd, userListCmd, userPrefsCmd)
	rootCmd.AddCommand(userCmd)
}

var userID string

// prefsFlags holds the "user prefs" flags. Only flags set on the command
// line change the stored value.
var prefsFlags struct {
	reminderTime     string
	habitReminders   bool
	deadlineWarnings bool
	deadlineDays     []int
	streakWarnings   bool
	push             bool
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a user with default notification settings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := openOffline(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer o.Close()

		id := userID
		if id == "" {
			id = uuid.NewString()
		}
		u := domain.User{
			ID:        id,
			Name:      args[0],
			Prefs:     domain.DefaultNotificationPrefs(),
			CreatedAt: time.Now().UTC(),
		}
		if err := o.store.CreateUser(cmd.Context(), u); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List users with their level",
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := openOffline(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer o.Close()

		users, err := o.store.ListUsers(cmd.Context())
		if err != nil {
			return err
		}
		if len(users) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No users. Run 'chronik user add <name>' to create one.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tLEVEL\tXP\tCREATED")
		for _, u := range users {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
				u.ID, u.Name, engagement.LevelForXP(u.XP), u.XP,
				u.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var userPrefsCmd = &cobra.Command{
	Use:   "prefs <id>",
	Short: "Show or change a user's notification settings",
	Example: `  chronik user prefs u1
  chronik user prefs u1 --reminder-time 20:00 --deadline-days 7,1 --streak-warnings=false`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := openOffline(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer o.Close()

		ctx, id := cmd.Context(), args[0]
		prefs, err := o.gw.Settings(ctx, id)
		if err != nil {
			return err
		}

		f := cmd.Flags()
		if f.NFlag() > 0 {
			if f.Changed("reminder-time") {
				prefs.ReminderTime = prefsFlags.reminderTime
			}
			if f.Changed("habit-reminders") {
				prefs.HabitRemindersEnabled = prefsFlags.habitReminders
			}
			if f.Changed("deadline-warnings") {
				prefs.DeadlineWarningsEnabled = prefsFlags.deadlineWarnings
			}
			if f.Changed("deadline-days") {
				prefs.DeadlineWarningDays = prefsFlags.deadlineDays
			}
			if f.Changed("streak-warnings") {
				prefs.StreakWarningsEnabled = prefsFlags.streakWarnings
			}
			if f.Changed("push") {
				prefs.PushEnabled = prefsFlags.push
			}
			if prefs, err = o.gw.UpdateSettings(ctx, id, prefs); err != nil {
				return err
			}
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "reminder_time\t%s\n", prefs.ReminderTime)
		fmt.Fprintf(w, "habit_reminders\t%t\n", prefs.HabitRemindersEnabled)
		fmt.Fprintf(w, "deadline_warnings\t%t\n", prefs.DeadlineWarningsEnabled)
		fmt.Fprintf(w, "deadline_days\t%s\n", domain.EncodeDays(prefs.DeadlineWarningDays))
		fmt.Fprintf(w, "streak_warnings\t%t\n", prefs.StreakWarningsEnabled)
		fmt.Fprintf(w, "push\t%t\n", prefs.PushEnabled)
		return w.Flush()
	},
}
