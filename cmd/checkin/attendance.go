package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/celerix-dev/celerix-checkin/internal/attendance"
	"github.com/celerix-dev/celerix-checkin/internal/report"
)

var historyOut string

var scanCmd = &cobra.Command{
	Use:   "scan <code>",
	Short: "Record a check-in, then a check-out, for today",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := currentUser()
		if err != nil {
			return err
		}
		day, err := client.RecordScan(userID, args[0])
		if err != nil {
			return err
		}
		printJSON(day)
		return nil
	},
}

var dayCmd = &cobra.Command{
	Use:   "day [YYYY-MM-DD]",
	Short: "Show one day",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := currentUser()
		if err != nil {
			return err
		}
		dateKey, err := dateArg(args)
		if err != nil {
			return err
		}
		day, err := client.GetDay(userID, dateKey)
		if err != nil {
			return err
		}
		printJSON(day)
		return nil
	},
}

var weekCmd = &cobra.Command{
	Use:   "week",
	Short: "Show Monday through Sunday of the current week",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := currentUser()
		if err != nil {
			return err
		}
		days, err := client.GetWeek(userID)
		if err != nil {
			return err
		}
		printJSON(days)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history [YYYY-MM]",
	Short: "Show every day of a month",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := currentUser()
		if err != nil {
			return err
		}
		loc, err := cfg.Location()
		if err != nil {
			return err
		}
		month := today(loc).Format(attendance.MonthLayout)
		if len(args) == 1 {
			month = args[0]
		}

		days, err := client.GetHistory(userID, month)
		if err != nil {
			return err
		}
		if historyOut == "" {
			printJSON(days)
			return nil
		}

		user, err := findUser(userID)
		if err != nil {
			return err
		}
		f, err := os.Create(historyOut)
		if err != nil {
			return err
		}
		defer f.Close()
		return report.History(f, *user, month, days, loc)
	},
}

func init() {
	for _, c := range []*cobra.Command{scanCmd, dayCmd, weekCmd, historyCmd} {
		c.Flags().StringVarP(&userFlag, "user", "u", "", "act on another user (admin)")
	}
	historyCmd.Flags().StringVarP(&historyOut, "out", "o", "", "write an xlsx file instead of json")
}
