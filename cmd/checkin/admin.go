package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/celerix-dev/celerix-checkin/internal/attendance"
	"github.com/celerix-dev/celerix-checkin/internal/engine"
	"github.com/celerix-dev/celerix-checkin/internal/report"
	"github.com/celerix-dev/celerix-checkin/internal/session"
	"github.com/celerix-dev/celerix-checkin/internal/vault"
	"github.com/celerix-dev/celerix-checkin/pkg/schema"
	"github.com/celerix-dev/celerix-checkin/pkg/sdk"
)

var (
	queryFlag  string
	statusFlag string

	userID       string
	userName     string
	userEmail    string
	userRole     string
	userInactive bool
	userPassword string

	exportOut string

	toDriver string
	toDSN    string
	toKey    string
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Attendance of all active users",
}

var adminRowsCmd = &cobra.Command{
	Use:   "rows [YYYY-MM-DD]",
	Short: "List the attendance of a day",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dateKey, err := dateArg(args)
		if err != nil {
			return err
		}
		var status schema.Status
		if statusFlag != "" {
			st, ok := attendance.ParseStatus(statusFlag)
			if !ok {
				return fmt.Errorf("unknown status %q", statusFlag)
			}
			status = st
		}
		rows, err := client.GetAdminRows(dateKey)
		if err != nil {
			return err
		}
		printJSON(attendance.FilterRows(rows, queryFlag, status))
		return nil
	},
}

var adminSummaryCmd = &cobra.Command{
	Use:   "summary [YYYY-MM-DD]",
	Short: "Count users per status",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dateKey, err := dateArg(args)
		if err != nil {
			return err
		}
		rows, err := client.GetAdminRows(dateKey)
		if err != nil {
			return err
		}
		printJSON(attendance.Summarize(rows))
		return nil
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage users",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		users, err := client.ListUsers()
		if err != nil {
			return err
		}
		users = attendance.FilterUsers(users, queryFlag)
		out := make([]schema.User, 0, len(users))
		for _, u := range users {
			out = append(out, u.Public())
		}
		printJSON(out)
		fmt.Printf("%d of %d active\n", attendance.ActiveCount(users), len(users))
		return nil
	},
}

var usersAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create or replace a user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		user := schema.User{
			ID:       userID,
			FullName: userName,
			Email:    userEmail,
			Role:     schema.Role(userRole),
			Active:   !userInactive,
		}
		if userPassword != "" {
			if local == nil {
				return errLocalOnly
			}
			hash, err := session.HashPassword(userPassword)
			if err != nil {
				return err
			}
			user.PasswordHash = hash
		}
		saved, err := client.UpsertUser(user)
		if err != nil {
			return err
		}
		printJSON(saved.Public())
		return nil
	},
}

var usersToggleCmd = &cobra.Command{
	Use:   "toggle <id>",
	Short: "Activate or deactivate a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := client.ToggleUser(args[0])
		if err != nil {
			return err
		}
		if u == nil {
			return fmt.Errorf("unknown user %q", args[0])
		}
		printJSON(u.Public())
		return nil
	},
}

var usersPasswdCmd = &cobra.Command{
	Use:   "passwd <id> <password>",
	Short: "Set the password of a user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if local == nil {
			return errLocalOnly
		}
		user, err := findUser(args[0])
		if err != nil {
			return err
		}
		hash, err := session.HashPassword(args[1])
		if err != nil {
			return err
		}
		user.PasswordHash = hash
		if _, err := client.UpsertUser(*user); err != nil {
			return err
		}
		fmt.Println("Password updated")
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [YYYY-MM-DD]",
	Short: "Write the attendance of a day as xlsx",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dateKey, err := dateArg(args)
		if err != nil {
			return err
		}
		loc, err := cfg.Location()
		if err != nil {
			return err
		}
		rows, err := client.GetAdminRows(dateKey)
		if err != nil {
			return err
		}

		out := exportOut
		if out == "" {
			out = "attendance-" + dateKey + ".xlsx"
		}
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := report.AdminDay(f, dateKey, rows, loc); err != nil {
			return err
		}
		fmt.Println("Wrote", out)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy users, attendance and session to another storage driver",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if local == nil {
			return errLocalOnly
		}
		if toDriver == cfg.StorageDriver && toDSN == cfg.StorageDSN {
			return errors.New("source and destination are the same")
		}
		key, err := vault.ParseKey(toKey)
		if err != nil {
			return err
		}
		dst, err := engine.Open(engine.Options{
			Driver:        toDriver,
			DSN:           toDSN,
			Key:           key,
			RedisPassword: cfg.RedisPassword,
			RedisDB:       cfg.RedisDB,
			S3: engine.S3Options{
				Endpoint:  cfg.S3Endpoint,
				Region:    cfg.S3Region,
				AccessKey: cfg.S3AccessKey,
				SecretKey: cfg.S3SecretKey,
			},
		}, log)
		if err != nil {
			return err
		}
		defer engine.Close(dst)

		n, err := engine.Migrate(local.Storage(), dst, sdk.KeyUsers, sdk.KeyAttendance, sdk.KeyAuth)
		if err != nil {
			return err
		}
		fmt.Printf("Copied %d keys to %s\n", n, toDriver)
		return nil
	},
}

// dateArg returns the first argument as a validated date key, defaulting to today.
func dateArg(args []string) (string, error) {
	loc, err := cfg.Location()
	if err != nil {
		return "", err
	}
	if len(args) == 0 {
		return attendance.ToDateKey(today(loc)), nil
	}
	if _, err := attendance.ParseDateKey(args[0], loc); err != nil {
		return "", sdk.ErrInvalidDate
	}
	return args[0], nil
}

func today(loc *time.Location) time.Time {
	return time.Now().In(loc)
}

func init() {
	adminRowsCmd.Flags().StringVarP(&queryFlag, "query", "q", "", "filter by name")
	adminRowsCmd.Flags().StringVarP(&statusFlag, "status", "s", "", "filter by status")
	adminCmd.AddCommand(adminRowsCmd, adminSummaryCmd)

	usersListCmd.Flags().StringVarP(&queryFlag, "query", "q", "", "filter by name or email")
	usersAddCmd.Flags().StringVar(&userID, "id", "", "id of the user to replace")
	usersAddCmd.Flags().StringVar(&userName, "name", "", "full name")
	usersAddCmd.Flags().StringVar(&userEmail, "email", "", "email")
	usersAddCmd.Flags().StringVar(&userRole, "role", string(schema.RoleEmployee), "employee or admin")
	usersAddCmd.Flags().BoolVar(&userInactive, "inactive", false, "create the user deactivated")
	usersAddCmd.Flags().StringVar(&userPassword, "password", "", "password")
	usersAddCmd.MarkFlagRequired("name")
	usersAddCmd.MarkFlagRequired("email")
	usersCmd.AddCommand(usersListCmd, usersAddCmd, usersToggleCmd, usersPasswdCmd)

	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file")

	migrateCmd.Flags().StringVar(&toDriver, "to-driver", "", "destination driver: memory, file, redis, postgres, mysql or s3")
	migrateCmd.Flags().StringVar(&toDSN, "to-dsn", "", "destination data dir, address, connection string or bucket")
	migrateCmd.Flags().StringVar(&toKey, "to-key", "", "hex key encrypting file snapshots at the destination")
	migrateCmd.MarkFlagRequired("to-driver")
}
