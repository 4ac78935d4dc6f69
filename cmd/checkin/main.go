package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/celerix-dev/celerix-checkin/internal/config"
	"github.com/celerix-dev/celerix-checkin/internal/engine"
	"github.com/celerix-dev/celerix-checkin/internal/logger"
	"github.com/celerix-dev/celerix-checkin/internal/service"
	"github.com/celerix-dev/celerix-checkin/pkg/schema"
	"github.com/celerix-dev/celerix-checkin/pkg/sdk"
)

var (
	cfg     *config.Config
	log     *zap.Logger
	client  sdk.CheckinAPI
	local   *service.Local
	cleanup []func()

	userFlag string
)

var errLocalOnly = errors.New("this command needs the mock api (CHECKIN_USE_MOCK_API=true)")

var rootCmd = &cobra.Command{
	Use:           "checkin",
	Short:         "Office attendance check-in",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		// Logs go to the configured file only; stdout belongs to command output.
		logCfg := cfg.Log
		logCfg.FileOnly = true
		if log, err = logger.New(logCfg); err != nil {
			return err
		}
		return open()
	},
}

func open() error {
	var session sdk.Storage
	if !cfg.UseMockAPI {
		s, err := sessionStorage()
		if err != nil {
			return err
		}
		session = s
	}

	api, err := sdk.New(sdk.Options{
		UseMock: cfg.UseMockAPI,
		BaseURL: cfg.APIBaseURL,
		Session: session,
	}, func() (sdk.CheckinAPI, error) {
		l, err := service.Open(cfg, log)
		if err != nil {
			return nil, err
		}
		local = l
		cleanup = append(cleanup, func() { l.Close() })
		return l, nil
	})
	if err != nil {
		return err
	}
	client = api
	return nil
}

// sessionStorage keeps the remote session in the user's config directory.
func sessionStorage() (sdk.Storage, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	s, err := engine.Open(engine.Options{
		Driver: engine.DriverFile,
		DSN:    filepath.Join(dir, "checkin"),
	}, log)
	if err != nil {
		return nil, err
	}
	cleanup = append(cleanup, func() { engine.Close(s) })
	return s, nil
}

func closeAll() {
	for i := len(cleanup) - 1; i >= 0; i-- {
		cleanup[i]()
	}
	cleanup = nil
	if log != nil {
		log.Sync()
	}
}

// currentUser returns --user when set, otherwise the user of the current session.
func currentUser() (string, error) {
	if userFlag != "" {
		return userFlag, nil
	}
	sess, err := client.GetSession()
	if err != nil {
		return "", err
	}
	if sess == nil {
		return "", errors.New("not logged in, run `checkin login` or `checkin demo` first")
	}
	return sess.User.ID, nil
}

func findUser(id string) (*schema.User, error) {
	users, err := client.ListUsers()
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].ID == id {
			return &users[i], nil
		}
	}
	return nil, fmt.Errorf("unknown user %q", id)
}

func printJSON(v any) {
	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(bytes))
}

func init() {
	rootCmd.AddCommand(loginCmd, demoCmd, logoutCmd, whoamiCmd)
	rootCmd.AddCommand(scanCmd, dayCmd, weekCmd, historyCmd)
	rootCmd.AddCommand(adminCmd, usersCmd, exportCmd, migrateCmd)
}

func main() {
	err := rootCmd.Execute()
	closeAll()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
