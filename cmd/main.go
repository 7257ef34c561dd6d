package main

import (
	"context"
	"fmt"
	"os"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/J-Leg/cloudcheckin"
	"github.com/J-Leg/cloudcheckin/config"
)

var (
	localFlag    bool
	accountsFlag string
	portFlag     string
)

// RootCmd - cloudcheckin
var RootCmd = &cobra.Command{
	Use:           "cloudcheckin",
	Short:         "Daily check-in for Cloud189 accounts",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the check-in once and push the transcript",
	RunE:  runCmdF,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the check-in HTTP function locally",
	RunE:  serveCmdF,
}

type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("check-in finished with exit code %d", e.code)
}

func init() {
	runCmd.Flags().BoolVar(&localFlag, "local", false, "show progress bars")
	runCmd.Flags().StringVar(&accountsFlag, "accounts", "", "accounts YAML file, overrides ACCOUNTS/ACCOUNTS_FILE")
	serveCmd.Flags().StringVar(&portFlag, "port", "", "listen port, overrides PORT")

	RootCmd.AddCommand(runCmd, serveCmd)
}

func runCmdF(command *cobra.Command, args []string) error {
	cfg, err := config.InitConfig(context.Background())
	if err != nil {
		return err
	}
	defer cfg.Close()

	if accountsFlag != "" {
		if cfg.Accounts, err = config.LoadAccounts(accountsFlag); err != nil {
			return err
		}
	}
	if localFlag {
		cfg.LocalEnabled = true
	}

	report := cloudcheckin.ExecuteCheckIn(cfg)
	if code := report.ExitCode(); code != 0 {
		return exitError{code: code}
	}
	return nil
}

func serveCmdF(command *cobra.Command, args []string) error {
	cfg, err := config.InitConfig(context.Background())
	if err != nil {
		return err
	}
	port := cfg.Port
	if portFlag != "" {
		port = portFlag
	}
	cfg.Close()

	funcframework.RegisterHTTPFunction("/checkin", cloudcheckin.ProcessCheckIn)
	if err := funcframework.Start(port); err != nil {
		return errors.Wrap(err, "funcframework.Start")
	}
	return nil
}

func main() {
	if err := RootCmd.Execute(); err != nil {
		var exit exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
