// Package cmd wires the ecs-oneoff command tree.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/speedyrails/ecs-oneoff/internal/observability"
	"github.com/speedyrails/ecs-oneoff/pkg/awsclient"
)

var rootCmd = &cobra.Command{
	Use:   "ecs-oneoff",
	Short: "Run one-off ECS tasks derived from existing task definitions",
	Long: `ecs-oneoff registers a one-off ECS task definition, runs it once on a
cluster, waits for the task to stop and exits with the container's
result: exit code 0 when the container finished with 0, exit code 1 on
any failure.

Typical use is a CI/CD step such as a database migration that should run
the image under test with the secrets and environment of an existing
service task.

Credentials resolve through the SDK default chain; a static key pair can
be supplied via ECS_ONEOFF_ACCESS_KEY_ID and ECS_ONEOFF_SECRET_ACCESS_KEY.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Invoked without a subcommand; the caller gets usage on stderr
		// and exit code 1 from main.
		if len(args) > 0 {
			return fmt.Errorf("unknown command %q", args[0])
		}
		return errors.New("a subcommand is required")
	},
}

// Global session flags, carried as explicit configuration into every AWS
// client; there is no ambient session state.
var (
	flagProfile string
	flagRegion  string
	flagVerbose bool
)

var versionInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// SetVersionInfo records build metadata shown by --version.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&flagProfile, "profile", "p", "", "AWS profile to use")
	rootCmd.PersistentFlags().StringVarP(&flagRegion, "region", "r", "", "AWS region to use")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")

	setDefaults()
}

func initConfig() {
	viper.SetEnvPrefix("ECS_ONEOFF")
	viper.AutomaticEnv()

	if flagVerbose {
		observability.SetVerbose()
	}
}

// setDefaults seeds viper with the tool's tunables. Each can be
// overridden via ECS_ONEOFF_* environment variables.
func setDefaults() {
	viper.SetDefault("wait_poll_interval", "6s")
	viper.SetDefault("wait_max_attempts", 100)
	viper.SetDefault("logs_retention_days", 7)
}

// Execute runs the command tree. A non-nil return means the process must
// exit 1; that single failure code is the tool's contract.
func Execute() error {
	cmd, err := rootCmd.ExecuteContextC(context.Background())
	printUsageOnArgError(cmd, err)
	return err
}

// printUsageOnArgError prints the failing command's usage to stderr for
// errors raised before a handler ran: a bare invocation, an unknown
// command, a bad flag, a missing required flag. Handler failures carry
// *ExitError and have already been logged with context.
func printUsageOnArgError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return
	}
	cmd.PrintErrln(cmd.UsageString())
}

// sessionConfig assembles the AWS session settings from the global flags
// and the ECS_ONEOFF_ACCESS_KEY_ID / ECS_ONEOFF_SECRET_ACCESS_KEY
// environment variables.
func sessionConfig() awsclient.Config {
	return awsclient.Config{
		Profile:         flagProfile,
		Region:          flagRegion,
		AccessKeyID:     viper.GetString("access_key_id"),
		SecretAccessKey: viper.GetString("secret_access_key"),
	}
}

// ExitError marks a failure already logged with context; main prints the
// message and exits 1.
type ExitError struct {
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func exitError(message string, err error) error {
	observability.CLILogger.Error(message, zap.Error(err))
	return &ExitError{Message: message, Err: err}
}
