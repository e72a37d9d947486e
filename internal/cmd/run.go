package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/speedyrails/ecs-oneoff/internal/observability"
	"github.com/speedyrails/ecs-oneoff/pkg/awsclient"
	"github.com/speedyrails/ecs-oneoff/pkg/preflight"
	"github.com/speedyrails/ecs-oneoff/pkg/runner"
	"github.com/speedyrails/ecs-oneoff/pkg/taskdef"
	"github.com/speedyrails/ecs-oneoff/pkg/tasklogs"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Derive a one-off task from a reference task and run it",
	Long: `Derive a one-off task definition from an existing task definition and
run it once.

The reference task contributes its secrets, environment files, inline
environment variables and execution role; the flags contribute the image,
entry point and command. On conflict the flag wins, so a new image
version can run without modifying the reference definition.

Example:
  ecs-oneoff run --task-name db-migrations --from-task web --cluster prod \
    --image myapp:v42 --entrypoint 'sh -c' --command 'bundle exec rake db:migrate'

  ecs-oneoff run --task-name db-migrations --from-task web --cluster prod \
    --image myapp:v42 --command 'bundle exec rake db:migrate' \
    --launch-type FARGATE --subnets subnet-1,subnet-2 --security-groups sg-1`,
	RunE: runRun,
}

var (
	runTaskName       string
	runFromTask       string
	runCluster        string
	runImage          string
	runEntrypoint     string
	runCommand        []string
	runLaunchType     string
	runSubnets        []string
	runSecurityGroups []string
	runPreflightMode  string
	runShowLogs       bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runTaskName, "task-name", "", "Name for the one-off task (required)")
	runCmd.Flags().StringVar(&runFromTask, "from-task", "", "Reference task definition to derive from (required)")
	runCmd.Flags().StringVar(&runCluster, "cluster", "", "ECS cluster to run on (required)")
	runCmd.Flags().StringVar(&runImage, "image", "", "Image URI for the one-off task (required)")
	runCmd.Flags().StringVar(&runEntrypoint, "entrypoint", "", "Entry point, whitespace-split into tokens, e.g. 'sh -c'")
	runCmd.Flags().StringArrayVar(&runCommand, "command", nil, "Command token, repeatable; a single occurrence is whitespace-split (required)")
	runCmd.Flags().StringVar(&runLaunchType, "launch-type", string(taskdef.LaunchTypeEC2), "Launch type: EC2 or FARGATE")
	runCmd.Flags().StringSliceVar(&runSubnets, "subnets", nil, "Subnet IDs for FARGATE (same VPC)")
	runCmd.Flags().StringSliceVar(&runSecurityGroups, "security-groups", nil, "Security group IDs for FARGATE (same VPC)")
	runCmd.Flags().StringVar(&runPreflightMode, "preflight", "", "Preflight checks before registering (plan-only|read-safe)")
	runCmd.Flags().BoolVar(&runShowLogs, "show-logs", true, "Print the container's captured log lines when it stops")

	_ = runCmd.MarkFlagRequired("task-name")
	_ = runCmd.MarkFlagRequired("from-task")
	_ = runCmd.MarkFlagRequired("cluster")
	_ = runCmd.MarkFlagRequired("image")
	_ = runCmd.MarkFlagRequired("command")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	launchType, err := parseLaunchType(runLaunchType)
	if err != nil {
		return exitError("Invalid --launch-type value", err)
	}
	if err := validateNetwork(launchType, runSubnets, runSecurityGroups); err != nil {
		return exitError("Incomplete network configuration", err)
	}
	var preflightMode preflight.Mode
	if runPreflightMode != "" {
		preflightMode, err = preflight.ParseMode(runPreflightMode)
		if err != nil {
			return exitError("Invalid --preflight value", err)
		}
	}

	awsCfg, err := awsclient.Load(ctx, sessionConfig())
	if err != nil {
		return exitError("Failed to load AWS configuration", err)
	}

	ecsClient := awsclient.NewFactory(awsclient.ECSClientBuilder).Get(awsCfg)
	logsClient := awsclient.NewFactory(awsclient.LogsClientBuilder).Get(awsCfg)

	run := runner.New(ecsClient,
		runner.WithLogger(observability.CLILogger),
		runner.WithPollInterval(viper.GetDuration("wait_poll_interval")),
		runner.WithMaxAttempts(viper.GetInt("wait_max_attempts")),
	)

	refDef, err := run.LookupReference(ctx, runFromTask)
	if err != nil {
		return exitError("Failed to describe the reference task definition", err)
	}
	ref := taskdef.ExtractReference(refDef)
	observability.CLILogger.Debug("extracted reference fields",
		zap.String("from_task", runFromTask),
		zap.String("execution_role", ref.ExecutionRoleARN),
		zap.Int("secrets", len(ref.Secrets)),
		zap.Int("environment_files", len(ref.EnvironmentFiles)),
		zap.Int("environment", len(ref.Environment)))

	req := taskdef.Build(taskdef.Overrides{
		TaskName:   runTaskName,
		Image:      runImage,
		EntryPoint: splitTokens(runEntrypoint),
		Command:    commandTokens(runCommand),
		LaunchType: launchType,
		LogRegion:  awsCfg.Region,
	}, &ref)

	// The preflight pass runs against the built request so the env files
	// it heads are the ones the task will actually read, reference-derived
	// ones included.
	if preflightMode != "" {
		s3Client := awsclient.NewFactory(awsclient.S3ClientBuilder).Get(awsCfg)
		if err := runPreflight(ctx, ecsClient, s3Client, preflight.Spec{
			Mode:        preflightMode,
			Cluster:     runCluster,
			EnvFileARNs: envFileARNs(req),
		}); err != nil {
			return exitError("Preflight failed", err)
		}
	}

	return executeOneOff(ctx, oneOffDeps{
		runner: run,
		logs:   tasklogs.New(logsClient),
		out:    cmd.OutOrStdout(),
	}, req, runner.StartOptions{
		Cluster:        runCluster,
		LaunchType:     launchType,
		Subnets:        runSubnets,
		SecurityGroups: runSecurityGroups,
	}, runShowLogs)
}

func parseLaunchType(s string) (taskdef.LaunchType, error) {
	switch taskdef.LaunchType(s) {
	case taskdef.LaunchTypeEC2, taskdef.LaunchTypeFargate:
		return taskdef.LaunchType(s), nil
	}
	return "", fmt.Errorf("launch type must be EC2 or FARGATE, got %q", s)
}

// validateNetwork enforces the FARGATE awsvpc requirement before any
// network call is made.
func validateNetwork(launchType taskdef.LaunchType, subnets, securityGroups []string) error {
	if launchType != taskdef.LaunchTypeFargate {
		return nil
	}
	if len(subnets) == 0 || len(securityGroups) == 0 {
		return fmt.Errorf("launch type FARGATE requires --subnets and --security-groups")
	}
	return nil
}

// commandTokens resolves the repeatable --command flag. Given once, the
// value is whitespace-split like a quoted shell string; given repeatedly,
// each occurrence is one literal token, so an argument with an embedded
// space stays intact.
func commandTokens(values []string) []string {
	if len(values) == 1 {
		return splitTokens(values[0])
	}
	var tokens []string
	for _, v := range values {
		if v != "" {
			tokens = append(tokens, v)
		}
	}
	return tokens
}

// splitTokens turns a quoted shell-ish string into ordered tokens:
// "sh -c" → ["sh", "-c"]. Empty input yields nil.
func splitTokens(s string) []string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil
	}
	return fields
}
