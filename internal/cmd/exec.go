package cmd

import (
	"fmt"

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

var execCmd = &cobra.Command{
	Use:   "exec TASK_NAME EXEC_ROLE_ARN CLUSTER IMAGE ENV_FILE_ARN ENTRYPOINT COMMAND",
	Short: "Run a one-off task from seven positional arguments",
	Long: `Run a one-off task built entirely from seven strictly ordered positional
arguments, without a reference task. The task definition document is
written to a local JSON file before submission. Launch type is EC2.

Example:
  ecs-oneoff exec db-migrations arn:aws:iam::123:role/ecsTaskExecutionRole \
    myEcsCluster myapp:latest arn:aws:s3:::bucket/vars.env \
    'sh -c' 'bundle exec rake db:migrate'`,
	Args: cobra.ExactArgs(7),
	RunE: runExec,
}

var (
	execDefinitionFile string
	execPreflightMode  string
	execShowLogs       bool
)

func init() {
	rootCmd.AddCommand(execCmd)

	execCmd.Flags().StringVar(&execDefinitionFile, "definition-file", "", "Path for the task definition JSON document (default <task-name>.taskdef.json)")
	execCmd.Flags().StringVar(&execPreflightMode, "preflight", "", "Preflight checks before registering (plan-only|read-safe)")
	execCmd.Flags().BoolVar(&execShowLogs, "show-logs", true, "Print the container's captured log lines when it stops")
}

func runExec(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	basic := taskdef.ParseBasicArgs(args)
	if err := basic.Validate(); err != nil {
		_ = cmd.Usage()
		return exitError("Missing required argument", err)
	}
	var preflightMode preflight.Mode
	if execPreflightMode != "" {
		mode, err := preflight.ParseMode(execPreflightMode)
		if err != nil {
			return exitError("Invalid --preflight value", err)
		}
		preflightMode = mode
	}

	awsCfg, err := awsclient.Load(ctx, sessionConfig())
	if err != nil {
		return exitError("Failed to load AWS configuration", err)
	}

	req := taskdef.Build(taskdef.Overrides{
		TaskName:         basic.TaskName,
		ExecutionRoleARN: basic.ExecutionRoleARN,
		Image:            basic.Image,
		EntryPoint:       splitTokens(basic.EntryPoint),
		Command:          splitTokens(basic.Command),
		EnvironmentFiles: []taskdef.EnvironmentFile{
			{Value: basic.EnvFileARN, Type: "s3"},
		},
		LaunchType: taskdef.LaunchTypeEC2,
		LogRegion:  awsCfg.Region,
	}, nil)

	ecsClient := awsclient.NewFactory(awsclient.ECSClientBuilder).Get(awsCfg)
	logsClient := awsclient.NewFactory(awsclient.LogsClientBuilder).Get(awsCfg)

	if preflightMode != "" {
		s3Client := awsclient.NewFactory(awsclient.S3ClientBuilder).Get(awsCfg)
		if err := runPreflight(ctx, ecsClient, s3Client, preflight.Spec{
			Mode:        preflightMode,
			Cluster:     basic.Cluster,
			EnvFileARNs: envFileARNs(req),
		}); err != nil {
			return exitError("Preflight failed", err)
		}
	}

	// Transient artifact: the document is kept locally for inspection,
	// registration submits the typed request.
	path := execDefinitionFile
	if path == "" {
		path = basic.TaskName + ".taskdef.json"
	}
	if err := req.WriteFile(path); err != nil {
		return exitError("Failed to write the task definition document", err)
	}
	observability.CLILogger.Debug("wrote task definition document", zap.String("path", path))

	run := runner.New(ecsClient,
		runner.WithLogger(observability.CLILogger),
		runner.WithPollInterval(viper.GetDuration("wait_poll_interval")),
		runner.WithMaxAttempts(viper.GetInt("wait_max_attempts")),
	)

	fmt.Fprintf(cmd.OutOrStdout(), "==> Task definition document written to %s\n", path)

	return executeOneOff(ctx, oneOffDeps{
		runner: run,
		logs:   tasklogs.New(logsClient),
		out:    cmd.OutOrStdout(),
	}, req, runner.StartOptions{
		Cluster:    basic.Cluster,
		LaunchType: taskdef.LaunchTypeEC2,
	}, execShowLogs)
}
