package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/speedyrails/ecs-oneoff/internal/observability"
	"github.com/speedyrails/ecs-oneoff/pkg/preflight"
	"github.com/speedyrails/ecs-oneoff/pkg/runner"
	"github.com/speedyrails/ecs-oneoff/pkg/taskdef"
	"github.com/speedyrails/ecs-oneoff/pkg/tasklogs"
)

// envFileARNs lists the S3 environment files the built task will read,
// feeding the read-safe preflight head checks.
func envFileARNs(req taskdef.Request) []string {
	var arns []string
	for _, f := range req.Container.EnvironmentFiles {
		if f.Type == "s3" {
			arns = append(arns, f.Value)
		}
	}
	return arns
}

// runPreflight executes a preflight pass and debug-logs every check that
// ran, including the one that failed.
func runPreflight(ctx context.Context, ecsAPI preflight.ECSAPI, s3API preflight.S3API, spec preflight.Spec) error {
	res, err := preflight.Run(ctx, ecsAPI, s3API, spec)
	for _, check := range res.Checks {
		observability.CLILogger.Debug("preflight check",
			zap.String("capability", check.Capability),
			zap.Bool("allowed", check.Allowed),
			zap.String("detail", check.Detail))
	}
	return err
}

// oneOffDeps are the collaborators of one register→run→wait→report
// sequence.
type oneOffDeps struct {
	runner *runner.Runner
	logs   *tasklogs.Client
	out    io.Writer
}

// executeOneOff drives the full sequence for an already built document.
// Returns nil only when the container finished with exit code 0; every
// other outcome maps to process exit 1.
func executeOneOff(ctx context.Context, deps oneOffDeps, req taskdef.Request, start runner.StartOptions, showLogs bool) error {
	arn, revision, err := deps.runner.Register(ctx, req)
	if err != nil {
		return exitError("Failed to register the task definition", err)
	}
	fmt.Fprintf(deps.out, "==> Created the task definition: %s (revision %d)\n", arn, revision)

	group := req.Container.Logging.Group
	if err := deps.logs.EnsureGroup(ctx, group, viper.GetInt32("logs_retention_days")); err != nil {
		return exitError("Failed to create the CloudWatch log group", err)
	}
	fmt.Fprintf(deps.out, "\nUsing the '%s' CloudWatch Log Group to store the containers logs\n", group)

	start.DefinitionARN = arn
	handle, err := deps.runner.StartRun(ctx, start)
	if err != nil {
		return exitError("Failed to start the one-off task", err)
	}
	fmt.Fprintf(deps.out, "\n==> Executed task ARN: %s\n", handle.TaskARN)
	fmt.Fprintln(deps.out, "\nWaiting for the task to finish...")

	result, err := deps.runner.AwaitTerminal(ctx, handle)
	if err != nil {
		return exitError("Gave up waiting for the one-off task", err)
	}

	if runner.ExitCode(result) == 0 {
		fmt.Fprintln(deps.out, "\n==> The one-off task has finished correctly")
		printContainerOutput(ctx, deps, req, handle, showLogs)
		return nil
	}

	fmt.Fprintln(deps.out, "\n==> The one-off task has failed")
	if result.ExitCode != nil {
		fmt.Fprintf(deps.out, "Container exit code: %d\n", *result.ExitCode)
	} else {
		fmt.Fprintln(deps.out, "Container exit code: none (container never started)")
	}
	if result.ExitReason != "" {
		fmt.Fprintf(deps.out, "Container exit reason: %s\n", result.ExitReason)
	}
	if result.StoppedReason != "" {
		fmt.Fprintf(deps.out, "Stopped reason: %s\n", result.StoppedReason)
	}
	fmt.Fprintln(deps.out, result.Payload())
	printContainerOutput(ctx, deps, req, handle, showLogs)

	return exitError("One-off task failed", fmt.Errorf("container did not exit 0"))
}

// printContainerOutput echoes the captured CloudWatch lines of the task's
// container. Best effort: a fetch failure is logged, not fatal, since the
// run verdict is already known.
func printContainerOutput(ctx context.Context, deps oneOffDeps, req taskdef.Request, handle runner.RunHandle, showLogs bool) {
	if !showLogs {
		return
	}

	logging := req.Container.Logging
	stream := tasklogs.StreamName(logging.StreamPrefix, req.Container.Name, handle.TaskARN)
	lines, err := deps.logs.Fetch(ctx, logging.Group, stream)
	if err != nil {
		observability.CLILogger.Warn("Failed to fetch container logs",
			zap.String("group", logging.Group),
			zap.String("stream", stream),
			zap.Error(err))
		return
	}

	if len(lines) == 0 {
		fmt.Fprintln(deps.out, "Container output: None")
		return
	}
	fmt.Fprintln(deps.out, "Container output:")
	for _, line := range lines {
		fmt.Fprintln(deps.out, line)
	}
}
