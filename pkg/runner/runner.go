// Package runner registers a one-off task definition, starts a single
// run and observes it until a terminal state. The runner is a client
// state observer: the {submitted → running → stopped} lifecycle is owned
// by ECS, and no failure path here retries or cancels anything remote.
package runner

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/speedyrails/ecs-oneoff/pkg/taskdef"
)

// Poll parameters of the wait loop. These are the ECS tasks_stopped
// waiter defaults: a pure attempt-count budget, not a wall-clock
// deadline.
const (
	DefaultPollInterval = 6 * time.Second
	DefaultMaxAttempts  = 100
)

// StatusStopped is the terminal last-status reported by ECS.
const StatusStopped = "STOPPED"

// API is the subset of the ECS control plane the runner uses. *ecs.Client
// satisfies it; tests substitute a fake.
type API interface {
	RegisterTaskDefinition(ctx context.Context, params *ecs.RegisterTaskDefinitionInput, optFns ...func(*ecs.Options)) (*ecs.RegisterTaskDefinitionOutput, error)
	DescribeTaskDefinition(ctx context.Context, params *ecs.DescribeTaskDefinitionInput, optFns ...func(*ecs.Options)) (*ecs.DescribeTaskDefinitionOutput, error)
	RunTask(ctx context.Context, params *ecs.RunTaskInput, optFns ...func(*ecs.Options)) (*ecs.RunTaskOutput, error)
	DescribeTasks(ctx context.Context, params *ecs.DescribeTasksInput, optFns ...func(*ecs.Options)) (*ecs.DescribeTasksOutput, error)
}

var _ API = (*ecs.Client)(nil)

// RunHandle identifies a started run until its terminal state is
// observed.
type RunHandle struct {
	Cluster string
	TaskARN string
}

// StartOptions parameterize the single run.
type StartOptions struct {
	Cluster        string
	DefinitionARN  string
	LaunchType     taskdef.LaunchType
	Subnets        []string
	SecurityGroups []string
}

// Runner drives the register → run → wait sequence.
type Runner struct {
	client       API
	logger       *zap.Logger
	pollInterval time.Duration
	maxAttempts  int
	sleep        func(context.Context, time.Duration) error
	startedBy    string
}

// Option customizes a Runner.
type Option func(*Runner)

// WithPollInterval overrides the wait-loop sleep between status checks.
func WithPollInterval(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

// WithMaxAttempts overrides the wait-loop attempt budget.
func WithMaxAttempts(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithLogger attaches a logger for poll diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithSleep replaces the wait-loop sleep. Tests use this to count
// attempts without real time passing.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(r *Runner) { r.sleep = sleep }
}

// New builds a Runner over the given ECS API.
func New(client API, opts ...Option) *Runner {
	r := &Runner{
		client:       client,
		logger:       zap.NewNop(),
		pollInterval: DefaultPollInterval,
		maxAttempts:  DefaultMaxAttempts,
		sleep:        sleepContext,
		startedBy:    "ecs-oneoff/" + uuid.New().String(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StartedBy returns the client-generated token tagging runs started by
// this Runner.
func (r *Runner) StartedBy() string { return r.startedBy }

// LookupReference fetches the latest active revision of the reference
// task definition.
func (r *Runner) LookupReference(ctx context.Context, name string) (*types.TaskDefinition, error) {
	out, err := r.client.DescribeTaskDefinition(ctx, &ecs.DescribeTaskDefinitionInput{
		TaskDefinition: aws.String(name),
	})
	if err != nil {
		return nil, &ReferenceError{TaskDefinition: name, Err: classify(err)}
	}
	return out.TaskDefinition, nil
}

// Register submits the document and returns the new revision's ARN and
// number. Remote rejection is terminal; no retry.
func (r *Runner) Register(ctx context.Context, req taskdef.Request) (string, int32, error) {
	out, err := r.client.RegisterTaskDefinition(ctx, req.Input())
	if err != nil {
		return "", 0, &RegistrationError{Family: req.Family, Err: classify(err)}
	}

	arn := aws.ToString(out.TaskDefinition.TaskDefinitionArn)
	revision := out.TaskDefinition.Revision
	r.logger.Debug("registered task definition",
		zap.String("arn", arn),
		zap.Int32("revision", revision))
	return arn, revision, nil
}

// StartRun starts exactly one run of the registered revision. One-shot:
// idempotent re-invocation is the caller's responsibility.
func (r *Runner) StartRun(ctx context.Context, opts StartOptions) (RunHandle, error) {
	input := &ecs.RunTaskInput{
		Cluster:        aws.String(opts.Cluster),
		TaskDefinition: aws.String(opts.DefinitionARN),
		StartedBy:      aws.String(r.startedBy),
	}
	if opts.LaunchType == taskdef.LaunchTypeFargate {
		input.LaunchType = types.LaunchTypeFargate
		input.NetworkConfiguration = &types.NetworkConfiguration{
			AwsvpcConfiguration: &types.AwsVpcConfiguration{
				Subnets:        opts.Subnets,
				SecurityGroups: opts.SecurityGroups,
				AssignPublicIp: types.AssignPublicIpDisabled,
			},
		}
	}

	out, err := r.client.RunTask(ctx, input)
	if err != nil {
		return RunHandle{}, &RunStartError{Cluster: opts.Cluster, Err: classify(err)}
	}
	if len(out.Tasks) == 0 {
		return RunHandle{}, &RunStartError{Cluster: opts.Cluster, Err: failureError(out.Failures)}
	}

	handle := RunHandle{
		Cluster: opts.Cluster,
		TaskARN: aws.ToString(out.Tasks[0].TaskArn),
	}
	r.logger.Debug("started task",
		zap.String("cluster", handle.Cluster),
		zap.String("task_arn", handle.TaskARN))
	return handle, nil
}

// AwaitTerminal blocks until the run stops, checking status once per poll
// interval up to the attempt budget. Exhausting the budget is fatal; the
// remote run is left running.
func (r *Runner) AwaitTerminal(ctx context.Context, handle RunHandle) (*RunResult, error) {
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		out, err := r.client.DescribeTasks(ctx, &ecs.DescribeTasksInput{
			Cluster: aws.String(handle.Cluster),
			Tasks:   []string{handle.TaskARN},
		})
		if err != nil {
			return nil, &WaitError{Handle: handle, Err: classify(err)}
		}
		if len(out.Tasks) == 0 {
			return nil, &WaitError{Handle: handle, Err: failureError(out.Failures)}
		}

		task := out.Tasks[0]
		status := aws.ToString(task.LastStatus)
		r.logger.Debug("polled task status",
			zap.String("task_arn", handle.TaskARN),
			zap.String("status", status),
			zap.Int("attempt", attempt))

		if status == StatusStopped {
			return newRunResult(task), nil
		}

		if attempt < r.maxAttempts {
			if err := r.sleep(ctx, r.pollInterval); err != nil {
				return nil, err
			}
		}
	}
	return nil, &WaitTimeoutError{Handle: handle, Attempts: r.maxAttempts}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func failureError(failures []types.Failure) error {
	if len(failures) == 0 {
		return ErrNotFound
	}
	f := failures[0]
	return &taskFailure{
		arn:    aws.ToString(f.Arn),
		reason: aws.ToString(f.Reason),
		detail: aws.ToString(f.Detail),
	}
}

// taskFailure carries an ECS failure entry (RunTask and DescribeTasks
// report per-task failures in the response body, not as API errors).
type taskFailure struct {
	arn    string
	reason string
	detail string
}

func (f *taskFailure) Error() string {
	msg := f.reason
	if f.detail != "" {
		msg += ": " + f.detail
	}
	if f.arn != "" {
		msg += " (" + f.arn + ")"
	}
	return msg
}
