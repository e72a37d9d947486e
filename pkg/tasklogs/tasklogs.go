// Package tasklogs manages the CloudWatch log group of a one-off task
// and fetches the container's captured output after the run stops.
package tasklogs

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
)

// DefaultRetentionDays keeps one-off task output for a week. Valid values
// are the CloudWatch retention steps (1, 3, 5, 7, 14, 30, ...).
const DefaultRetentionDays = 7

// API is the subset of the CloudWatch Logs API this package uses.
// *cloudwatchlogs.Client satisfies it; tests substitute a fake.
type API interface {
	CreateLogGroup(ctx context.Context, params *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
	PutRetentionPolicy(ctx context.Context, params *cloudwatchlogs.PutRetentionPolicyInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error)
	GetLogEvents(ctx context.Context, params *cloudwatchlogs.GetLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.GetLogEventsOutput, error)
}

var _ API = (*cloudwatchlogs.Client)(nil)

// Client wraps the CloudWatch Logs API for one-off task groups.
type Client struct {
	api API
}

// New builds a Client over the given Logs API.
func New(api API) *Client {
	return &Client{api: api}
}

// EnsureGroup creates the log group with the given retention if it does
// not exist yet. An already existing group is left untouched, retention
// included.
func (c *Client) EnsureGroup(ctx context.Context, group string, retentionDays int32) error {
	_, err := c.api.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(group),
	})
	if err != nil {
		var exists *types.ResourceAlreadyExistsException
		if errors.As(err, &exists) {
			return nil
		}
		return err
	}

	_, err = c.api.PutRetentionPolicy(ctx, &cloudwatchlogs.PutRetentionPolicyInput{
		LogGroupName:    aws.String(group),
		RetentionInDays: aws.Int32(retentionDays),
	})
	return err
}

// StreamName derives the awslogs stream name for a task's container:
// <stream-prefix>/<container-name>/<task-id>, where the task id is the
// last segment of the task ARN.
func StreamName(streamPrefix, containerName, taskARN string) string {
	return streamPrefix + "/" + containerName + "/" + TaskID(taskARN)
}

// TaskID extracts the opaque task id from a task ARN
// (arn:aws:ecs:region:account:task/cluster/id → id).
func TaskID(taskARN string) string {
	idx := strings.LastIndex(taskARN, "/")
	if idx < 0 {
		return taskARN
	}
	return taskARN[idx+1:]
}

// Fetch returns the captured log lines of the given stream, newest page
// from the tail. A missing stream yields no lines and no error: a
// container that never started has no stream to read.
func (c *Client) Fetch(ctx context.Context, group, stream string) ([]string, error) {
	out, err := c.api.GetLogEvents(ctx, &cloudwatchlogs.GetLogEventsInput{
		LogGroupName:  aws.String(group),
		LogStreamName: aws.String(stream),
		StartFromHead: aws.Bool(false),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, err
	}

	lines := make([]string, 0, len(out.Events))
	for _, event := range out.Events {
		lines = append(lines, aws.ToString(event.Message))
	}
	return lines, nil
}
