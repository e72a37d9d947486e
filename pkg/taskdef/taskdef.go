// Package taskdef renders one-off task-definition documents.
//
// A Request is a typed construction of the document; it is converted to
// the ECS wire types only at the submission boundary (Input) or, for the
// basic command, serialized to a local JSON file (WriteFile). A Request
// never carries a revision or a log-stream identifier: ECS assigns both
// on registration.
package taskdef

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/ecs/types"
)

// LaunchType selects where the one-off task runs.
type LaunchType string

const (
	LaunchTypeEC2     LaunchType = "EC2"
	LaunchTypeFargate LaunchType = "FARGATE"
)

// Container sizing for one-off tasks. These match the values the tool has
// always registered: one-off tasks are short maintenance commands, not
// services, so the sizing is deliberately small and fixed.
const (
	ContainerCPU               = 128
	ContainerMemory            = 400
	ContainerMemoryReservation = 300

	// Fargate requires task-level sizing; smallest valid combination.
	FargateTaskCPU    = "256"
	FargateTaskMemory = "512"
)

// Log routing defaults; the group is derived from the task name.
const (
	LogDriver       = "awslogs"
	LogGroupPrefix  = "/ecs/"
	LogStreamPrefix = "ecs"
)

// Request is the task-definition document submitted for registration.
type Request struct {
	Family           string
	ExecutionRoleARN string
	LaunchType       LaunchType
	Container        ContainerSpec
}

// ContainerSpec describes the single container of a one-off task.
type ContainerSpec struct {
	Name              string
	Image             string
	EntryPoint        []string
	Command           []string
	CPU               int32
	Memory            int32
	MemoryReservation int32
	EnvironmentFiles  []EnvironmentFile
	Secrets           []Secret
	Environment       []KeyValue
	Logging           *LogConfig
}

// EnvironmentFile references an externally stored KEY=VALUE file.
type EnvironmentFile struct {
	Value string `json:"value"`
	Type  string `json:"type"`
}

// Secret references a value fetched by the execution role at start time.
type Secret struct {
	Name      string `json:"name"`
	ValueFrom string `json:"valueFrom"`
}

// KeyValue is an inline environment variable.
type KeyValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// LogConfig routes container output to a CloudWatch log group.
type LogConfig struct {
	Group        string
	Region       string
	StreamPrefix string
}

// Overrides are the caller-supplied fields of the document. On conflict
// with a reference-extracted field, the override wins.
type Overrides struct {
	TaskName         string
	ExecutionRoleARN string
	Image            string
	EntryPoint       []string
	Command          []string
	EnvironmentFiles []EnvironmentFile
	LaunchType       LaunchType
	LogRegion        string
}

// LogGroup returns the CloudWatch log group derived from a task name.
func LogGroup(taskName string) string {
	return LogGroupPrefix + taskName
}

// Build renders the document from overrides merged with an optional
// reference. Pure: no network effect.
func Build(o Overrides, ref *Reference) Request {
	launchType := o.LaunchType
	if launchType == "" {
		launchType = LaunchTypeEC2
	}

	req := Request{
		Family:           o.TaskName,
		ExecutionRoleARN: o.ExecutionRoleARN,
		LaunchType:       launchType,
		Container: ContainerSpec{
			Name:              o.TaskName,
			Image:             o.Image,
			EntryPoint:        o.EntryPoint,
			Command:           o.Command,
			CPU:               ContainerCPU,
			Memory:            ContainerMemory,
			MemoryReservation: ContainerMemoryReservation,
			EnvironmentFiles:  o.EnvironmentFiles,
			Logging: &LogConfig{
				Group:        LogGroup(o.TaskName),
				Region:       o.LogRegion,
				StreamPrefix: LogStreamPrefix,
			},
		},
	}

	if ref != nil {
		if req.ExecutionRoleARN == "" {
			req.ExecutionRoleARN = ref.ExecutionRoleARN
		}
		if len(req.Container.EnvironmentFiles) == 0 {
			req.Container.EnvironmentFiles = ref.EnvironmentFiles
		}
		req.Container.Secrets = ref.Secrets
		req.Container.Environment = ref.Environment
	}

	return req
}

// Input converts the document to the ECS wire type. Revision and
// task-definition ARN are never set; ECS assigns them on registration.
func (r Request) Input() *ecs.RegisterTaskDefinitionInput {
	container := types.ContainerDefinition{
		Name:              aws.String(r.Container.Name),
		Image:             aws.String(r.Container.Image),
		EntryPoint:        r.Container.EntryPoint,
		Command:           r.Container.Command,
		Cpu:               r.Container.CPU,
		Memory:            aws.Int32(r.Container.Memory),
		MemoryReservation: aws.Int32(r.Container.MemoryReservation),
	}

	for _, f := range r.Container.EnvironmentFiles {
		container.EnvironmentFiles = append(container.EnvironmentFiles, types.EnvironmentFile{
			Value: aws.String(f.Value),
			Type:  types.EnvironmentFileType(f.Type),
		})
	}
	for _, s := range r.Container.Secrets {
		container.Secrets = append(container.Secrets, types.Secret{
			Name:      aws.String(s.Name),
			ValueFrom: aws.String(s.ValueFrom),
		})
	}
	for _, kv := range r.Container.Environment {
		container.Environment = append(container.Environment, types.KeyValuePair{
			Name:  aws.String(kv.Name),
			Value: aws.String(kv.Value),
		})
	}
	if lc := r.Container.Logging; lc != nil {
		container.LogConfiguration = &types.LogConfiguration{
			LogDriver: types.LogDriver(LogDriver),
			Options: map[string]string{
				"awslogs-group":         lc.Group,
				"awslogs-region":        lc.Region,
				"awslogs-stream-prefix": lc.StreamPrefix,
			},
		}
	}

	input := &ecs.RegisterTaskDefinitionInput{
		Family:               aws.String(r.Family),
		ContainerDefinitions: []types.ContainerDefinition{container},
	}
	if r.ExecutionRoleARN != "" {
		input.ExecutionRoleArn = aws.String(r.ExecutionRoleARN)
	}

	if r.LaunchType == LaunchTypeFargate {
		input.NetworkMode = types.NetworkModeAwsvpc
		input.RequiresCompatibilities = []types.Compatibility{types.CompatibilityFargate}
		input.Cpu = aws.String(FargateTaskCPU)
		input.Memory = aws.String(FargateTaskMemory)
	}

	return input
}
