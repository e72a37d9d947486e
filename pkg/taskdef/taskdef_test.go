package taskdef

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	t.Run("db migrations scenario", func(t *testing.T) {
		req := Build(Overrides{
			TaskName:         "db-migrations",
			ExecutionRoleARN: "arn:aws:iam::123:role/ecsTaskExecutionRole",
			Image:            "myapp:latest",
			EntryPoint:       []string{"sh", "-c"},
			Command:          []string{"bundle", "exec", "rake", "db:migrate"},
			EnvironmentFiles: []EnvironmentFile{
				{Value: "arn:aws:s3:::bucket/vars.env", Type: "s3"},
			},
		}, nil)

		assert.Equal(t, "db-migrations", req.Family)
		assert.Equal(t, "db-migrations", req.Container.Name)
		assert.Equal(t, "myapp:latest", req.Container.Image)
		assert.Equal(t, []string{"sh", "-c"}, req.Container.EntryPoint)
		assert.Equal(t, []string{"bundle", "exec", "rake", "db:migrate"}, req.Container.Command)
		require.Len(t, req.Container.EnvironmentFiles, 1)
		assert.Equal(t, "s3", req.Container.EnvironmentFiles[0].Type)
		assert.Equal(t, LaunchTypeEC2, req.LaunchType)
	})

	t.Run("container sizing defaults", func(t *testing.T) {
		req := Build(Overrides{TaskName: "t", Image: "i"}, nil)

		assert.Equal(t, int32(ContainerCPU), req.Container.CPU)
		assert.Equal(t, int32(ContainerMemory), req.Container.Memory)
		assert.Equal(t, int32(ContainerMemoryReservation), req.Container.MemoryReservation)
	})

	t.Run("log config derived from task name", func(t *testing.T) {
		req := Build(Overrides{TaskName: "nightly-report", Image: "i", LogRegion: "us-east-2"}, nil)

		require.NotNil(t, req.Container.Logging)
		assert.Equal(t, "/ecs/nightly-report", req.Container.Logging.Group)
		assert.Equal(t, "us-east-2", req.Container.Logging.Region)
		assert.Equal(t, "ecs", req.Container.Logging.StreamPrefix)
	})

	t.Run("reference fills execution role when override empty", func(t *testing.T) {
		ref := Reference{ExecutionRoleARN: "arn:aws:iam::123:role/fromRef"}
		req := Build(Overrides{TaskName: "t", Image: "i"}, &ref)

		assert.Equal(t, "arn:aws:iam::123:role/fromRef", req.ExecutionRoleARN)
	})

	t.Run("override wins over reference execution role", func(t *testing.T) {
		ref := Reference{ExecutionRoleARN: "arn:aws:iam::123:role/fromRef"}
		req := Build(Overrides{
			TaskName:         "t",
			Image:            "i",
			ExecutionRoleARN: "arn:aws:iam::123:role/explicit",
		}, &ref)

		assert.Equal(t, "arn:aws:iam::123:role/explicit", req.ExecutionRoleARN)
	})

	t.Run("reference secrets and environment copy forward", func(t *testing.T) {
		ref := Reference{
			Secrets:          []Secret{{Name: "DB_PASSWORD", ValueFrom: "arn:aws:ssm:::parameter/db"}},
			Environment:      []KeyValue{{Name: "RAILS_ENV", Value: "production"}},
			EnvironmentFiles: []EnvironmentFile{{Value: "arn:aws:s3:::bucket/app.env", Type: "s3"}},
		}
		req := Build(Overrides{TaskName: "t", Image: "i"}, &ref)

		assert.Equal(t, ref.Secrets, req.Container.Secrets)
		assert.Equal(t, ref.Environment, req.Container.Environment)
		assert.Equal(t, ref.EnvironmentFiles, req.Container.EnvironmentFiles)
	})

	t.Run("explicit environment files win over reference", func(t *testing.T) {
		ref := Reference{
			EnvironmentFiles: []EnvironmentFile{{Value: "arn:aws:s3:::bucket/ref.env", Type: "s3"}},
		}
		req := Build(Overrides{
			TaskName: "t",
			Image:    "i",
			EnvironmentFiles: []EnvironmentFile{
				{Value: "arn:aws:s3:::bucket/explicit.env", Type: "s3"},
			},
		}, &ref)

		require.Len(t, req.Container.EnvironmentFiles, 1)
		assert.Equal(t, "arn:aws:s3:::bucket/explicit.env", req.Container.EnvironmentFiles[0].Value)
	})
}

func TestRequestInput(t *testing.T) {
	base := Overrides{
		TaskName:         "db-migrations",
		ExecutionRoleARN: "arn:aws:iam::123:role/ecsTaskExecutionRole",
		Image:            "myapp:latest",
		EntryPoint:       []string{"sh", "-c"},
		Command:          []string{"bundle", "exec", "rake", "db:migrate"},
		LogRegion:        "us-east-1",
	}

	t.Run("EC2 wire shape", func(t *testing.T) {
		input := Build(base, nil).Input()

		assert.Equal(t, "db-migrations", aws.ToString(input.Family))
		assert.Equal(t, "arn:aws:iam::123:role/ecsTaskExecutionRole", aws.ToString(input.ExecutionRoleArn))
		require.Len(t, input.ContainerDefinitions, 1)

		container := input.ContainerDefinitions[0]
		assert.Equal(t, "myapp:latest", aws.ToString(container.Image))
		assert.Equal(t, []string{"sh", "-c"}, container.EntryPoint)
		assert.Equal(t, int32(128), container.Cpu)
		assert.Equal(t, int32(400), aws.ToInt32(container.Memory))
		assert.Equal(t, int32(300), aws.ToInt32(container.MemoryReservation))
		require.NotNil(t, container.LogConfiguration)
		assert.Equal(t, ecstypes.LogDriver("awslogs"), container.LogConfiguration.LogDriver)
		assert.Equal(t, "/ecs/db-migrations", container.LogConfiguration.Options["awslogs-group"])
		assert.Equal(t, "ecs", container.LogConfiguration.Options["awslogs-stream-prefix"])

		// EC2 carries no Fargate task-level settings
		assert.Empty(t, input.RequiresCompatibilities)
		assert.Nil(t, input.Cpu)
		assert.Nil(t, input.Memory)
	})

	t.Run("FARGATE wire shape", func(t *testing.T) {
		o := base
		o.LaunchType = LaunchTypeFargate
		input := Build(o, nil).Input()

		assert.Equal(t, ecstypes.NetworkModeAwsvpc, input.NetworkMode)
		assert.Equal(t, []ecstypes.Compatibility{ecstypes.CompatibilityFargate}, input.RequiresCompatibilities)
		assert.Equal(t, "256", aws.ToString(input.Cpu))
		assert.Equal(t, "512", aws.ToString(input.Memory))
	})

	t.Run("environment files and secrets convert", func(t *testing.T) {
		o := base
		o.EnvironmentFiles = []EnvironmentFile{{Value: "arn:aws:s3:::bucket/vars.env", Type: "s3"}}
		req := Build(o, &Reference{
			Secrets: []Secret{{Name: "TOKEN", ValueFrom: "arn:aws:ssm:::parameter/token"}},
		})
		input := req.Input()

		container := input.ContainerDefinitions[0]
		require.Len(t, container.EnvironmentFiles, 1)
		assert.Equal(t, ecstypes.EnvironmentFileTypeS3, container.EnvironmentFiles[0].Type)
		require.Len(t, container.Secrets, 1)
		assert.Equal(t, "TOKEN", aws.ToString(container.Secrets[0].Name))
	})
}

func TestMarshalDocument(t *testing.T) {
	req := Build(Overrides{
		TaskName:         "db-migrations",
		ExecutionRoleARN: "arn:aws:iam::123:role/ecsTaskExecutionRole",
		Image:            "myapp:latest",
		EntryPoint:       []string{"sh", "-c"},
		Command:          []string{"bundle", "exec", "rake", "db:migrate"},
		LogRegion:        "us-east-1",
	}, nil)

	data, err := req.MarshalDocument()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, "db-migrations", doc["family"])
	assert.Equal(t, "arn:aws:iam::123:role/ecsTaskExecutionRole", doc["executionRoleArn"])

	// The registration service assigns revision and stream identifiers;
	// the document never carries them.
	assert.NotContains(t, doc, "revision")
	assert.NotContains(t, doc, "taskDefinitionArn")

	containers, ok := doc["containerDefinitions"].([]any)
	require.True(t, ok)
	require.Len(t, containers, 1)
	container := containers[0].(map[string]any)
	assert.Equal(t, "myapp:latest", container["image"])
	options := container["logConfiguration"].(map[string]any)["options"].(map[string]any)
	assert.Equal(t, "/ecs/db-migrations", options["awslogs-group"])
}

func TestWriteFile(t *testing.T) {
	req := Build(Overrides{TaskName: "t", Image: "i"}, nil)
	path := t.TempDir() + "/t.taskdef.json"

	require.NoError(t, req.WriteFile(path))

	var doc map[string]any
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "t", doc["family"])
}
