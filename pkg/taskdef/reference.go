package taskdef

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs/types"
)

// Reference holds the fields copied forward from an existing task
// definition: the execution role plus the first container's secrets,
// environment files and inline environment. Only the first container is
// consulted; one-off tasks are single-container by construction.
type Reference struct {
	ExecutionRoleARN string
	Secrets          []Secret
	EnvironmentFiles []EnvironmentFile
	Environment      []KeyValue
}

// ExtractReference pulls the copy-forward fields out of a described task
// definition. Returns an empty Reference when the definition has no
// containers.
func ExtractReference(td *types.TaskDefinition) Reference {
	var ref Reference
	if td == nil {
		return ref
	}

	ref.ExecutionRoleARN = aws.ToString(td.ExecutionRoleArn)

	if len(td.ContainerDefinitions) == 0 {
		return ref
	}
	container := td.ContainerDefinitions[0]

	for _, s := range container.Secrets {
		ref.Secrets = append(ref.Secrets, Secret{
			Name:      aws.ToString(s.Name),
			ValueFrom: aws.ToString(s.ValueFrom),
		})
	}
	for _, f := range container.EnvironmentFiles {
		ref.EnvironmentFiles = append(ref.EnvironmentFiles, EnvironmentFile{
			Value: aws.ToString(f.Value),
			Type:  string(f.Type),
		})
	}
	for _, kv := range container.Environment {
		ref.Environment = append(ref.Environment, KeyValue{
			Name:  aws.ToString(kv.Name),
			Value: aws.ToString(kv.Value),
		})
	}

	return ref
}
