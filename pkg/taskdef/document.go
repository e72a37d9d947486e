package taskdef

import (
	"encoding/json"
	"os"
)

// Wire-shaped mirror of Request used for the local JSON document the
// basic command writes before submission. Field names match the ECS
// register-task-definition API.
type documentJSON struct {
	ExecutionRoleArn        string          `json:"executionRoleArn,omitempty"`
	Family                  string          `json:"family"`
	ContainerDefinitions    []containerJSON `json:"containerDefinitions"`
	NetworkMode             string          `json:"networkMode,omitempty"`
	RequiresCompatibilities []string        `json:"requiresCompatibilities,omitempty"`
	CPU                     string          `json:"cpu,omitempty"`
	Memory                  string          `json:"memory,omitempty"`
}

type containerJSON struct {
	Name              string            `json:"name"`
	Image             string            `json:"image"`
	EntryPoint        []string          `json:"entryPoint"`
	Command           []string          `json:"command"`
	CPU               int32             `json:"cpu"`
	Memory            int32             `json:"memory"`
	MemoryReservation int32             `json:"memoryReservation"`
	EnvironmentFiles  []EnvironmentFile `json:"environmentFiles"`
	Secrets           []Secret          `json:"secrets"`
	Environment       []KeyValue        `json:"environment"`
	LogConfiguration  *logConfigJSON    `json:"logConfiguration,omitempty"`
}

type logConfigJSON struct {
	LogDriver string            `json:"logDriver"`
	Options   map[string]string `json:"options"`
}

func (r Request) document() documentJSON {
	container := containerJSON{
		Name:              r.Container.Name,
		Image:             r.Container.Image,
		EntryPoint:        emptyIfNil(r.Container.EntryPoint),
		Command:           emptyIfNil(r.Container.Command),
		CPU:               r.Container.CPU,
		Memory:            r.Container.Memory,
		MemoryReservation: r.Container.MemoryReservation,
		EnvironmentFiles:  r.Container.EnvironmentFiles,
		Secrets:           r.Container.Secrets,
		Environment:       r.Container.Environment,
	}
	if container.EnvironmentFiles == nil {
		container.EnvironmentFiles = []EnvironmentFile{}
	}
	if container.Secrets == nil {
		container.Secrets = []Secret{}
	}
	if container.Environment == nil {
		container.Environment = []KeyValue{}
	}
	if lc := r.Container.Logging; lc != nil {
		container.LogConfiguration = &logConfigJSON{
			LogDriver: LogDriver,
			Options: map[string]string{
				"awslogs-group":         lc.Group,
				"awslogs-region":        lc.Region,
				"awslogs-stream-prefix": lc.StreamPrefix,
			},
		}
	}

	doc := documentJSON{
		ExecutionRoleArn:     r.ExecutionRoleARN,
		Family:               r.Family,
		ContainerDefinitions: []containerJSON{container},
	}
	if r.LaunchType == LaunchTypeFargate {
		doc.NetworkMode = "awsvpc"
		doc.RequiresCompatibilities = []string{string(LaunchTypeFargate)}
		doc.CPU = FargateTaskCPU
		doc.Memory = FargateTaskMemory
	}
	return doc
}

// MarshalDocument serializes the request as the registration document.
func (r Request) MarshalDocument() ([]byte, error) {
	return json.MarshalIndent(r.document(), "", "    ")
}

// WriteFile writes the registration document to path. The file is a
// transient artifact kept for inspection; registration submits the typed
// request, not this file.
func (r Request) WriteFile(path string) error {
	data, err := r.MarshalDocument()
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
