package runner

import (
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs/types"
)

// RunResult is the terminal snapshot of a run: read-only, derived from
// the stopped task ECS returned.
type RunResult struct {
	Status        string
	ExitCode      *int32
	ExitReason    string
	StoppedReason string

	// Task is the full stopped-task payload, kept for the failure echo.
	Task types.Task
}

func newRunResult(task types.Task) *RunResult {
	res := &RunResult{
		Status:        aws.ToString(task.LastStatus),
		StoppedReason: aws.ToString(task.StoppedReason),
		Task:          task,
	}
	// The primary container's exit code. Nil if it never started.
	if len(task.Containers) > 0 {
		res.ExitCode = task.Containers[0].ExitCode
		res.ExitReason = aws.ToString(task.Containers[0].Reason)
	}
	return res
}

// Success reports whether the container finished with exit code 0. A nil
// exit code (container never started) is a failure.
func (r *RunResult) Success() bool {
	return r.ExitCode != nil && *r.ExitCode == 0
}

// ExitCode maps a result to the process exit code. Pure: 0 on container
// exit code 0, 1 on everything else including an absent exit code. This
// is the tool's only business rule.
func ExitCode(r *RunResult) int {
	if r != nil && r.Success() {
		return 0
	}
	return 1
}

// Payload renders the full stopped-task snapshot for diagnosis.
func (r *RunResult) Payload() string {
	data, err := json.MarshalIndent(r.Task, "", "  ")
	if err != nil {
		return r.StoppedReason
	}
	return string(data)
}
