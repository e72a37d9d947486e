package taskdef

import "fmt"

// BasicArgs are the seven strictly ordered positional arguments of the
// basic command. All seven must be non-empty; validation happens before
// any network call.
type BasicArgs struct {
	TaskName         string
	ExecutionRoleARN string
	Cluster          string
	Image            string
	EnvFileARN       string
	EntryPoint       string
	Command          string
}

// basicArgNames, in positional order.
var basicArgNames = [...]string{
	"TASK_NAME",
	"EXEC_ROLE_ARN",
	"CLUSTER",
	"IMAGE",
	"ENV_FILE_ARN",
	"ENTRYPOINT",
	"COMMAND",
}

// ParseBasicArgs maps the raw positional arguments. The caller guarantees
// len(args) == 7 (the command's arg contract); Validate enforces
// non-emptiness.
func ParseBasicArgs(args []string) BasicArgs {
	return BasicArgs{
		TaskName:         args[0],
		ExecutionRoleARN: args[1],
		Cluster:          args[2],
		Image:            args[3],
		EnvFileARN:       args[4],
		EntryPoint:       args[5],
		Command:          args[6],
	}
}

// Validate checks that every positional argument carries a value.
func (a BasicArgs) Validate() error {
	values := [...]string{
		a.TaskName,
		a.ExecutionRoleARN,
		a.Cluster,
		a.Image,
		a.EnvFileARN,
		a.EntryPoint,
		a.Command,
	}
	for i, v := range values {
		if v == "" {
			return &MissingArgumentError{Position: i + 1, Name: basicArgNames[i]}
		}
	}
	return nil
}

// MissingArgumentError reports an empty positional argument.
type MissingArgumentError struct {
	Position int
	Name     string
}

// Error implements the error interface.
func (e *MissingArgumentError) Error() string {
	return fmt.Sprintf("missing argument %d (%s)", e.Position, e.Name)
}
