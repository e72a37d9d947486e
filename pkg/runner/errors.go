package runner

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// Sentinel errors used to classify remote rejections. Callers match with
// errors.Is after unwrapping the typed error.
var (
	ErrNotFound           = errors.New("resource not found")
	ErrClusterNotFound    = errors.New("cluster not found")
	ErrAccessDenied       = errors.New("access denied")
	ErrInvalidParameter   = errors.New("invalid parameter")
	ErrThrottled          = errors.New("request throttled")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// RegistrationError reports a rejected task-definition registration.
// Never retried: the process exits and the whole invocation is the retry
// unit.
type RegistrationError struct {
	Family string
	Err    error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("register task definition %q: %s", e.Family, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// ReferenceError reports a failed reference task-definition lookup.
type ReferenceError struct {
	TaskDefinition string
	Err            error
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("describe reference task definition %q: %s", e.TaskDefinition, e.Err)
}

func (e *ReferenceError) Unwrap() error { return e.Err }

// RunStartError reports that the one-shot run could not be started
// (unknown cluster, no capacity, missing iam:PassRole, ...).
type RunStartError struct {
	Cluster string
	Err     error
}

func (e *RunStartError) Error() string {
	return fmt.Sprintf("run task on cluster %q: %s", e.Cluster, e.Err)
}

func (e *RunStartError) Unwrap() error { return e.Err }

// WaitError reports a failed status check while polling. Fatal like
// everything else here: the loop does not retry through API errors.
type WaitError struct {
	Handle RunHandle
	Err    error
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("describe task %s: %s", e.Handle.TaskARN, e.Err)
}

func (e *WaitError) Unwrap() error { return e.Err }

// WaitTimeoutError reports an exhausted poll budget. The remote run keeps
// going; this tool never cancels it.
type WaitTimeoutError struct {
	Handle   RunHandle
	Attempts int
}

func (e *WaitTimeoutError) Error() string {
	return fmt.Sprintf("task %s did not stop after %d status checks", e.Handle.TaskARN, e.Attempts)
}

// classify maps ECS API error codes onto the sentinel errors, keeping the
// original error in the chain.
func classify(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	var sentinel error
	switch apiErr.ErrorCode() {
	case "ClusterNotFoundException":
		sentinel = ErrClusterNotFound
	case "ResourceNotFoundException":
		sentinel = ErrNotFound
	case "AccessDeniedException", "UnauthorizedOperation":
		sentinel = ErrAccessDenied
	case "InvalidParameterException", "ValidationException":
		sentinel = ErrInvalidParameter
	case "ThrottlingException", "RequestLimitExceeded":
		sentinel = ErrThrottled
	case "ServerException", "ServiceUnavailableException":
		sentinel = ErrServiceUnavailable
	default:
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
