package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Argument failures must exit before any AWS configuration is loaded or
// any network call is attempted; these tests exercise the command through
// cobra the way main does.

func execArgs(args ...string) []string {
	return append([]string{"exec"}, args...)
}

func TestExecArgCount(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs(execArgs("db-migrations", "role", "cluster"))
	err := rootCmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 7 arg")
}

func TestExecEmptyArgument(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs(execArgs(
		"db-migrations",
		"arn:aws:iam::123:role/ecsTaskExecutionRole",
		"myEcsCluster",
		"", // image missing
		"arn:aws:s3:::bucket/vars.env",
		"sh -c",
		"bundle exec rake db:migrate",
	))
	err := rootCmd.Execute()

	require.Error(t, err)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Contains(t, err.Error(), "IMAGE")
	// Usage text accompanies argument errors.
	assert.Contains(t, out.String(), "Usage:")
}
