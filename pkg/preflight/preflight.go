// Package preflight runs read-safe checks before the first mutating ECS
// call, so obvious misconfiguration fails before a task definition is
// registered.
package preflight

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Mode defines how aggressive preflight checks are.
type Mode string

const (
	// ModePlanOnly skips all remote checks.
	ModePlanOnly Mode = "plan-only"
	// ModeReadSafe issues read-only describe/head calls.
	ModeReadSafe Mode = "read-safe"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModePlanOnly, ModeReadSafe:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unsupported preflight mode: %s", s)
}

// Capability names are stable strings used in check results.
const (
	CapClusterActive = "cluster.active"
	CapEnvFileRead   = "envfile.head"
)

// ECSAPI is the describe call the cluster check needs.
type ECSAPI interface {
	DescribeClusters(ctx context.Context, params *ecs.DescribeClustersInput, optFns ...func(*ecs.Options)) (*ecs.DescribeClustersOutput, error)
}

// S3API is the head call the environment-file check needs.
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Spec controls which checks run.
type Spec struct {
	Mode        Mode
	Cluster     string
	EnvFileARNs []string
}

// CheckResult records one capability probe.
type CheckResult struct {
	Capability string
	Allowed    bool
	Method     string
	Detail     string
}

// Result is the outcome of a preflight pass.
type Result struct {
	Mode   Mode
	Checks []CheckResult
}

// Run executes the checks selected by spec. The first failing check
// aborts the pass and is returned as the error; the partial Result is
// still populated for reporting.
func Run(ctx context.Context, ecsAPI ECSAPI, s3API S3API, spec Spec) (*Result, error) {
	res := &Result{Mode: spec.Mode}

	if spec.Mode == ModePlanOnly {
		return res, nil
	}

	if spec.Cluster != "" {
		check, err := checkCluster(ctx, ecsAPI, spec.Cluster)
		res.Checks = append(res.Checks, check)
		if err != nil {
			return res, err
		}
	}

	for _, arn := range spec.EnvFileARNs {
		check, err := checkEnvFile(ctx, s3API, arn)
		res.Checks = append(res.Checks, check)
		if err != nil {
			return res, err
		}
	}

	return res, nil
}

func checkCluster(ctx context.Context, api ECSAPI, cluster string) (CheckResult, error) {
	check := CheckResult{
		Capability: CapClusterActive,
		Method:     fmt.Sprintf("DescribeClusters(%q)", cluster),
	}

	out, err := api.DescribeClusters(ctx, &ecs.DescribeClustersInput{
		Clusters: []string{cluster},
	})
	if err != nil {
		check.Detail = err.Error()
		return check, err
	}
	if len(out.Clusters) == 0 {
		err := fmt.Errorf("cluster %q not found", cluster)
		check.Detail = err.Error()
		return check, err
	}
	if status := aws.ToString(out.Clusters[0].Status); status != "ACTIVE" {
		err := fmt.Errorf("cluster %q is %s, not ACTIVE", cluster, status)
		check.Detail = err.Error()
		return check, err
	}

	check.Allowed = true
	return check, nil
}

func checkEnvFile(ctx context.Context, api S3API, envFileARN string) (CheckResult, error) {
	check := CheckResult{
		Capability: CapEnvFileRead,
	}

	bucket, key, err := ParseS3ARN(envFileARN)
	if err != nil {
		check.Detail = err.Error()
		return check, err
	}
	check.Method = fmt.Sprintf("HeadObject(s3://%s/%s)", bucket, key)

	if _, err := api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		check.Detail = err.Error()
		return check, err
	}

	check.Allowed = true
	return check, nil
}

// s3ARNPrefix is the object ARN form ECS accepts for environment files.
const s3ARNPrefix = "arn:aws:s3:::"

// ParseS3ARN splits an S3 object ARN (arn:aws:s3:::bucket/key) into
// bucket and key.
func ParseS3ARN(arn string) (bucket, key string, err error) {
	if !strings.HasPrefix(arn, s3ARNPrefix) {
		return "", "", fmt.Errorf("not an S3 object ARN: %s", arn)
	}
	rest := strings.TrimPrefix(arn, s3ARNPrefix)
	bucket, key, found := strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", fmt.Errorf("S3 object ARN must name a bucket and key: %s", arn)
	}
	return bucket, key, nil
}
