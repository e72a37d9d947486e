package preflight

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeECS struct {
	describeFn func(*ecs.DescribeClustersInput) (*ecs.DescribeClustersOutput, error)
	calls      int
}

func (f *fakeECS) DescribeClusters(_ context.Context, in *ecs.DescribeClustersInput, _ ...func(*ecs.Options)) (*ecs.DescribeClustersOutput, error) {
	f.calls++
	return f.describeFn(in)
}

type fakeS3 struct {
	headFn func(*s3.HeadObjectInput) (*s3.HeadObjectOutput, error)
	calls  int
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.calls++
	return f.headFn(in)
}

func activeCluster(name string) *ecs.DescribeClustersOutput {
	return &ecs.DescribeClustersOutput{
		Clusters: []ecstypes.Cluster{
			{ClusterName: aws.String(name), Status: aws.String("ACTIVE")},
		},
	}
}

func TestParseMode(t *testing.T) {
	for _, valid := range []string{"plan-only", "read-safe"} {
		mode, err := ParseMode(valid)
		require.NoError(t, err)
		assert.Equal(t, Mode(valid), mode)
	}

	_, err := ParseMode("write-probe")
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	t.Run("plan-only makes no remote calls", func(t *testing.T) {
		ecsFake := &fakeECS{}
		s3Fake := &fakeS3{}

		res, err := Run(context.Background(), ecsFake, s3Fake, Spec{
			Mode:        ModePlanOnly,
			Cluster:     "myEcsCluster",
			EnvFileARNs: []string{"arn:aws:s3:::bucket/vars.env"},
		})
		require.NoError(t, err)
		assert.Empty(t, res.Checks)
		assert.Equal(t, 0, ecsFake.calls)
		assert.Equal(t, 0, s3Fake.calls)
	})

	t.Run("read-safe passes on active cluster and readable env file", func(t *testing.T) {
		ecsFake := &fakeECS{
			describeFn: func(in *ecs.DescribeClustersInput) (*ecs.DescribeClustersOutput, error) {
				assert.Equal(t, []string{"myEcsCluster"}, in.Clusters)
				return activeCluster("myEcsCluster"), nil
			},
		}
		s3Fake := &fakeS3{
			headFn: func(in *s3.HeadObjectInput) (*s3.HeadObjectOutput, error) {
				assert.Equal(t, "bucket", aws.ToString(in.Bucket))
				assert.Equal(t, "vars.env", aws.ToString(in.Key))
				return &s3.HeadObjectOutput{}, nil
			},
		}

		res, err := Run(context.Background(), ecsFake, s3Fake, Spec{
			Mode:        ModeReadSafe,
			Cluster:     "myEcsCluster",
			EnvFileARNs: []string{"arn:aws:s3:::bucket/vars.env"},
		})
		require.NoError(t, err)
		require.Len(t, res.Checks, 2)
		assert.True(t, res.Checks[0].Allowed)
		assert.True(t, res.Checks[1].Allowed)
	})

	t.Run("read-safe heads every env file", func(t *testing.T) {
		ecsFake := &fakeECS{
			describeFn: func(*ecs.DescribeClustersInput) (*ecs.DescribeClustersOutput, error) {
				return activeCluster("myEcsCluster"), nil
			},
		}
		s3Fake := &fakeS3{
			headFn: func(*s3.HeadObjectInput) (*s3.HeadObjectOutput, error) {
				return &s3.HeadObjectOutput{}, nil
			},
		}

		res, err := Run(context.Background(), ecsFake, s3Fake, Spec{
			Mode:    ModeReadSafe,
			Cluster: "myEcsCluster",
			EnvFileARNs: []string{
				"arn:aws:s3:::bucket/vars.env",
				"arn:aws:s3:::bucket/secrets.env",
			},
		})
		require.NoError(t, err)
		require.Len(t, res.Checks, 3)
		assert.Equal(t, 2, s3Fake.calls)
	})

	t.Run("inactive cluster fails the pass", func(t *testing.T) {
		ecsFake := &fakeECS{
			describeFn: func(*ecs.DescribeClustersInput) (*ecs.DescribeClustersOutput, error) {
				return &ecs.DescribeClustersOutput{
					Clusters: []ecstypes.Cluster{
						{ClusterName: aws.String("myEcsCluster"), Status: aws.String("INACTIVE")},
					},
				}, nil
			},
		}

		res, err := Run(context.Background(), ecsFake, &fakeS3{}, Spec{
			Mode:    ModeReadSafe,
			Cluster: "myEcsCluster",
		})
		require.Error(t, err)
		require.Len(t, res.Checks, 1)
		assert.False(t, res.Checks[0].Allowed)
		assert.Contains(t, res.Checks[0].Detail, "INACTIVE")
	})

	t.Run("unknown cluster fails the pass", func(t *testing.T) {
		ecsFake := &fakeECS{
			describeFn: func(*ecs.DescribeClustersInput) (*ecs.DescribeClustersOutput, error) {
				return &ecs.DescribeClustersOutput{}, nil
			},
		}

		_, err := Run(context.Background(), ecsFake, &fakeS3{}, Spec{
			Mode:    ModeReadSafe,
			Cluster: "ghost",
		})
		assert.ErrorContains(t, err, "not found")
	})

	t.Run("unreadable env file fails after cluster check", func(t *testing.T) {
		ecsFake := &fakeECS{
			describeFn: func(*ecs.DescribeClustersInput) (*ecs.DescribeClustersOutput, error) {
				return activeCluster("myEcsCluster"), nil
			},
		}
		s3Fake := &fakeS3{
			headFn: func(*s3.HeadObjectInput) (*s3.HeadObjectOutput, error) {
				return nil, errors.New("NotFound")
			},
		}

		res, err := Run(context.Background(), ecsFake, s3Fake, Spec{
			Mode:        ModeReadSafe,
			Cluster:     "myEcsCluster",
			EnvFileARNs: []string{"arn:aws:s3:::bucket/missing.env"},
		})
		require.Error(t, err)
		require.Len(t, res.Checks, 2)
		assert.True(t, res.Checks[0].Allowed)
		assert.False(t, res.Checks[1].Allowed)
	})
}

func TestParseS3ARN(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantBucket string
		wantKey    string
		wantErr    bool
	}{
		{
			name:       "object ARN",
			input:      "arn:aws:s3:::bucket/vars.env",
			wantBucket: "bucket",
			wantKey:    "vars.env",
		},
		{
			name:       "nested key",
			input:      "arn:aws:s3:::bucket/env/production/vars.env",
			wantBucket: "bucket",
			wantKey:    "env/production/vars.env",
		},
		{name: "bucket only", input: "arn:aws:s3:::bucket", wantErr: true},
		{name: "empty key", input: "arn:aws:s3:::bucket/", wantErr: true},
		{name: "not an S3 ARN", input: "arn:aws:iam::123:role/x", wantErr: true},
		{name: "plain string", input: "bucket/vars.env", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, key, err := ParseS3ARN(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantKey, key)
		})
	}
}
