package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecstack/ecstack/internal/config"
	"github.com/ecstack/ecstack/internal/manifest"
	"github.com/ecstack/ecstack/internal/provisioning"
)

type mockECR struct {
	describeRepositories func(*ecr.DescribeRepositoriesInput) (*ecr.DescribeRepositoriesOutput, error)
	createRepository     func(*ecr.CreateRepositoryInput) (*ecr.CreateRepositoryOutput, error)
	describeImages       func(*ecr.DescribeImagesInput) (*ecr.DescribeImagesOutput, error)
	deleteRepository     func(*ecr.DeleteRepositoryInput) (*ecr.DeleteRepositoryOutput, error)
}

func (m *mockECR) DescribeRepositories(_ context.Context, in *ecr.DescribeRepositoriesInput, _ ...func(*ecr.Options)) (*ecr.DescribeRepositoriesOutput, error) {
	return m.describeRepositories(in)
}

func (m *mockECR) CreateRepository(_ context.Context, in *ecr.CreateRepositoryInput, _ ...func(*ecr.Options)) (*ecr.CreateRepositoryOutput, error) {
	return m.createRepository(in)
}

func (m *mockECR) DescribeImages(_ context.Context, in *ecr.DescribeImagesInput, _ ...func(*ecr.Options)) (*ecr.DescribeImagesOutput, error) {
	return m.describeImages(in)
}

func (m *mockECR) DeleteRepository(_ context.Context, in *ecr.DeleteRepositoryInput, _ ...func(*ecr.Options)) (*ecr.DeleteRepositoryOutput, error) {
	return m.deleteRepository(in)
}

const repoURI = "123456789012.dkr.ecr.eu-west-1.amazonaws.com/demo"

func TestEnsure_ReusesExistingRepository(t *testing.T) {
	t.Parallel()

	mock := &mockECR{
		describeRepositories: func(in *ecr.DescribeRepositoriesInput) (*ecr.DescribeRepositoriesOutput, error) {
			assert.Equal(t, []string{"demo"}, in.RepositoryNames)
			return &ecr.DescribeRepositoriesOutput{
				Repositories: []ecrtypes.Repository{{RepositoryUri: aws.String(repoURI)}},
			}, nil
		},
		createRepository: func(*ecr.CreateRepositoryInput) (*ecr.CreateRepositoryOutput, error) {
			t.Fatal("CreateRepository must not be called when the repository exists")
			return nil, nil
		},
	}

	uri, err := NewProvisioner(mock).Ensure(context.Background(), "demo")
	require.NoError(t, err)
	assert.Equal(t, repoURI, uri)
}

func TestEnsure_CreatesWhenAbsent(t *testing.T) {
	t.Parallel()

	mock := &mockECR{
		describeRepositories: func(*ecr.DescribeRepositoriesInput) (*ecr.DescribeRepositoriesOutput, error) {
			return nil, &ecrtypes.RepositoryNotFoundException{}
		},
		createRepository: func(in *ecr.CreateRepositoryInput) (*ecr.CreateRepositoryOutput, error) {
			assert.Equal(t, "demo", aws.ToString(in.RepositoryName))
			return &ecr.CreateRepositoryOutput{
				Repository: &ecrtypes.Repository{RepositoryUri: aws.String(repoURI)},
			}, nil
		},
	}

	uri, err := NewProvisioner(mock).Ensure(context.Background(), "demo")
	require.NoError(t, err)
	assert.Equal(t, repoURI, uri)
}

func TestEnsure_DescribeFailurePropagates(t *testing.T) {
	t.Parallel()

	mock := &mockECR{
		describeRepositories: func(*ecr.DescribeRepositoriesInput) (*ecr.DescribeRepositoriesOutput, error) {
			return nil, errors.New("throttled")
		},
	}

	_, err := NewProvisioner(mock).Ensure(context.Background(), "demo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to describe repository")
}

func TestHasTag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		images  func(*ecr.DescribeImagesInput) (*ecr.DescribeImagesOutput, error)
		want    bool
		wantErr bool
	}{
		{
			name: "tag present",
			images: func(in *ecr.DescribeImagesInput) (*ecr.DescribeImagesOutput, error) {
				return &ecr.DescribeImagesOutput{
					ImageDetails: []ecrtypes.ImageDetail{{ImageTags: []string{"latest"}}},
				}, nil
			},
			want: true,
		},
		{
			name: "image not found",
			images: func(*ecr.DescribeImagesInput) (*ecr.DescribeImagesOutput, error) {
				return nil, &ecrtypes.ImageNotFoundException{}
			},
			want: false,
		},
		{
			name: "repository not found",
			images: func(*ecr.DescribeImagesInput) (*ecr.DescribeImagesOutput, error) {
				return nil, &ecrtypes.RepositoryNotFoundException{}
			},
			want: false,
		},
		{
			name: "other failure",
			images: func(*ecr.DescribeImagesInput) (*ecr.DescribeImagesOutput, error) {
				return nil, errors.New("throttled")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mock := &mockECR{describeImages: tt.images}

			has, err := NewProvisioner(mock).HasTag(context.Background(), "demo", "latest")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, has)
		})
	}
}

func TestProvision_WarnsWhenNoImagePushed(t *testing.T) {
	t.Parallel()

	mock := &mockECR{
		describeRepositories: func(*ecr.DescribeRepositoriesInput) (*ecr.DescribeRepositoriesOutput, error) {
			return &ecr.DescribeRepositoriesOutput{
				Repositories: []ecrtypes.Repository{{RepositoryUri: aws.String(repoURI)}},
			}, nil
		},
		describeImages: func(*ecr.DescribeImagesInput) (*ecr.DescribeImagesOutput, error) {
			return nil, &ecrtypes.ImageNotFoundException{}
		},
	}

	obs := provisioning.NewMockObserver()
	ctx := provisioning.NewContext(context.Background(),
		&config.StackConfig{Name: "demo", Region: "eu-west-1", ContainerPort: 8080, Kinds: config.DefaultKinds()},
		obs, &config.Timeouts{}, manifest.NewStore(t.TempDir()))

	require.NoError(t, NewProvisioner(mock).Provision(ctx))
	assert.Equal(t, repoURI, ctx.State.RegistryURI)
	require.Len(t, obs.Warnings, 1)
	assert.Contains(t, obs.Warnings[0], "demo:latest")
}

func TestProvision_ImageOverrideSkipsTagCheck(t *testing.T) {
	t.Parallel()

	mock := &mockECR{
		describeRepositories: func(*ecr.DescribeRepositoriesInput) (*ecr.DescribeRepositoriesOutput, error) {
			return &ecr.DescribeRepositoriesOutput{
				Repositories: []ecrtypes.Repository{{RepositoryUri: aws.String(repoURI)}},
			}, nil
		},
		describeImages: func(*ecr.DescribeImagesInput) (*ecr.DescribeImagesOutput, error) {
			t.Fatal("DescribeImages must not be called with an image override")
			return nil, nil
		},
	}

	ctx := provisioning.NewContext(context.Background(),
		&config.StackConfig{Name: "demo", Region: "eu-west-1", ContainerPort: 8080, ImageOverride: "nginx:alpine", Kinds: config.DefaultKinds()},
		provisioning.NewMockObserver(), &config.Timeouts{}, manifest.NewStore(t.TempDir()))

	require.NoError(t, NewProvisioner(mock).Provision(ctx))
}

func TestTeardown(t *testing.T) {
	t.Parallel()

	t.Run("force deletes", func(t *testing.T) {
		t.Parallel()
		mock := &mockECR{
			deleteRepository: func(in *ecr.DeleteRepositoryInput) (*ecr.DeleteRepositoryOutput, error) {
				assert.Equal(t, "demo", aws.ToString(in.RepositoryName))
				assert.True(t, in.Force)
				return &ecr.DeleteRepositoryOutput{}, nil
			},
		}
		err := NewProvisioner(mock).Teardown(context.Background(), provisioning.NewMockObserver(), "demo")
		require.NoError(t, err)
	})

	t.Run("already gone", func(t *testing.T) {
		t.Parallel()
		mock := &mockECR{
			deleteRepository: func(*ecr.DeleteRepositoryInput) (*ecr.DeleteRepositoryOutput, error) {
				return nil, &ecrtypes.RepositoryNotFoundException{}
			},
		}
		err := NewProvisioner(mock).Teardown(context.Background(), provisioning.NewMockObserver(), "demo")
		require.NoError(t, err)
	})

	t.Run("other failure propagates", func(t *testing.T) {
		t.Parallel()
		mock := &mockECR{
			deleteRepository: func(*ecr.DeleteRepositoryInput) (*ecr.DeleteRepositoryOutput, error) {
				return nil, errors.New("access denied")
			},
		}
		err := NewProvisioner(mock).Teardown(context.Background(), provisioning.NewMockObserver(), "demo")
		require.Error(t, err)
	})
}
