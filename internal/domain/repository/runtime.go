package repository

import (
	"context"

	"overwatch/internal/domain/model"
)

// ContainerRuntime abstracts the container runtime the fleet runs on.
// Implementations must carry explicit timeouts on every operation; calls
// that shell out are the principal suspension points of the system.
type ContainerRuntime interface {
	// ListContainers returns all containers (running or not) whose name
	// starts with namePrefix.
	ListContainers(ctx context.Context, namePrefix string) ([]model.Container, error)

	// ComposeUp starts (or updates) the compose project in dir.
	ComposeUp(ctx context.Context, dir string) error

	// ComposeDown stops and removes the compose project in dir.
	ComposeDown(ctx context.Context, dir string) error

	// ComposePull pulls the images referenced by the compose project.
	ComposePull(ctx context.Context, dir string) error

	// ComposeUpRecreate force-recreates the project's containers so a new
	// image tag takes effect.
	ComposeUpRecreate(ctx context.Context, dir string) error

	// CopyFromContainer copies srcPath inside the named container into the
	// local directory dstDir.
	CopyFromContainer(ctx context.Context, containerName, srcPath, dstDir string) error

	// CopyToContainer copies the local file or directory srcPath into the
	// named container at dstPath.
	CopyToContainer(ctx context.Context, containerName, srcPath, dstPath string) error
}

// ComposeGenerator instantiates the templated compose descriptor for a
// tenant into its directory. The generator itself (templating, schema
// validation) lives outside this module.
type ComposeGenerator interface {
	Generate(ctx context.Context, app *model.App, tenant model.Tenant, dir string) error
}
