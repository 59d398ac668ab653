// Package docker implements the container runtime port over the Docker
// Engine API for queries and the docker CLI for compose operations and
// container filesystem copies.
package docker

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"

	"overwatch/internal/config"
	"overwatch/internal/domain/model"
	"overwatch/pkg/log"
)

// commandTimeout bounds every CLI invocation. Compose pulls can be slow;
// everything else finishes well inside this.
const commandTimeout = 10 * time.Minute

// Runtime talks to the local Docker daemon.
type Runtime struct {
	client *client.Client
}

// NewRuntime connects to the daemon using the standard environment
// configuration (DOCKER_HOST et al).
func NewRuntime() (*Runtime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Runtime{client: cli}, nil
}

// ListContainers returns every container, running or not, whose name
// starts with namePrefix.
func (r *Runtime) ListContainers(ctx context.Context, namePrefix string) ([]model.Container, error) {
	filterArgs := filters.NewArgs()
	filterArgs.Add("name", namePrefix)

	summaries, err := r.client.ContainerList(ctx, container.ListOptions{All: true, Filters: filterArgs})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	out := make([]model.Container, 0, len(summaries))
	for _, s := range summaries {
		if len(s.Names) == 0 {
			continue
		}
		name := strings.TrimPrefix(s.Names[0], "/")
		// The daemon's name filter is a substring match; enforce the
		// prefix here.
		if !strings.HasPrefix(name, namePrefix) {
			continue
		}
		out = append(out, model.Container{
			ID:        s.ID,
			Name:      name,
			State:     s.State,
			Image:     s.Image,
			CreatedAt: time.Unix(s.Created, 0).UTC(),
		})
	}
	return out, nil
}

// ComposeUp starts the compose project in dir.
func (r *Runtime) ComposeUp(ctx context.Context, dir string) error {
	return r.runCompose(ctx, dir, "up", "-d")
}

// ComposeDown stops and removes the compose project in dir.
func (r *Runtime) ComposeDown(ctx context.Context, dir string) error {
	return r.runCompose(ctx, dir, "down", "--remove-orphans")
}

// ComposePull pulls the project's images.
func (r *Runtime) ComposePull(ctx context.Context, dir string) error {
	return r.runCompose(ctx, dir, "pull")
}

// ComposeUpRecreate force-recreates the project's containers so a new
// image tag takes effect.
func (r *Runtime) ComposeUpRecreate(ctx context.Context, dir string) error {
	return r.runCompose(ctx, dir, "up", "-d", "--force-recreate")
}

// CopyFromContainer copies srcPath inside the container into dstDir.
func (r *Runtime) CopyFromContainer(ctx context.Context, containerName, srcPath, dstDir string) error {
	return r.runDocker(ctx, "", "cp", containerName+":"+srcPath, dstDir)
}

// CopyToContainer copies the contents of the local directory srcPath into
// the container at dstPath.
func (r *Runtime) CopyToContainer(ctx context.Context, containerName, srcPath, dstPath string) error {
	return r.runDocker(ctx, "", "cp", filepath.Join(srcPath, "."), containerName+":"+dstPath)
}

// runCompose executes `docker compose` in dir, passing the tenant's env
// files when present. shared.env comes first so the tenant file's core
// identifiers always win.
func (r *Runtime) runCompose(ctx context.Context, dir string, args ...string) error {
	composeArgs := []string{"compose"}
	for _, envFile := range []string{config.SharedEnvFileName, config.TenantEnvFileName} {
		if fileExists(filepath.Join(dir, envFile)) {
			composeArgs = append(composeArgs, "--env-file", envFile)
		}
	}
	composeArgs = append(composeArgs, args...)
	return r.runDocker(ctx, dir, composeArgs...)
}

// runDocker executes the docker CLI with the given args, never through a
// shell.
func (r *Runtime) runDocker(ctx context.Context, dir string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "docker", args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		log.Error("docker command failed", "dir", dir, "args", args, "output", string(output), "error", err)
		return fmt.Errorf("docker %s failed: %w: %s", args[0], err, strings.TrimSpace(string(output)))
	}
	log.Debug("docker command executed", "dir", dir, "args", args)
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
