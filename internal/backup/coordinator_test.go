package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"overwatch/internal/config"
	"overwatch/internal/domain/model"
	"overwatch/internal/fleet"
	"overwatch/internal/infra/store"
	"overwatch/pkg/keyedlock"
)

const lockedStderr = "Fatal: unable to create lock in backend: repository is already locked by PID 1234 on backup-host by root (UID 0, GID 0)\n" +
	"lock was created at 2024-01-15 10:30:00 (5 minutes ago)"

const absentStderr = "Fatal: unable to open config file: Stat: The specified key does not exist.\n" +
	"Is there a repository at the following location?\ns3:https://s3.example.com/bucket"

const backupSummary = `{"message_type":"status","percent_done":1}
{"message_type":"summary","files_new":3,"snapshot_id":"abc123def"}`

// cannedResponse is keyed by the tool subcommand (the first argument).
type cannedResponse struct {
	stdout string
	stderr string
	err    error
}

type fakeRunner struct {
	responses map[string]cannedResponse
	calls     [][]string
	envs      [][]string
	// hook runs before the canned response is returned, so tests can
	// materialize filesystem side effects (e.g. a restored snapshot tree).
	hook func(args []string)
}

func (f *fakeRunner) Run(ctx context.Context, env []string, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, args)
	f.envs = append(f.envs, env)
	if f.hook != nil {
		f.hook(args)
	}
	resp := f.responses[args[0]]
	return []byte(resp.stdout), []byte(resp.stderr), resp.err
}

type fakeDB struct {
	dumped   []string
	restored []string
	dumpErr  error
}

func (f *fakeDB) CreateDatabase(ctx context.Context, name, user, password string) error { return nil }
func (f *fakeDB) DropDatabase(ctx context.Context, name string) error                   { return nil }

func (f *fakeDB) Dump(ctx context.Context, name, outFile string) error {
	if f.dumpErr != nil {
		return f.dumpErr
	}
	f.dumped = append(f.dumped, name)
	return os.WriteFile(outFile, []byte("-- dump of "+name+"\n"), 0o600)
}

func (f *fakeDB) Restore(ctx context.Context, name, dumpFile string) error {
	f.restored = append(f.restored, name)
	return nil
}

type fakeRuntime struct {
	copyFromErr error
	copiedFrom  []string
	copiedTo    []string
}

func (f *fakeRuntime) ListContainers(ctx context.Context, namePrefix string) ([]model.Container, error) {
	return nil, nil
}
func (f *fakeRuntime) ComposeUp(ctx context.Context, dir string) error         { return nil }
func (f *fakeRuntime) ComposeDown(ctx context.Context, dir string) error       { return nil }
func (f *fakeRuntime) ComposePull(ctx context.Context, dir string) error       { return nil }
func (f *fakeRuntime) ComposeUpRecreate(ctx context.Context, dir string) error { return nil }

func (f *fakeRuntime) CopyFromContainer(ctx context.Context, containerName, srcPath, dstDir string) error {
	if f.copyFromErr != nil {
		return f.copyFromErr
	}
	f.copiedFrom = append(f.copiedFrom, containerName+":"+srcPath)
	return os.WriteFile(filepath.Join(dstDir, "data.bin"), []byte("payload"), 0o600)
}

func (f *fakeRuntime) CopyToContainer(ctx context.Context, containerName, srcPath, dstPath string) error {
	f.copiedTo = append(f.copiedTo, containerName+":"+dstPath)
	return nil
}

type coordinatorFixture struct {
	cfg         *config.Config
	coordinator *Coordinator
	runner      *fakeRunner
	db          *fakeDB
	runtime     *fakeRuntime
}

func newFixture(t *testing.T, app model.App) *coordinatorFixture {
	t.Helper()
	cfg := &config.Config{
		BasePath:      t.TempDir(),
		ProjectPrefix: "ow",
		Backup: config.BackupToolConfig{
			Binary:          "restic",
			Password:        "repo-pass",
			AccessKeyID:     "key",
			SecretAccessKey: "secret",
			TimeoutSeconds:  60,
		},
	}

	locks := keyedlock.New()
	apps := store.NewAppStore(cfg.GetAppsStateFile(), locks)
	require.NoError(t, apps.Create(context.Background(), app))

	runner := &fakeRunner{responses: map[string]cannedResponse{}}
	db := &fakeDB{}
	runtime := &fakeRuntime{}
	return &coordinatorFixture{
		cfg:         cfg,
		coordinator: NewCoordinator(cfg, apps, db, runtime, runner, fleet.NewNamer("ow")),
		runner:      runner,
		db:          db,
		runtime:     runtime,
	}
}

func backupApp() model.App {
	return model.App{
		ID:     "blog",
		Name:   "Blog",
		Backup: &model.BackupConfig{Endpoint: "https://s3.example.com", Bucket: "blog-backups"},
		Services: []model.Service{
			{Name: "web", Required: true},
			{
				Name: "files",
				Backup: &model.ServiceBackup{
					Enabled: true,
					Paths:   []model.BackupPath{{ContainerPath: "/data/uploads", ArchiveDir: "uploads"}},
				},
			},
		},
	}
}

// materializeTenant lays down the tenant directory the coordinator reads.
func (f *coordinatorFixture) materializeTenant(t *testing.T, appID, tenantID, dbName string) {
	t.Helper()
	dir := f.cfg.GetTenantDir(appID, tenantID)
	require.NoError(t, os.MkdirAll(dir, 0o750))
	content := "APP_ID=" + appID + "\nTENANT_ID=" + tenantID + "\nDB_NAME=" + dbName + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.TenantEnvFileName), []byte(content), 0o600))
}

func TestGetBackupInfoClassification(t *testing.T) {
	ctx := context.Background()

	t.Run("initialized", func(t *testing.T) {
		f := newFixture(t, backupApp())
		f.runner.responses["snapshots"] = cannedResponse{stdout: "[]"}

		info, err := f.coordinator.GetBackupInfo(ctx, "blog")
		require.NoError(t, err)
		assert.Equal(t, model.RepositoryInitialized, info.State)
		assert.Equal(t, "s3:https://s3.example.com/blog-backups", info.Repository)
	})

	t.Run("locked", func(t *testing.T) {
		f := newFixture(t, backupApp())
		f.runner.responses["snapshots"] = cannedResponse{stderr: lockedStderr, err: errors.New("exit status 1")}

		info, err := f.coordinator.GetBackupInfo(ctx, "blog")
		require.NoError(t, err)
		assert.Equal(t, model.RepositoryLocked, info.State)
		require.NotNil(t, info.Lock)
		assert.Equal(t, "1234", info.Lock.PID)
		assert.Equal(t, "5 minutes", info.Lock.Age)
	})

	t.Run("not initialized", func(t *testing.T) {
		f := newFixture(t, backupApp())
		f.runner.responses["snapshots"] = cannedResponse{stderr: absentStderr, err: errors.New("exit status 1")}

		info, err := f.coordinator.GetBackupInfo(ctx, "blog")
		require.NoError(t, err)
		assert.Equal(t, model.RepositoryNotInitialized, info.State)
	})

	t.Run("unclassified failure", func(t *testing.T) {
		f := newFixture(t, backupApp())
		f.runner.responses["snapshots"] = cannedResponse{stderr: "weird failure", err: errors.New("exit status 1")}

		_, err := f.coordinator.GetBackupInfo(ctx, "blog")
		assert.ErrorIs(t, err, model.ErrExternalTool)
	})
}

func TestGetBackupInfoMissingCredentials(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, backupApp())
	f.cfg.Backup.Password = ""

	_, err := f.coordinator.GetBackupInfo(ctx, "blog")
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Empty(t, f.runner.calls, "credential errors must precede any tool invocation")
}

func TestGetBackupInfoUnconfiguredApp(t *testing.T) {
	ctx := context.Background()
	app := backupApp()
	app.Backup = nil
	f := newFixture(t, app)

	_, err := f.coordinator.GetBackupInfo(ctx, "blog")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestCreateBackup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, backupApp())
	f.materializeTenant(t, "blog", "acme", "ow_blog_acme")

	f.runner.responses["snapshots"] = cannedResponse{stdout: "[]"}
	f.runner.responses["backup"] = cannedResponse{stdout: backupSummary}

	snapshotID, steps, err := f.coordinator.CreateBackup(ctx, "blog", "acme")
	require.NoError(t, err)
	assert.Equal(t, "abc123def", snapshotID)

	assert.Equal(t, []string{"ow_blog_acme"}, f.db.dumped)
	assert.Equal(t, []string{"ow-blog-acme-files:/data/uploads"}, f.runtime.copiedFrom)

	var backupArgs []string
	for _, call := range f.runner.calls {
		if call[0] == "backup" {
			backupArgs = call
		}
	}
	require.NotNil(t, backupArgs)
	joined := strings.Join(backupArgs, " ")
	assert.Contains(t, joined, "--tag app:blog")
	assert.Contains(t, joined, "--tag tenant:acme")

	// The scratch directory is removed regardless of outcome.
	scratch := backupArgs[1]
	_, statErr := os.Stat(scratch)
	assert.True(t, os.IsNotExist(statErr), "scratch directory must be cleaned up")

	for _, step := range steps {
		assert.Equal(t, model.StepDone, step.Status, step.Name)
	}
}

func TestCreateBackupInitializesRepository(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, backupApp())
	f.materializeTenant(t, "blog", "acme", "ow_blog_acme")

	f.runner.responses["snapshots"] = cannedResponse{stderr: absentStderr, err: errors.New("exit status 1")}
	f.runner.responses["init"] = cannedResponse{}
	f.runner.responses["backup"] = cannedResponse{stdout: backupSummary}

	_, _, err := f.coordinator.CreateBackup(ctx, "blog", "acme")
	require.NoError(t, err)

	var sawInit bool
	for _, call := range f.runner.calls {
		if call[0] == "init" {
			sawInit = true
		}
	}
	assert.True(t, sawInit)
}

func TestCreateBackupLockedRepository(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, backupApp())
	f.materializeTenant(t, "blog", "acme", "ow_blog_acme")

	f.runner.responses["snapshots"] = cannedResponse{stdout: "[]"}
	f.runner.responses["backup"] = cannedResponse{stderr: lockedStderr, err: errors.New("exit status 1")}

	_, _, err := f.coordinator.CreateBackup(ctx, "blog", "acme")
	assert.ErrorIs(t, err, model.ErrConflict)
	assert.Contains(t, err.Error(), "PID 1234")
}

func TestCreateBackupLockConflictDetectedAtProbe(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, backupApp())
	f.materializeTenant(t, "blog", "acme", "ow_blog_acme")

	// Contention surfaces on the repository probe already, before the
	// backup invocation itself.
	f.runner.responses["snapshots"] = cannedResponse{stderr: lockedStderr, err: errors.New("exit status 1")}

	_, _, err := f.coordinator.CreateBackup(ctx, "blog", "acme")
	assert.ErrorIs(t, err, model.ErrConflict)
	assert.Contains(t, err.Error(), "PID 1234")
	assert.NotErrorIs(t, err, model.ErrExternalTool)
}

func TestCreateBackupUnknownTenant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, backupApp())

	_, _, err := f.coordinator.CreateBackup(ctx, "blog", "ghost")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestCreateBackupAbsentContainerIsSkipped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, backupApp())
	f.materializeTenant(t, "blog", "acme", "ow_blog_acme")

	f.runner.responses["snapshots"] = cannedResponse{stdout: "[]"}
	f.runner.responses["backup"] = cannedResponse{stdout: backupSummary}
	f.runtime.copyFromErr = errors.New("Error response from daemon: No such container: ow-blog-acme-files")

	_, steps, err := f.coordinator.CreateBackup(ctx, "blog", "acme")
	require.NoError(t, err, "an absent container skips the path, not the backup")

	var sawSkip bool
	for _, step := range steps {
		if step.Status == model.StepSkipped && strings.Contains(step.Name, "/data/uploads") {
			sawSkip = true
		}
	}
	assert.True(t, sawSkip)
}

func TestCreateBackupDumpFailureRecordsFailedStep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, backupApp())
	f.materializeTenant(t, "blog", "acme", "ow_blog_acme")

	f.runner.responses["snapshots"] = cannedResponse{stdout: "[]"}
	f.db.dumpErr = errors.New("pg_dump failed: exit status 1")

	_, steps, err := f.coordinator.CreateBackup(ctx, "blog", "acme")
	require.Error(t, err)

	require.NotEmpty(t, steps)
	last := steps[len(steps)-1]
	assert.Equal(t, "database-dump", last.Name)
	assert.Equal(t, model.StepFailed, last.Status)
	assert.ErrorIs(t, last.Err, f.db.dumpErr)
}

func TestCreateBackupRejectsMalformedContainerPath(t *testing.T) {
	ctx := context.Background()
	app := backupApp()
	app.Services[1].Backup.Paths[0].ContainerPath = "/data/../../etc"
	f := newFixture(t, app)
	f.materializeTenant(t, "blog", "acme", "ow_blog_acme")

	f.runner.responses["snapshots"] = cannedResponse{stdout: "[]"}

	_, _, err := f.coordinator.CreateBackup(ctx, "blog", "acme")
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Empty(t, f.runtime.copiedFrom, "nothing may be copied once a path fails validation")
}

func TestValidateContainerPath(t *testing.T) {
	assert.NoError(t, validateContainerPath("/var/lib/app/data"))
	assert.NoError(t, validateContainerPath("/data/uploads-2024.bak"))

	for _, p := range []string{
		"",
		"/data/../etc",
		"/data; rm -rf /",
		"/data uploads",
		"/data$HOME",
	} {
		assert.ErrorIs(t, validateContainerPath(p), model.ErrValidation, p)
	}
}

func TestRestoreBackup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, backupApp())
	f.materializeTenant(t, "blog", "acme", "ow_blog_acme")

	// The canned restore materializes the snapshot layout into the
	// --target directory: metadata.json at the set root, per-tenant
	// subdirectories below it.
	f.runner.responses["restore"] = cannedResponse{}
	restoreHook := func(args []string) {
		var target string
		for i, a := range args {
			if a == "--target" {
				target = args[i+1]
			}
		}
		require.NotEmpty(t, target)
		root := filepath.Join(target, "scratch-root")
		require.NoError(t, os.MkdirAll(filepath.Join(root, "acme", "paths", "uploads"), 0o750))
		require.NoError(t, os.WriteFile(filepath.Join(root, "metadata.json"),
			[]byte(`{"timestamp":"2024-01-15T10:00:00Z","appId":"blog","tenants":["acme"],"project":"ow","version":1}`), 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(root, "acme", "database.sql"), []byte("-- dump\n"), 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(root, "acme", "paths", "uploads", "data.bin"), []byte("payload"), 0o600))
	}
	f.runner.hook = restoreHook

	steps, err := f.coordinator.RestoreBackup(ctx, "blog", "abc123def", "acme", model.RestoreOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"ow_blog_acme"}, f.db.restored)
	assert.Equal(t, []string{"ow-blog-acme-files:/data/uploads"}, f.runtime.copiedTo)

	for _, step := range steps {
		assert.Equal(t, model.StepDone, step.Status, step.Name)
	}
}

func TestRestoreBackupCreateNewRequiresDomain(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, backupApp())

	_, err := f.coordinator.RestoreBackup(ctx, "blog", "abc", "acme", model.RestoreOptions{CreateNew: true})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestRestoreBackupMissingTarget(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, backupApp())

	_, err := f.coordinator.RestoreBackup(ctx, "blog", "abc", "ghost", model.RestoreOptions{})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSelectSourceTenant(t *testing.T) {
	single := model.BackupMetadata{Tenants: []string{"acme"}}
	got, err := selectSourceTenant(single, "anything")
	require.NoError(t, err)
	assert.Equal(t, "acme", got, "single-tenant sets auto-select")

	multi := model.BackupMetadata{Tenants: []string{"acme", "globex"}}
	got, err = selectSourceTenant(multi, "globex")
	require.NoError(t, err)
	assert.Equal(t, "globex", got)

	_, err = selectSourceTenant(multi, "initech")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = selectSourceTenant(model.BackupMetadata{}, "acme")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestListSnapshots(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, backupApp())
	f.runner.responses["snapshots"] = cannedResponse{stdout: `[
		{"id":"abc123def456","short_id":"abc123d","time":"2024-01-15T10:00:00Z","tags":["app:blog","tenant:acme"],"paths":["/tmp/x"]}
	]`}

	snapshots, err := f.coordinator.ListSnapshots(ctx, "blog", "acme")
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, "abc123d", snapshots[0].ShortID)

	args := f.runner.calls[0]
	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "--tag app:blog")
	assert.Contains(t, joined, "--tag tenant:acme")
}

func TestListSnapshotsAbsentRepository(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, backupApp())
	f.runner.responses["snapshots"] = cannedResponse{stderr: absentStderr, err: errors.New("exit status 1")}

	snapshots, err := f.coordinator.ListSnapshots(ctx, "blog", "")
	require.NoError(t, err)
	assert.Nil(t, snapshots)
}

func TestPruneBackupsValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, backupApp())

	err := f.coordinator.PruneBackups(ctx, "blog", 0, 0, 0)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestPruneBackupsArgs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, backupApp())
	f.runner.responses["forget"] = cannedResponse{}

	require.NoError(t, f.coordinator.PruneBackups(ctx, "blog", 7, 4, 0))

	joined := strings.Join(f.runner.calls[0], " ")
	assert.Contains(t, joined, "--keep-daily 7")
	assert.Contains(t, joined, "--keep-weekly 4")
	assert.NotContains(t, joined, "--keep-monthly")
}

func TestUnlock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, backupApp())
	f.runner.responses["unlock"] = cannedResponse{}

	require.NoError(t, f.coordinator.Unlock(ctx, "blog"))
	assert.Equal(t, []string{"unlock"}, f.runner.calls[0])
}

func TestUnlockToolFailureIsNormalized(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, backupApp())
	f.runner.responses["unlock"] = cannedResponse{stderr: "Fatal: wrong password", err: errors.New("exit status 1")}

	err := f.coordinator.Unlock(ctx, "blog")
	assert.ErrorIs(t, err, model.ErrExternalTool)
	assert.NotContains(t, err.Error(), "wrong password")
}

func TestParseSnapshotID(t *testing.T) {
	id, err := parseSnapshotID([]byte(backupSummary))
	require.NoError(t, err)
	assert.Equal(t, "abc123def", id)

	_, err = parseSnapshotID([]byte(`{"message_type":"status"}`))
	assert.Error(t, err)

	_, err = parseSnapshotID([]byte("plain text output"))
	assert.Error(t, err)
}

func TestClientEnvCarriesRepositoryAndCredentials(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, backupApp())
	f.runner.responses["snapshots"] = cannedResponse{stdout: "[]"}

	_, err := f.coordinator.GetBackupInfo(ctx, "blog")
	require.NoError(t, err)

	env := strings.Join(f.runner.envs[0], " ")
	assert.Contains(t, env, "RESTIC_REPOSITORY=s3:https://s3.example.com/blog-backups")
	assert.Contains(t, env, "RESTIC_PASSWORD=repo-pass")
	assert.Contains(t, env, "AWS_ACCESS_KEY_ID=key")
	assert.Contains(t, env, "AWS_SECRET_ACCESS_KEY=secret")
}
