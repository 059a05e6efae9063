package sandbox

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// docker run reserves 125 for daemon / CLI failures.
const dockerErrorExitCode = 125

// DockerRunner executes the harness inside a throwaway container: no network,
// memory and cpu caps, read-only root with a small tmpfs scratch, nobody
// credentials, and the script directory bind-mounted read-only.
type DockerRunner struct {
	image  string
	limits Limits
	logger *zap.Logger
}

// NewDockerRunner creates a container-backed runner using the docker CLI.
func NewDockerRunner(image string, limits Limits, logger *zap.Logger) *DockerRunner {
	return &DockerRunner{
		image:  image,
		limits: limits,
		logger: logger,
	}
}

// Run implements Runner.
func (r *DockerRunner) Run(ctx context.Context, scriptPath string) (Output, error) {
	ctx, cancel := context.WithTimeout(ctx, r.limits.WallTimeout)
	defer cancel()

	secs := execSeconds(r.limits.ExecTimeout)
	name := "judged-" + randomSuffix()
	mem := strconv.Itoa(r.limits.MemoryMB) + "m"
	args := []string{
		"run", "--rm", "--name", name,
		"--network", "none",
		"--memory", mem,
		"--memory-swap", mem,
		"--cpus", "1",
		"--pids-limit", "64",
		"--read-only",
		"--tmpfs", "/tmp:rw,noexec,nosuid,size=16m",
		"--user", "65534:65534",
		"--security-opt", "no-new-privileges",
		"--cap-drop", "ALL",
		"-v", filepath.Dir(scriptPath) + ":/judged:ro",
		"-e", "PYTHONDONTWRITEBYTECODE=1",
		"-e", "PYTHONHASHSEED=0",
		r.image,
		"timeout", strconv.Itoa(secs),
		"python3", "-I", "-u", "/judged/" + filepath.Base(scriptPath),
	}

	cmd := exec.CommandContext(ctx, "docker", args...)
	cmd.Env = dockerCLIEnv()

	stdout := newLimitedBuffer(r.limits.OutputLimit)
	stderr := newLimitedBuffer(r.limits.OutputLimit)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	setProcessGroup(cmd)
	cmd.Cancel = func() error {
		// --rm only fires when the CLI exits cleanly; take the container
		// down first so the outer timeout never leaks one.
		kill := exec.Command("docker", "kill", name)
		kill.Env = dockerCLIEnv()
		if err := kill.Run(); err != nil {
			r.logger.Warn("docker kill failed", zap.String("container", name), zap.Error(err))
		}
		return killTree(cmd)
	}
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	d := time.Since(start)

	exitCode := 0
	if err != nil {
		var ee *exec.ExitError
		if !errors.As(err, &ee) {
			return Output{}, fmt.Errorf("spawn docker: %w", err)
		}
		exitCode = ee.ExitCode()
	}
	if exitCode == dockerErrorExitCode {
		return Output{}, fmt.Errorf("docker run failed: %s", stderr.Bytes())
	}

	out := Output{
		ExitCode: exitCode,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		TimedOut: timedOut(exitCode, ctx.Err()),
		Duration: d,
	}
	r.logger.Debug("sandbox container finished",
		zap.String("container", name),
		zap.Int("exitCode", out.ExitCode),
		zap.Bool("timedOut", out.TimedOut),
		zap.Duration("duration", out.Duration))
	return out, nil
}

// dockerCLIEnv passes through only what the docker client itself needs.
func dockerCLIEnv() []string {
	env := []string{"PATH=/usr/local/bin:/usr/bin:/bin"}
	for _, key := range []string{"HOME", "DOCKER_HOST", "DOCKER_CONFIG", "DOCKER_CERT_PATH", "DOCKER_TLS_VERIFY"} {
		if v, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+v)
		}
	}
	return env
}

func randomSuffix() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return hex.EncodeToString(b)
}
