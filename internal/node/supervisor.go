// Package node brings client instances up and down around a benchmark
// iteration: image selection, data-directory wiring, readiness polling,
// log capture and teardown.
package node

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gasbench/benchmatrix/internal/config"
	"github.com/gasbench/benchmatrix/internal/output"
)

// CommandRunner executes one lifecycle command. It exists so supervisor
// logic can be tested without docker or shell scripts.
type CommandRunner interface {
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// NewCommandRunner returns the system command runner.
func NewCommandRunner() CommandRunner { return execRunner{} }

// NetworkConfig carries the chain parameters handed to the lifecycle
// script.
type NetworkConfig struct {
	// Network names a public chain the snapshot was seeded from.
	Network string

	// GenesisPath points at a genesis or chainspec artifact for
	// synthetic chains. Takes effect when set.
	GenesisPath string

	// JWTSecretPath authenticates the measurement tool against the
	// client's engine endpoint.
	JWTSecretPath string
}

// Instance is one running client under test. Its data directory is owned
// exclusively by this instance for the duration of the iteration.
type Instance struct {
	Client        string
	DataDir       string
	VolumeToken   string
	Network       string
	ReadyEndpoint string

	running bool
}

// Running reports whether the instance has been launched and not yet
// torn down.
func (i *Instance) Running() bool { return i != nil && i.running }

// DefaultContainerName is the container the lifecycle scripts start.
const DefaultContainerName = "gas-execution-client"

// Supervisor launches, restarts and tears down client instances through
// per-client lifecycle scripts (scripts/<client>/run.sh).
type Supervisor struct {
	ScriptsRoot   string
	Images        config.Images
	LogsDir       string
	ReadyEndpoint string
	ReadyTimeout  time.Duration
	PollInterval  time.Duration
	ContainerName string

	Runner  CommandRunner
	HTTP    *http.Client
	Console *output.Console
}

// NewSupervisor creates a supervisor with the conventional defaults.
func NewSupervisor(scriptsRoot string, images config.Images, console *output.Console) *Supervisor {
	return &Supervisor{
		ScriptsRoot:   scriptsRoot,
		Images:        images,
		LogsDir:       "logs",
		ReadyEndpoint: "http://localhost:8545",
		ReadyTimeout:  3 * time.Minute,
		PollInterval:  2 * time.Second,
		ContainerName: DefaultContainerName,
		Runner:        NewCommandRunner(),
		HTTP:          &http.Client{Timeout: 5 * time.Second},
		Console:       console,
	}
}

func (s *Supervisor) scriptDir(client string) string {
	return filepath.Join(s.ScriptsRoot, client)
}

// Launch starts a client with a uniquely named data volume and polls its
// liveness endpoint until ready. On a ready-timeout the instance is
// returned alongside the error so the caller can still tear it down.
func (s *Supervisor) Launch(ctx context.Context, client, dataDir string, net NetworkConfig) (*Instance, error) {
	image, ok := s.Images[client]
	if !ok {
		return nil, fmt.Errorf("client %s has no configured image", client)
	}

	inst := &Instance{
		Client:        client,
		DataDir:       dataDir,
		VolumeToken:   newVolumeToken(client),
		Network:       net.Network,
		ReadyEndpoint: s.ReadyEndpoint,
	}

	if err := s.writeEnvFile(client, image, inst, net); err != nil {
		return nil, err
	}

	dir := s.scriptDir(client)
	s.debugf("launching %s (image %s, volume %s)", client, image, inst.VolumeToken)
	if out, err := s.Runner.Run(ctx, dir, filepath.Join(dir, "run.sh")); err != nil {
		return nil, fmt.Errorf("launch %s: %w: %s", client, err, strings.TrimSpace(string(out)))
	}
	inst.running = true

	if err := s.waitReady(ctx); err != nil {
		return inst, fmt.Errorf("client %s never became ready: %w", client, err)
	}
	s.debugf("%s is ready at %s", client, s.ReadyEndpoint)
	return inst, nil
}

// writeEnvFile renders the .env consumed by the lifecycle script.
// Nethermind and besu take a chainspec, everything else a genesis file;
// besu additionally needs its RPC module list widened.
func (s *Supervisor) writeEnvFile(client, image string, inst *Instance, net NetworkConfig) error {
	var b strings.Builder
	fmt.Fprintf(&b, "EC_IMAGE_VERSION=%s\n", image)
	fmt.Fprintf(&b, "EC_DATA_DIR=%s\n", inst.DataDir)
	fmt.Fprintf(&b, "EC_VOLUME_TOKEN=%s\n", inst.VolumeToken)
	if net.JWTSecretPath != "" {
		fmt.Fprintf(&b, "EC_JWT_SECRET_PATH=%s\n", net.JWTSecretPath)
	}
	if net.Network != "" {
		fmt.Fprintf(&b, "EC_NETWORK=%s\n", net.Network)
	}
	if net.GenesisPath != "" {
		switch client {
		case "nethermind", "besu":
			fmt.Fprintf(&b, "CHAINSPEC_PATH=%s\n", net.GenesisPath)
		default:
			fmt.Fprintf(&b, "GENESIS_PATH=%s\n", net.GenesisPath)
		}
	}
	if client == "besu" {
		b.WriteString("EC_ENABLED_MODULES=ETH,NET,CLIQUE,DEBUG,MINER,NET,PERM,ADMIN,EEA,TXPOOL,PRIV,WEB3\n")
	}

	path := filepath.Join(s.scriptDir(client), ".env")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale env file %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("write env file %s: %w", path, err)
	}
	return nil
}

// Restart restarts the client before a scenario and re-polls readiness.
// A timeout here fails the single scenario, not the whole client.
func (s *Supervisor) Restart(ctx context.Context, inst *Instance) error {
	dir := s.scriptDir(inst.Client)
	s.debugf("restarting %s", inst.Client)
	if out, err := s.Runner.Run(ctx, dir, "docker", "compose", "restart"); err != nil {
		return fmt.Errorf("restart %s: %w: %s", inst.Client, err, strings.TrimSpace(string(out)))
	}
	if err := s.waitReady(ctx); err != nil {
		return fmt.Errorf("client %s not ready after restart: %w", inst.Client, err)
	}
	return nil
}

// Teardown captures the instance's logs, stops and removes it, and
// deletes the data directory unless it is snapshot-isolated. Every step
// is best-effort: a failure in one never prevents the others.
func (s *Supervisor) Teardown(ctx context.Context, inst *Instance, keepData bool) {
	if inst == nil || !inst.running {
		return
	}
	inst.running = false

	dir := s.scriptDir(inst.Client)

	if logs, err := s.Runner.Run(ctx, dir, "docker", "logs", s.ContainerName); err != nil {
		s.warnf("capture logs for %s: %v", inst.Client, err)
	} else if err := s.saveLogs(inst.Client, logs); err != nil {
		s.warnf("save logs for %s: %v", inst.Client, err)
	}

	if out, err := s.Runner.Run(ctx, dir, "docker", "compose", "down"); err != nil {
		s.warnf("stop %s: %v: %s", inst.Client, err, strings.TrimSpace(string(out)))
	}

	if !keepData && inst.DataDir != "" {
		if err := os.RemoveAll(inst.DataDir); err != nil {
			s.warnf("remove data dir %s: %v", inst.DataDir, err)
		}
	}
}

func (s *Supervisor) saveLogs(client string, logs []byte) error {
	if err := os.MkdirAll(s.LogsDir, 0755); err != nil {
		return err
	}
	name := fmt.Sprintf("%s_%s.log", client, time.Now().UTC().Format("20060102T150405Z"))
	return os.WriteFile(filepath.Join(s.LogsDir, name), logs, 0644)
}

func (s *Supervisor) warnf(format string, args ...interface{}) {
	if s.Console != nil {
		s.Console.Warnf(format, args...)
	}
}

func (s *Supervisor) debugf(format string, args ...interface{}) {
	if s.Console != nil {
		s.Console.Debugf(format, args...)
	}
}

// newVolumeToken produces a launch-unique volume name so overlapping
// invocations never collide on docker volumes.
func newVolumeToken(client string) string {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%d", client, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", client, time.Now().UnixNano(), hex.EncodeToString(buf))
}
