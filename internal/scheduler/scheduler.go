// Package scheduler drives the full benchmark matrix: for every run and
// client it gates on the execution ledger, prepares a data directory,
// launches the node, walks the scenario catalog with the warmup
// protocol, tears everything down and finally cross-validates the
// captured responses.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gasbench/benchmatrix/internal/catalog"
	"github.com/gasbench/benchmatrix/internal/instrument"
	"github.com/gasbench/benchmatrix/internal/ledger"
	"github.com/gasbench/benchmatrix/internal/measure"
	"github.com/gasbench/benchmatrix/internal/node"
	"github.com/gasbench/benchmatrix/internal/output"
	"github.com/gasbench/benchmatrix/internal/validate"
)

// NodeSupervisor is the slice of the node lifecycle the scheduler
// drives.
type NodeSupervisor interface {
	Launch(ctx context.Context, client, dataDir string, net node.NetworkConfig) (*node.Instance, error)
	Restart(ctx context.Context, inst *node.Instance) error
	Teardown(ctx context.Context, inst *node.Instance, keepData bool)
}

// SnapshotManager provides copy-on-write data directories. Nil means
// clients run on plain directories.
type SnapshotManager interface {
	Prepare(client, network string) (string, error)
	Cleanup(client string) error
	SweepStale() error
}

// Measurer executes one measurement-tool invocation.
type Measurer interface {
	Run(ctx context.Context, in measure.Invocation) error
}

// Options are the run-shaping knobs, mapped one-to-one from the CLI.
type Options struct {
	Clients []string
	Runs    int

	// Filters are case-insensitive substring includes over scenario
	// names; empty means everything.
	Filters []string

	Network string

	// WarmupFile is replayed once per client per run before any
	// scenario.
	WarmupFile string

	// WarmupDir holds per-opcode warmup payloads named by normalized
	// scenario name.
	WarmupDir string

	// WarmupCount is how many times the opcode warmup is replayed;
	// zero disables opcode warmups.
	WarmupCount int

	RestartEachScenario bool
	DropCache           bool

	// LedgerGated lists the clients throttled to one run per UTC day.
	LedgerGated []string

	// DataRoot hosts plain per-client data dirs when no snapshot
	// manager is configured.
	DataRoot string

	// JWTSecretPath is handed to the node's environment.
	JWTSecretPath string
}

// Scheduler owns one full orchestration pass.
type Scheduler struct {
	Opts      Options
	Entries   []catalog.Entry
	Ledger    *ledger.Ledger
	Snapshots SnapshotManager
	Nodes     NodeSupervisor
	Measure   Measurer
	Validator *validate.Validator
	Timer     *instrument.Timer
	Console   *output.Console

	// Runner executes the page-cache drop commands.
	Runner node.CommandRunner

	// Clock is injectable for ledger-gating tests.
	Clock func() time.Time

	mu      sync.Mutex
	current *node.Instance

	warmups *warmupTracker
}

// New wires a scheduler with defaults for the injectable pieces.
func New(opts Options, entries []catalog.Entry, console *output.Console) *Scheduler {
	return &Scheduler{
		Opts:    opts,
		Entries: entries,
		Console: console,
		Timer:   instrument.NewTimer(console),
		Runner:  node.NewCommandRunner(),
		Clock:   time.Now,
		warmups: newWarmupTracker(),
	}
}

// Run executes the whole matrix and returns the validation report.
// Scenario-level failures are logged and skipped; only a run that
// cannot produce anything comparable returns an error.
func (s *Scheduler) Run(ctx context.Context) (*validate.Report, error) {
	if s.warmups == nil {
		s.warmups = newWarmupTracker()
	}
	defer s.CleanupNow(context.Background())

	genesis, err := s.genesisRef()
	if err != nil {
		return nil, err
	}

	// Overlays left behind by a crashed prior invocation must be gone
	// before this run mounts anything of its own.
	if s.Snapshots != nil {
		if err := s.Snapshots.SweepStale(); err != nil {
			s.warnf("sweep stale overlays before run: %v", err)
		}
	}

	// The ledger gate is consulted once per client per invocation: a
	// gated client that is due completes every requested run even
	// though its entry is recorded after the first.
	skipClient := make(map[string]bool, len(s.Opts.LedgerGated))
	if s.Ledger != nil {
		for _, c := range s.Opts.LedgerGated {
			skipClient[c] = !s.Ledger.Due(c, s.Clock())
		}
	}

	var ranClients []string
	ranSeen := make(map[string]bool)
	var scenarios []string
	scenarioSeen := make(map[string]bool)

	for run := 1; run <= s.Opts.Runs; run++ {
		for _, client := range s.Opts.Clients {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if skipClient[client] {
				s.infof("skipping %s: already executed today per ledger", client)
				continue
			}

			if err := s.runClient(ctx, client, run, genesis, &scenarios, scenarioSeen); err != nil {
				s.errorf("client %s run %d: %v", client, run, err)
				continue
			}
			if !ranSeen[client] {
				ranSeen[client] = true
				ranClients = append(ranClients, client)
			}
			if s.Ledger != nil {
				if err := s.Ledger.Record(client, s.Clock()); err != nil {
					s.warnf("record ledger entry for %s: %v", client, err)
				}
			}
		}
	}

	if s.Timer != nil {
		if summary := s.Timer.Summary(); summary != "" {
			s.infof("timing summary:\n%s", summary)
		}
	}

	if s.Validator == nil {
		return &validate.Report{Pass: true, Skipped: true}, nil
	}
	report, err := s.Validator.Compare(ranClients, s.Opts.Runs, scenarios)
	if err != nil {
		return nil, fmt.Errorf("cross-client validation: %w", err)
	}
	report.Summarize(s.Console)
	return report, nil
}

// runClient takes one client through its lifecycle for one run.
func (s *Scheduler) runClient(ctx context.Context, client string, run int, genesis string, scenarios *[]string, seen map[string]bool) error {
	cs := newClientState(client)
	if err := cs.to(StateLaunching); err != nil {
		return err
	}
	s.warmups.reset(client)

	dataDir, snapshotted, err := s.prepareData(client)
	if err != nil {
		cs.to(StateTearingDown)
		cs.to(StateFailed)
		return fmt.Errorf("prepare data dir: %w", err)
	}

	stopLaunch := s.span("launch")
	inst, err := s.Nodes.Launch(ctx, client, dataDir, node.NetworkConfig{
		Network:       s.Opts.Network,
		GenesisPath:   genesis,
		JWTSecretPath: s.Opts.JWTSecretPath,
	})
	stopLaunch()
	s.setCurrent(inst)
	if err != nil {
		cs.to(StateTearingDown)
		s.release(ctx, client, inst, snapshotted)
		cs.to(StateFailed)
		return fmt.Errorf("launch: %w", err)
	}
	if err := cs.to(StateReady); err != nil {
		return err
	}

	if s.Opts.WarmupFile != "" && s.hasMeasuredWork() {
		stop := s.span("warmup.run")
		warmErr := s.Measure.Run(ctx, measure.Invocation{
			Client: client, Run: run, Scenario: "warmup",
			Input: s.Opts.WarmupFile, Kind: measure.KindWarmup,
		})
		stop()
		if warmErr != nil {
			s.warnf("whole-run warmup for %s: %v", client, warmErr)
		}
	}

	if err := cs.to(StateRunningScenarios); err != nil {
		return err
	}
	s.runScenarios(ctx, cs, run, scenarios, seen)

	if err := cs.to(StateTearingDown); err != nil {
		return err
	}
	s.release(ctx, client, inst, snapshotted)
	return cs.to(StateDone)
}

// runScenarios walks the catalog for one client session.
func (s *Scheduler) runScenarios(ctx context.Context, cs *clientState, run int, scenarios *[]string, seen map[string]bool) {
	for _, entry := range s.Entries {
		if ctx.Err() != nil {
			return
		}
		name := entry.Name()
		if !catalog.Matches(name, s.Opts.Filters) {
			continue
		}

		if !entry.Measured {
			stop := s.span("scenario.prep")
			err := s.Measure.Run(ctx, measure.Invocation{
				Client: cs.client, Run: run, Scenario: name,
				Input: entry.Path, Kind: measure.KindPrep,
			})
			stop()
			if err != nil {
				s.errorf("preparation %s for %s: %v", name, cs.client, err)
			}
			continue
		}

		if s.Opts.WarmupCount > 0 && s.warmups.claim(cs.client, name) {
			input := resolveWarmupInput(s.Opts.WarmupDir, entry.Path)
			stop := s.span("warmup.opcode")
			for i := 0; i < s.Opts.WarmupCount; i++ {
				if err := s.Measure.Run(ctx, measure.Invocation{
					Client: cs.client, Run: run, Scenario: name,
					Input: input, Kind: measure.KindWarmup,
				}); err != nil {
					s.warnf("opcode warmup %s for %s: %v", name, cs.client, err)
					break
				}
			}
			stop()
		}

		if s.Opts.RestartEachScenario {
			if err := s.Nodes.Restart(ctx, s.currentInstance()); err != nil {
				s.errorf("restart before %s for %s, skipping scenario: %v", name, cs.client, err)
				continue
			}
		}
		if s.Opts.DropCache {
			s.dropPageCache(ctx)
		}

		stop := s.span("scenario.measure")
		err := s.Measure.Run(ctx, measure.Invocation{
			Client: cs.client, Run: run, Scenario: name,
			Input: entry.Path, Kind: measure.KindResults,
		})
		stop()
		if err != nil {
			s.errorf("scenario %s on %s: %v", name, cs.client, err)
			continue
		}
		if !seen[name] {
			seen[name] = true
			*scenarios = append(*scenarios, name)
		}
	}
}

// prepareData resolves the client's data directory: a snapshot overlay
// when configured, a plain per-client directory otherwise.
func (s *Scheduler) prepareData(client string) (dir string, snapshotted bool, err error) {
	if s.Snapshots != nil {
		merged, err := s.Snapshots.Prepare(client, s.Opts.Network)
		return merged, true, err
	}

	root := s.Opts.DataRoot
	if root == "" {
		root = "execution-data"
	}
	dir = filepath.Join(root, client)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", false, err
	}
	return dir, false, nil
}

// release tears down the instance and returns the snapshot overlay.
func (s *Scheduler) release(ctx context.Context, client string, inst *node.Instance, snapshotted bool) {
	stop := s.span("teardown")
	defer stop()

	s.Nodes.Teardown(ctx, inst, snapshotted)
	s.setCurrent(nil)
	if snapshotted && s.Snapshots != nil {
		if err := s.Snapshots.Cleanup(client); err != nil {
			s.warnf("release snapshot for %s: %v", client, err)
		}
	}
}

// genesisRef returns the genesis artifact shared by the discovered
// roots. One node launch serves a whole client session, so roots that
// reference different genesis artifacts cannot run in one invocation.
func (s *Scheduler) genesisRef() (string, error) {
	genesis := ""
	for _, e := range s.Entries {
		switch {
		case e.Genesis == "" || e.Genesis == genesis:
		case genesis == "":
			genesis = e.Genesis
		default:
			return "", fmt.Errorf("test roots reference different genesis artifacts (%s vs %s); run them as separate invocations", genesis, e.Genesis)
		}
	}
	return genesis, nil
}

// hasMeasuredWork reports whether any measured scenario survives the
// include filter. Warmups only make sense when something will actually
// be measured.
func (s *Scheduler) hasMeasuredWork() bool {
	for _, e := range s.Entries {
		if e.Measured && catalog.Matches(e.Name(), s.Opts.Filters) {
			return true
		}
	}
	return false
}

func (s *Scheduler) setCurrent(inst *node.Instance) {
	s.mu.Lock()
	s.current = inst
	s.mu.Unlock()
}

func (s *Scheduler) currentInstance() *node.Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Scheduler) span(label string) func() {
	if s.Timer == nil {
		return func() {}
	}
	return s.Timer.Start(label)
}

func (s *Scheduler) infof(format string, args ...interface{}) {
	if s.Console != nil {
		s.Console.Infof(format, args...)
	}
}

func (s *Scheduler) warnf(format string, args ...interface{}) {
	if s.Console != nil {
		s.Console.Warnf(format, args...)
	}
}

func (s *Scheduler) errorf(format string, args ...interface{}) {
	if s.Console != nil {
		s.Console.Errorf(format, args...)
	}
}
