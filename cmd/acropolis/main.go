package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ocommon "github.com/blinklabs-io/gouroboros/protocol/common"

	"github.com/input-output-hk/acropolis/internal/bus"
	"github.com/input-output-hk/acropolis/internal/common"
	"github.com/input-output-hk/acropolis/internal/config"
	"github.com/input-output-hk/acropolis/internal/consensus"
	"github.com/input-output-hk/acropolis/internal/genesis"
	"github.com/input-output-hk/acropolis/internal/ledger/accounts"
	"github.com/input-output-hk/acropolis/internal/ledger/drep"
	"github.com/input-output-hk/acropolis/internal/ledger/epochs"
	"github.com/input-output-hk/acropolis/internal/ledger/governance"
	"github.com/input-output-hk/acropolis/internal/ledger/params"
	"github.com/input-output-hk/acropolis/internal/ledger/spo"
	"github.com/input-output-hk/acropolis/internal/ledger/stakefilter"
	"github.com/input-output-hk/acropolis/internal/ledger/utxo"
	"github.com/input-output-hk/acropolis/internal/logging"
	"github.com/input-output-hk/acropolis/internal/phase2"
	"github.com/input-output-hk/acropolis/internal/pipeline/blockunpacker"
	"github.com/input-output-hk/acropolis/internal/pipeline/txunpacker"
	"github.com/input-output-hk/acropolis/internal/query"
	"github.com/input-output-hk/acropolis/internal/snapshot"
	"github.com/input-output-hk/acropolis/internal/validation"
	"github.com/input-output-hk/acropolis/internal/version"
)

const programName = "acropolis"

// mainnetEpochLength is the fixed Shelley-onward slots-per-epoch value the
// tx unpacker uses to derive a block's epoch from its slot number, and the
// reward engine uses for its own per-epoch slot accounting.
const mainnetEpochLength = 432000

// voteDomains lists the Phase 1 domains this build actually casts votes
// for. validation.Coordinator times out (NoGo) any configured domain that
// never votes, so this is deliberately narrower than config.Validators
// (which names the full domain set spec.md §4.3 describes): only UTXO and
// script validation are wired end to end here.
var voteDomains = []string{"utxo", "script"}

// validationDeadline bounds how long the coordinator waits for every
// domain's vote on one block before timing the missing ones out.
const validationDeadline = 2 * time.Second

var cmdlineFlags struct {
	configFile string
	version    bool
}

func main() {
	flag.StringVar(&cmdlineFlags.configFile, "config", "", "path to config file to load")
	flag.BoolVar(&cmdlineFlags.version, "version", false, "show version")
	flag.Parse()

	if cmdlineFlags.version {
		fmt.Printf("%s %s\n", programName, version.GetVersionString())
		os.Exit(0)
	}

	cfg, err := config.Load(cmdlineFlags.configFile)
	if err != nil {
		fmt.Printf("Failed to load config: %s\n", err)
		os.Exit(1)
	}

	logging.Configure()
	logger := logging.GetLogger()

	if cfg.Debug.ListenPort > 0 {
		logger.Info("starting debug listener", "address", cfg.Debug.ListenAddress, "port", cfg.Debug.ListenPort)
		go func() {
			addr := fmt.Sprintf("%s:%d", cfg.Debug.ListenAddress, cfg.Debug.ListenPort)
			if err := http.ListenAndServe(addr, nil); err != nil {
				logger.Error("debug listener failed", "error", err)
				os.Exit(1)
			}
		}()
	}

	if err := run(cfg); err != nil {
		logger.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	logger := logging.GetLogger()

	b := bus.New(func(topic string, err error) {
		logger.Error("bus ordering violation, exiting", "topic", topic, "error", err)
		os.Exit(1)
	})

	network := networkID(cfg.Network)

	// Construct every ledger state module up front and subscribe them to
	// the bus, before anything is published: NewModule's Subscribe call
	// happens at construction time precisely so no message can race a
	// module's first receive.
	utxoModule := utxo.NewModule(b)
	spoModule := spo.NewModule(b)
	drepModule := drep.NewModule(b)
	governanceModule := governance.NewModule(b)
	paramsModule := params.NewModule(b, params.Protocol{})
	epochsModule := epochs.NewModule(b)
	filter := stakefilter.New(b)

	rewardParams := accounts.RewardParams{
		D:               0,
		Rho:             0.003,
		Tau:             0.2,
		A0:              0.3,
		NOpt:            500,
		SlotsPerEpoch:   mainnetEpochLength,
		ActiveSlotCoeff: 0.05,
	}
	// Deposit amounts default to Shelley's constants until the startup
	// bootstrap (genesis or snapshot) installs the real protocol
	// parameters and this is synced below.
	accountsModule := accounts.NewModule(b, 0, accounts.DepositParams{
		KeyDeposit:      2_000_000,
		PoolDeposit:     500_000_000,
		DRepDeposit:     500_000_000,
		ProposalDeposit: 100_000_000,
	}, rewardParams, governanceModule.State)

	coordinator := validation.New(b, voteDomains, validationDeadline)

	cpu := common.NewCPUPool(4)
	phase2Module := phase2.NewModule(b, network, utxoModule.State, nil, nil, phase2.Budget{}, cpu, cfg.Phase2Enabled)

	txModule := txunpacker.NewModule(b, network, mainnetEpochLength)
	unpacker := blockunpacker.NewUnpacker(b)

	queryModule := query.NewModule(b, query.Deps{
		Utxo:       utxoModule.State,
		Spo:        spoModule.State,
		Drep:       drepModule.State,
		Accounts:   accountsModule.State,
		Governance: governanceModule.State,
		Epochs:     epochsModule.State,
		Params:     paramsModule.State,
	})

	rootHash, rootNumber, err := bootstrap(cfg, b, utxoModule, accountsModule, paramsModule, spoModule, drepModule, governanceModule)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	// Sync the accounts module's charge amounts to whatever the bootstrap
	// just installed, so certificates applied after this point charge the
	// real deposit amounts rather than the pre-bootstrap defaults above.
	current := paramsModule.State.Current()
	accountsModule.State.SetDepositParams(accounts.DepositParams{
		KeyDeposit:      current.KeyDeposit,
		PoolDeposit:     current.PoolDeposit,
		DRepDeposit:     current.DRepDeposit,
		ProposalDeposit: current.ProposalDeposit,
	})

	tree := consensus.New(b, cfg.SecurityParameterK, rootHash, rootNumber)

	go utxoModule.Run()
	go spoModule.RunCertificates()
	go spoModule.RunEpochBoundary()
	go drepModule.RunCertificates()
	go drepModule.RunEpochBoundary()
	go governanceModule.RunProposals()
	go governanceModule.RunVotes()
	go governanceModule.RunDistributions()
	go governanceModule.RunDRDD()
	go governanceModule.RunEpochBoundary()
	go paramsModule.Run()
	go epochsModule.Run()
	go filter.RunAddressDeltas()
	go filter.RunCertificates()
	go accountsModule.RunWithdrawals()
	go accountsModule.RunStakeDeltas()
	go accountsModule.RunCertificates()
	go accountsModule.RunEnacted()
	go accountsModule.RunRetirements()
	go accountsModule.RunActiveSet()
	go accountsModule.RunEpochBoundary()
	go phase2Module.Run()
	go txModule.Run()
	go unpacker.Run()
	queryModule.Run()

	runValidation(b, coordinator, tree)

	feed := blockunpacker.NewFeed(tree)
	if len(cfg.Topology.Hosts) > 0 {
		address := fmt.Sprintf("%s:%d", cfg.Topology.Hosts[0].Address, cfg.Topology.Hosts[0].Port)
		intersect := []ocommon.Point{{Hash: rootHash[:], Slot: 0}}
		if err := feed.Start(cfg.Network, address, intersect); err != nil {
			return fmt.Errorf("starting chain-sync feed: %w", err)
		}
	} else {
		logger.Info("no topology hosts configured, chain-sync feed not started")
	}

	waitForShutdown(b)
	return nil
}

// bootstrap runs the configured startup path (full genesis replay or
// Mithril snapshot streaming) and returns the chain-fork tree's root
// point: genesis always starts at slot 0, a snapshot's tip epoch is
// whatever the snapshot reports (its exact hash/slot are not carried on
// TopicComplete today, so the tree still roots at the zero hash; the
// live peer feed's own intersect negotiation recovers the real position).
func bootstrap(
	cfg *config.Config,
	b *bus.Bus,
	utxoModule *utxo.Module,
	accountsModule *accounts.Module,
	paramsModule *params.Module,
	spoModule *spo.Module,
	drepModule *drep.Module,
	governanceModule *governance.Module,
) (common.BlockHash, uint64, error) {
	logger := logging.Component("bootstrap")
	switch cfg.Startup {
	case config.StartupGenesis:
		if cfg.GenesisFile == "" {
			return common.BlockHash{}, 0, fmt.Errorf("genesis startup requires a genesis file")
		}
		f, err := os.Open(cfg.GenesisFile)
		if err != nil {
			return common.BlockHash{}, 0, fmt.Errorf("opening genesis file: %w", err)
		}
		defer f.Close()

		tipIn, _ := b.Subscribe(genesis.TopicComplete)
		bootstrapper := genesis.New(b, utxoModule.State, accountsModule.State, paramsModule.State)
		if err := bootstrapper.Run(f); err != nil {
			return common.BlockHash{}, 0, fmt.Errorf("running genesis bootstrap: %w", err)
		}
		tip := (<-tipIn).(genesis.Tip)
		logger.Info("genesis bootstrap complete", "epoch", tip.Epoch, "slot", tip.Slot)
		return common.BlockHash{}, 0, nil

	case config.StartupSnapshot:
		if cfg.SnapshotFile == "" {
			return common.BlockHash{}, 0, fmt.Errorf("snapshot startup requires a snapshot file")
		}
		f, err := os.Open(cfg.SnapshotFile)
		if err != nil {
			return common.BlockHash{}, 0, fmt.Errorf("opening snapshot file: %w", err)
		}
		defer f.Close()

		tipIn, _ := b.Subscribe(snapshot.TopicComplete)
		bootstrapper := snapshot.New(b, utxoModule.State, spoModule.State, drepModule.State, accountsModule.State, governanceModule.State)
		if err := bootstrapper.Run(f); err != nil {
			return common.BlockHash{}, 0, fmt.Errorf("running snapshot bootstrap: %w", err)
		}
		tip := (<-tipIn).(snapshot.Tip)
		logger.Info("snapshot bootstrap complete", "epoch", tip.Epoch, "slot", tip.Slot)
		return tip.Hash, 0, nil

	default:
		return common.BlockHash{}, 0, fmt.Errorf("unknown startup mode: %s", cfg.Startup)
	}
}

// runValidation bridges bus messages to validation.Coordinator's plain
// method calls: Coordinator itself is not a bus subscriber, so the
// process wiring is responsible for turning every proposed block into a
// Propose call and every cast vote into a Vote call, and for feeding the
// resulting verdict back into the fork tree.
func runValidation(b *bus.Bus, coordinator *validation.Coordinator, tree *consensus.Tree) {
	proposedIn, _ := b.Subscribe(consensus.TopicBlockProposed)
	go func() {
		for msg := range proposedIn {
			ev, ok := msg.(consensus.BlockProposedEvent)
			if !ok {
				continue
			}
			coordinator.Propose(context.Background(), ev.Hash)
		}
	}()

	for _, domain := range voteDomains {
		in, _ := b.Subscribe(fmt.Sprintf("validation.%s", domain))
		go func(in <-chan any) {
			for msg := range in {
				v, ok := msg.(validation.Vote)
				if !ok {
					continue
				}
				coordinator.Vote(v)
			}
		}(in)
	}

	verdictIn, _ := b.Subscribe(validation.TopicVerdict)
	go func() {
		logger := logging.Component("validation")
		for msg := range verdictIn {
			v, ok := msg.(validation.Verdict)
			if !ok {
				continue
			}
			if v.Go {
				if err := tree.MarkValidated(v.Block); err != nil {
					logger.Warn("mark validated failed", "block", v.Block.String(), "error", err)
				}
				continue
			}
			tree.MarkRejected(v.Block, fmt.Errorf("validation: %d domain(s) voted NoGo", len(v.NoGos)))
		}
	}()
}

func networkID(name string) common.NetworkId {
	if name == "mainnet" {
		return common.NetworkMainnet
	}
	return common.NetworkTestnet
}

func waitForShutdown(b *bus.Bus) {
	logger := logging.GetLogger()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.Shutdown(ctx); err != nil {
		logger.Warn("bus shutdown did not complete cleanly", "error", err)
	}
}
