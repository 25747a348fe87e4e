// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"

	ouroboros "github.com/blinklabs-io/gouroboros"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// StartupMode selects how the core bootstraps: from genesis (full replay)
// or from a Mithril snapshot (streamed CBOR bootstrap), per spec.md §6.
type StartupMode string

const (
	StartupGenesis  StartupMode = "genesis"
	StartupSnapshot StartupMode = "snapshot"
)

// DefaultSecurityParameterK is Cardano mainnet's k (spec.md §6).
const DefaultSecurityParameterK = 2160

type Config struct {
	Startup             StartupMode   `yaml:"startup"            envconfig:"STARTUP"`
	Network             string        `yaml:"network"            envconfig:"NETWORK"`
	NetworkMagic        uint32
	SecurityParameterK  uint64        `yaml:"securityParameterK" envconfig:"SECURITY_PARAMETER_K"`
	Phase2Enabled       bool          `yaml:"phase2Enabled"      envconfig:"PHASE2_ENABLED"`
	Validators          []string      `yaml:"validators"         envconfig:"VALIDATORS"`
	Logging             LoggingConfig `yaml:"logging"`
	Debug               DebugConfig   `yaml:"debug"`
	Topology            TopologyConfig `yaml:"topology"`
	KV                  KVConfig      `yaml:"kv"`
	Peers               PeersConfig   `yaml:"peers"`
	Mithril             MithrilConfig `yaml:"mithril"`
	ListenAddress       string        `yaml:"listenAddress"      envconfig:"LISTEN_ADDRESS"`
	ListenPort          uint          `yaml:"port"                envconfig:"PORT"`

	// GenesisFile is the Shelley genesis JSON path, read when Startup is
	// StartupGenesis.
	GenesisFile string `yaml:"genesisFile" envconfig:"GENESIS_FILE"`
	// SnapshotFile is the path to an already-downloaded Mithril snapshot's
	// EpochState CBOR blob, read when Startup is StartupSnapshot; fetching
	// it from the aggregator is the external Mithril client's job, per
	// internal/snapshot's doc comment.
	SnapshotFile string `yaml:"snapshotFile" envconfig:"SNAPSHOT_FILE"`
}

type LoggingConfig struct {
	Level string `yaml:"level" envconfig:"LOGGING_LEVEL"`
}

type DebugConfig struct {
	ListenAddress string `yaml:"address" envconfig:"DEBUG_ADDRESS"`
	ListenPort    uint   `yaml:"port"    envconfig:"DEBUG_PORT"`
}

type TopologyConfig struct {
	ConfigFile string               `yaml:"configFile" envconfig:"CARDANO_TOPOLOGY"`
	Hosts      []TopologyConfigHost `yaml:"hosts"`
}

type TopologyConfigHost struct {
	Address string `yaml:"address"`
	Port    uint   `yaml:"port"`
}

// KVConfig names the on-disk KV store root (spec.md §6 "kv_path").
type KVConfig struct {
	Path string `yaml:"path" envconfig:"KV_PATH"`
}

// PeersConfig is the externally-provided peer list (spec.md §6
// "peer_addresses"); the N2N client that dials them is an external
// collaborator, per spec.md §1.
type PeersConfig struct {
	Addresses []string `yaml:"addresses" envconfig:"PEER_ADDRESSES"`
}

// MithrilConfig configures the external Mithril client collaborator that
// supplies the snapshot bootstrapper's input stream.
type MithrilConfig struct {
	AggregatorURL          string `yaml:"aggregatorUrl"          envconfig:"MITHRIL_AGGREGATOR_URL"`
	GenesisVerificationKey string `yaml:"genesisVerificationKey" envconfig:"MITHRIL_GENESIS_VKEY"`
	SnapshotDigest         string `yaml:"snapshotDigest"         envconfig:"MITHRIL_SNAPSHOT_DIGEST"`
}

// Singleton config instance with default values, mirroring the teacher's
// globalConfig pattern.
var globalConfig = &Config{
	Startup:            StartupSnapshot,
	Network:            "mainnet",
	SecurityParameterK: DefaultSecurityParameterK,
	Phase2Enabled:      false,
	Validators: []string{
		"utxo", "spo", "accounts", "governance", "kes", "vrf", "script",
	},
	ListenPort: 3000,
	Logging: LoggingConfig{
		Level: "info",
	},
	Debug: DebugConfig{
		ListenAddress: "localhost",
		ListenPort:    0,
	},
	KV: KVConfig{
		Path: "./.acropolis",
	},
}

func Load(configFile string) (*Config, error) {
	// Load config file as YAML if provided
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %s", err)
		}
		err = yaml.Unmarshal(buf, globalConfig)
		if err != nil {
			return nil, fmt.Errorf("error parsing config file: %s", err)
		}
	}
	// Load config values from environment variables
	// We use "dummy" as the app name here to (mostly) prevent picking up env
	// vars that we hadn't explicitly specified in annotations above
	err := envconfig.Process("dummy", globalConfig)
	if err != nil {
		return nil, fmt.Errorf("error processing environment: %s", err)
	}
	// Load topology config file, if specified
	if globalConfig.Topology.ConfigFile != "" {
		if err := globalConfig.loadTopologyConfig(); err != nil {
			return nil, err
		}
	}
	// Populate network magic from network name
	network := ouroboros.NetworkByName(globalConfig.Network)
	if network == ouroboros.NetworkInvalid {
		return nil, fmt.Errorf("unknown network name: %s", globalConfig.Network)
	}
	globalConfig.NetworkMagic = network.NetworkMagic
	if globalConfig.SecurityParameterK == 0 {
		globalConfig.SecurityParameterK = DefaultSecurityParameterK
	}
	if globalConfig.Startup != StartupGenesis && globalConfig.Startup != StartupSnapshot {
		return nil, fmt.Errorf("unknown startup mode: %s", globalConfig.Startup)
	}
	return globalConfig, nil
}

func (cfg *Config) loadTopologyConfig() error {
	topology, err := ouroboros.NewTopologyConfigFromFile(cfg.Topology.ConfigFile)
	if err != nil {
		return err
	}
	// Legacy topology config
	for _, host := range topology.Producers {
		cfg.Topology.Hosts = append(
			cfg.Topology.Hosts,
			TopologyConfigHost{
				Address: host.Address,
				Port:    uint(host.Port),
			},
		)
	}
	// P2P local roots
	for _, localRoot := range topology.LocalRoots {
		for _, host := range localRoot.AccessPoints {
			cfg.Topology.Hosts = append(
				cfg.Topology.Hosts,
				TopologyConfigHost{
					Address: host.Address,
					Port:    uint(host.Port),
				},
			)
		}
	}
	// P2P public roots
	for _, publicRoot := range topology.PublicRoots {
		for _, host := range publicRoot.AccessPoints {
			cfg.Topology.Hosts = append(
				cfg.Topology.Hosts,
				TopologyConfigHost{
					Address: host.Address,
					Port:    uint(host.Port),
				},
			)
		}
	}
	return nil
}

// Return global config instance
func GetConfig() *Config {
	return globalConfig
}
