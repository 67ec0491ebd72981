// Package config loads the bridge's deployment configuration from an INI
// file, the way the teacher's EDS-adjacent config path used the same
// library for a different ini document shape.
package config

import (
	"fmt"

	"gopkg.in/ini.v1"
)

// Config is the full set of deployment knobs spec.md §6 and its
// expansion name.
type Config struct {
	// MeasureWaitSeconds is the fixed wait the `M` response advertises
	// and the SRQ-window length derives from (spec.md: integer seconds,
	// bridge-wide).
	MeasureWaitSeconds uint8
	// RingSize is the per-probe sample history depth.
	RingSize int
	// MaxNodes is read from the file but is not passed to the wireless
	// registry, which is always bounded by registry.MaxNodes.
	MaxNodes int
	// DiscoveryWindowMs bounds how long node discovery waits for
	// responses before giving up.
	DiscoveryWindowMs int
	// SentinelFullScale and SentinelZero are the two readings that mark a
	// sample as invalid rather than a real measurement (DESIGN.md Open
	// Question: sample validation policy).
	SentinelFullScale uint16
	SentinelZero      uint16
	// Identity is the `aI!` identity string.
	Identity string
	// Addresses is the fixed set of SDI-12 addresses this bridge answers
	// for.
	Addresses []byte
}

// Default returns the constants spec.md §6 names when no configuration
// file is supplied.
func Default() Config {
	return Config{
		MeasureWaitSeconds: 2,
		RingSize:           16,
		MaxNodes:           10,
		DiscoveryWindowMs:  1000,
		SentinelFullScale:  0xFFFF,
		SentinelZero:       0x0000,
		Identity:           "USGSSM000001",
		Addresses:          []byte{'0'},
	}
}

// Load reads an INI file shaped per SPEC_FULL.md §4.7 ([bridge] scalar
// settings, [addresses] one key per node whose value is its address
// character) over top of Default(), so a file only needs to override what
// it wants to change. Each node needs its own key name: a key repeated in
// [addresses] keeps only its last value.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := ini.Load(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: load %s: %w", path, err)
	}

	bridge := f.Section("bridge")
	cfg.MeasureWaitSeconds = uint8(bridge.Key("measure_wait").MustInt(int(cfg.MeasureWaitSeconds)))
	cfg.RingSize = bridge.Key("ring_size").MustInt(cfg.RingSize)
	cfg.MaxNodes = bridge.Key("max_nodes").MustInt(cfg.MaxNodes)
	cfg.DiscoveryWindowMs = bridge.Key("discovery_window_ms").MustInt(cfg.DiscoveryWindowMs)
	cfg.SentinelFullScale = uint16(bridge.Key("sentinel_full_scale").MustUint(uint(cfg.SentinelFullScale)))
	cfg.SentinelZero = uint16(bridge.Key("sentinel_zero").MustUint(uint(cfg.SentinelZero)))
	if id := bridge.Key("identity").String(); id != "" {
		cfg.Identity = id
	}

	if addrSection, err := f.GetSection("addresses"); err == nil {
		keys := addrSection.Keys()
		if len(keys) > 0 {
			addrs := make([]byte, 0, len(keys))
			for _, k := range keys {
				v := k.String()
				if len(v) != 1 {
					return Config{}, fmt.Errorf("config: address %q must be a single character", v)
				}
				addrs = append(addrs, v[0])
			}
			cfg.Addresses = addrs
		}
	}

	return cfg, nil
}
