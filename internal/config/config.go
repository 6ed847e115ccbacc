// Package config loads the collector's key-value configuration file
// (spec.md §6). The format is bespoke (comma-or-newline delimited
// "key: value" pairs) rather than an established format like YAML or TOML,
// so this package parses it directly with strings/strconv — pulling in a
// structured-config library for one six-key, non-nested file would add a
// dependency surface the format doesn't need.
package config

import (
	"os"
	"strconv"
	"strings"
)

// ConnType selects where the row store lives.
type ConnType int

const (
	ConnFile ConnType = iota
	ConnMemory
)

// SortBy selects the reader's ordering of top_flows.
type SortBy int

const (
	SortBytes SortBy = iota
	SortPackets
)

// Config is the materialised, defaulted configuration (spec.md §6).
type Config struct {
	ConnType    ConnType
	FlowsToShow int
	SortBy      SortBy
	Address     string
	Port        int
	UnicastOnly bool
}

// Default returns the configuration materialised when no file is present,
// matching the original's default_config constant.
func Default() Config {
	return Config{
		ConnType:    ConnFile,
		FlowsToShow: 30,
		SortBy:      SortBytes,
		Address:     "0.0.0.0",
		Port:        2055,
		UnicastOnly: false,
	}
}

const defaultFileContents = "database_file_or_mem: file,\nflows_to_display: 30,\nsort_flows_by_bytes_or_packets: bytes\n"

// Load reads path, materialising defaultFileContents at that path if it does
// not exist (spec.md §6, §7). Malformed values for a recognised key fall
// back to the default for that key only; unrecognised keys are ignored.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return Config{}, err
		}
		if werr := os.WriteFile(path, []byte(defaultFileContents), 0o644); werr != nil {
			return Config{}, werr
		}
		data = []byte(defaultFileContents)
	}
	return Parse(string(data)), nil
}

// Parse applies the key-value grammar in spec.md §6 to raw config text,
// defaulting any key that is missing, malformed, or unrecognised.
func Parse(raw string) Config {
	cfg := Default()

	raw = strings.ReplaceAll(raw, "\n", ",")
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		key, value, ok := strings.Cut(entry, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.ToLower(strings.TrimSpace(value))

		switch key {
		case "database_file_or_mem":
			if value == "memory" {
				cfg.ConnType = ConnMemory
			} else {
				cfg.ConnType = ConnFile
			}
		case "flows_to_display":
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				cfg.FlowsToShow = n
			}
		case "sort_flows_by_bytes_or_packets":
			if value == "packets" {
				cfg.SortBy = SortPackets
			} else {
				cfg.SortBy = SortBytes
			}
		case "address":
			if value != "" {
				cfg.Address = value
			}
		case "port":
			if n, err := strconv.Atoi(value); err == nil && n > 0 && n <= 65535 {
				cfg.Port = n
			}
		case "unicast_only":
			cfg.UnicastOnly = value == "true"
		}
	}
	return cfg
}
