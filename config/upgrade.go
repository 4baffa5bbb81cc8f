// mautrix-tinode - Tinode chat list and contact presentation core.
// Copyright (C) 2026 mautrix-tinode contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"fmt"
	"os"

	up "go.mau.fi/util/configupgrade"
	"go.mau.fi/util/random"
	"gopkg.in/yaml.v3"
)

func DoUpgrade(helper up.Helper) {
	helper.Copy(up.Str, "api", "listen")
	if secret, ok := helper.Get(up.Str, "api", "shared_secret"); !ok || secret == "generate" {
		sharedSecret := random.String(64)
		helper.Set(up.Str, sharedSecret, "api", "shared_secret")
	} else {
		helper.Copy(up.Str, "api", "shared_secret")
	}

	helper.Copy(up.Bool, "metrics", "enabled")
	helper.Copy(up.Str, "metrics", "listen")

	helper.Copy(up.Str, "database", "type")
	helper.Copy(up.Str, "database", "uri")
	helper.Copy(up.Int, "database", "max_open_conns")
	helper.Copy(up.Int, "database", "max_idle_conns")
	helper.Copy(up.Str|up.Null, "database", "max_conn_idle_time")
	helper.Copy(up.Str|up.Null, "database", "max_conn_lifetime")

	helper.Copy(up.Str, "avatars", "fallback_glyph")
	helper.Copy(up.Int, "avatars", "decode_workers")
	helper.Copy(up.Bool, "avatars", "async_decode")
	helper.Copy(up.Int, "avatars", "render_size")

	helper.Copy(up.Str, "chatlist", "unknown_title")

	helper.Copy(up.Map, "logging")
}

var SpacedBlocks = [][]string{
	{"metrics"},
	{"database"},
	{"avatars"},
	{"chatlist"},
	{"logging"},
}

var Upgrader = &up.StructUpgrader{
	SimpleUpgrader: up.SimpleUpgrader(DoUpgrade),
	Blocks:         SpacedBlocks,
	Base:           ExampleConfig,
}

// Load upgrades the config file at the given path against the example config
// and parses the result. If save is set, the upgraded config is written back.
func Load(path string, save bool) (*Config, error) {
	data, _, err := up.Do(path, save, Upgrader)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade config: %w", err)
	}
	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Generate writes the example config to the given path with a fresh shared secret.
func Generate(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := os.WriteFile(path, []byte(ExampleConfig), 0600); err != nil {
		return err
	}
	_, err := Load(path, true)
	return err
}
