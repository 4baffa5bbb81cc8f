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
	_ "embed"

	"go.mau.fi/util/dbutil"
	"go.mau.fi/zeroconfig"
)

//go:embed example-config.yaml
var ExampleConfig string

type Config struct {
	API      APIConfig         `yaml:"api"`
	Metrics  MetricsConfig     `yaml:"metrics"`
	Database dbutil.Config     `yaml:"database"`
	Avatars  AvatarConfig      `yaml:"avatars"`
	ChatList ChatListConfig    `yaml:"chatlist"`
	Logging  zeroconfig.Config `yaml:"logging"`
}

type APIConfig struct {
	Listen       string `yaml:"listen"`
	SharedSecret string `yaml:"shared_secret"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type AvatarConfig struct {
	FallbackGlyph string `yaml:"fallback_glyph"`
	DecodeWorkers int    `yaml:"decode_workers"`
	AsyncDecode   bool   `yaml:"async_decode"`
	RenderSize    int    `yaml:"render_size"`
}

type ChatListConfig struct {
	UnknownTitle string `yaml:"unknown_title"`
}
