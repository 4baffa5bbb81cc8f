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

package chatlist

import (
	"strconv"

	"go.mau.fi/mautrix-tinode/pkg/tinodemeow/avatar"
)

const DefaultUnknownTitle = "Unknown or unnamed"

var (
	OnlineColor  = avatar.RGB(0x40C040)
	OfflineColor = avatar.RGB(0xE0E0E0)
)

// Row is the view model of one chat list entry.
type Row struct {
	Position    int           `json:"position"`
	Topic       string        `json:"topic"`
	Title       string        `json:"title"`
	Subtitle    string        `json:"subtitle,omitempty"`
	UnreadBadge string        `json:"unread_badge,omitempty"`
	Online      bool          `json:"online"`
	OnlineColor avatar.Color  `json:"online_color"`
	Avatar      avatar.Visual `json:"avatar"`
}

// UnreadBadge formats an unread counter. Zero hides the badge and anything above
// nine is shown as "9+".
func UnreadBadge(unread int) string {
	switch {
	case unread <= 0:
		return ""
	case unread > 9:
		return "9+"
	default:
		return strconv.Itoa(unread)
	}
}

func onlineColor(online bool) avatar.Color {
	if online {
		return OnlineColor
	}
	return OfflineColor
}
