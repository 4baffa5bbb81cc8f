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

package main

import (
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go.mau.fi/mautrix-tinode/pkg/tinodemeow/avatar"
	"go.mau.fi/mautrix-tinode/pkg/tinodemeow/chatlist"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	subtitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#9E9E9E"))
	badgeStyle    = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#C62828")).
			Padding(0, 1)
)

// TerminalRenderer prints the chat list to a terminal.
type TerminalRenderer struct {
	Out io.Writer
}

var _ chatlist.Renderer = (*TerminalRenderer)(nil)

func (tr *TerminalRenderer) ReloadAll(rows []chatlist.Row) {
	for _, row := range rows {
		tr.ReloadRow(row)
	}
}

func (tr *TerminalRenderer) ReloadRow(row chatlist.Row) {
	_, _ = fmt.Fprintln(tr.Out, FormatRow(row))
}

func FormatRow(row chatlist.Row) string {
	status := lipgloss.NewStyle().Foreground(lipgloss.Color(row.OnlineColor.Hex())).Render("●")
	text := titleStyle.Render(row.Title)
	if row.Subtitle != "" {
		text = lipgloss.JoinVertical(lipgloss.Left, text, subtitleStyle.Render(row.Subtitle))
	}
	parts := []string{fmt.Sprintf("%3d", row.Position), formatAvatar(row.Avatar), status, text}
	if row.UnreadBadge != "" {
		parts = append(parts, badgeStyle.Render(row.UnreadBadge))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, strings.Join(parts[:3], " ")+" ", strings.Join(parts[3:], "  "))
}

func formatAvatar(visual avatar.Visual) string {
	style := lipgloss.NewStyle().Padding(0, 1)
	if visual.Kind == avatar.KindPhoto && visual.Image != nil {
		return style.Background(lipgloss.Color(averageColor(visual.Image).Hex())).Render(" ")
	}
	return style.
		Foreground(lipgloss.Color(visual.Foreground.Hex())).
		Background(lipgloss.Color(visual.Background.Hex())).
		Render(visual.Initial)
}

// averageColor approximates a photo with a single color for the terminal.
func averageColor(img image.Image) avatar.Color {
	bounds := img.Bounds()
	step := max(1, bounds.Dx()/16, bounds.Dy()/16)
	var r, g, b, n uint64
	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			r, g, b = r+uint64(cr>>8), g+uint64(cg>>8), b+uint64(cb>>8)
			n++
		}
	}
	if n == 0 {
		return avatar.Color{}
	}
	return avatar.Color{R: uint8(r / n), G: uint8(g / n), B: uint8(b / n)}
}
