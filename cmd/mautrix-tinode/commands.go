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
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"go.mau.fi/mautrix-tinode/config"
	"go.mau.fi/mautrix-tinode/pkg/tinodemeow"
	"go.mau.fi/mautrix-tinode/pkg/tinodemeow/avatar"
	"go.mau.fi/mautrix-tinode/pkg/tinodemeow/chatlist"
	"go.mau.fi/mautrix-tinode/pkg/tinodemeow/types"
	"go.mau.fi/mautrix-tinode/pkg/tinodemeow/vcardconv"
)

func readPayload(ctx context.Context, path string) ([]*types.Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return tinodemeow.ParseConversations(ctx, data)
}

// cmdRender prints the chat list in a subscription payload file.
func cmdRender(ctx context.Context, cfg *config.Config, out io.Writer, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: render <file>")
	}
	convs, err := readPayload(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}
	list := chatlist.New(*zerolog.Ctx(ctx), &TerminalRenderer{Out: out}, newResolver(cfg), nil)
	defer list.Close()
	if cfg.ChatList.UnknownTitle != "" {
		list.UnknownTitle = cfg.ChatList.UnknownTitle
	}
	list.Display(ctx, convs)
	return nil
}

// cmdVCard prints the contact card of one topic in a subscription payload file.
func cmdVCard(ctx context.Context, out io.Writer, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: vcard <file> <topic>")
	}
	convs, err := readPayload(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}
	topic := args[1]
	var found *types.Conversation
	for _, conv := range convs {
		if conv.Topic == topic {
			found = conv
		}
	}
	if found == nil {
		return fmt.Errorf("topic %s not found in payload", topic)
	}
	return vcardconv.Encode(out, topic, found.Public)
}

func newResolver(cfg *config.Config) *avatar.Resolver {
	return &avatar.Resolver{FallbackGlyph: cfg.Avatars.FallbackGlyph}
}
