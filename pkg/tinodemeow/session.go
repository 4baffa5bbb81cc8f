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

package tinodemeow

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"go.mau.fi/mautrix-tinode/pkg/tinodemeow/chatlist"
	"go.mau.fi/mautrix-tinode/pkg/tinodemeow/store"
	"go.mau.fi/mautrix-tinode/pkg/tinodemeow/types"
)

// Session feeds sync results into the chat list and keeps the local copy in the
// database up to date.
type Session struct {
	List  *chatlist.ChatList
	Chats *store.ChatStore
}

func NewSession(list *chatlist.ChatList, chats *store.ChatStore) *Session {
	return &Session{List: list, Chats: chats}
}

// Restore shows the last stored list. It's meant to be called once on startup,
// before the first sync.
func (s *Session) Restore(ctx context.Context) error {
	if s.Chats == nil {
		return nil
	}
	convs, err := s.Chats.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to load stored chats: %w", err)
	}
	zerolog.Ctx(ctx).Debug().Int("count", len(convs)).Msg("Restoring stored chat list")
	s.List.Display(ctx, convs)
	return nil
}

// ApplyList replaces the whole chat list.
func (s *Session) ApplyList(ctx context.Context, convs []*types.Conversation) error {
	s.List.Display(ctx, convs)
	if s.Chats == nil {
		return nil
	}
	if err := s.Chats.ReplaceAll(ctx, convs); err != nil {
		return fmt.Errorf("failed to store chat list: %w", err)
	}
	return nil
}

// Invalidate marks the chat list index stale after the sync layer reports that
// topics were added, removed or reordered. Single updates are rejected with
// chatlist.ErrStaleIndex until the next ApplyList.
func (s *Session) Invalidate(ctx context.Context) {
	zerolog.Ctx(ctx).Debug().Msg("Chat list structure changed, invalidating index")
	s.List.Invalidate()
}

// ApplyUpdate replaces a single conversation. chatlist.ErrStaleIndex is passed
// through when the topic isn't in the list, in which case the caller must fetch
// the full list and call ApplyList.
func (s *Session) ApplyUpdate(ctx context.Context, conv *types.Conversation) error {
	if err := s.List.Update(ctx, conv); err != nil {
		return err
	}
	if s.Chats == nil {
		return nil
	}
	found, err := s.Chats.Update(ctx, conv)
	if err != nil {
		return fmt.Errorf("failed to store chat update: %w", err)
	} else if !found {
		zerolog.Ctx(ctx).Warn().Str("topic", conv.Topic).Msg("Updated chat wasn't in the database")
	}
	return nil
}

// ApplyPayload parses a raw server payload and applies it as a full list if it's
// a list of subscriptions, or as a single update otherwise.
func (s *Session) ApplyPayload(ctx context.Context, data []byte) (fullList bool, err error) {
	convs, err := ParseConversations(ctx, data)
	if err == nil {
		return true, s.ApplyList(ctx, convs)
	} else if !errors.Is(err, ErrInvalidPayload) {
		return false, err
	}
	conv, singleErr := ParseConversation(ctx, data)
	if singleErr != nil {
		if errors.Is(err, errNotSubscriptionList) {
			return false, singleErr
		}
		return false, err
	}
	return false, s.ApplyUpdate(ctx, conv)
}
