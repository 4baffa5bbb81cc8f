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

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mau.fi/util/dbutil"

	"go.mau.fi/mautrix-tinode/pkg/tinodemeow/types"
)

// ChatStore persists conversations in display order so that the chat list can be
// shown before the first sync.
type ChatStore struct {
	db *dbutil.Database
}

const (
	getAllChatsQuery = `
		SELECT topic, public, comment, online, unread, direct_message
		FROM tinodemeow_chat
	`
	getAllChatsOrderedQuery = getAllChatsQuery + `ORDER BY position`
	getChatByTopicQuery     = getAllChatsQuery + `WHERE topic = $1`
	countChatsQuery         = `SELECT COUNT(*) FROM tinodemeow_chat`
	deleteAllChatsQuery     = `DELETE FROM tinodemeow_chat`
	insertChatQuery         = `
		INSERT INTO tinodemeow_chat (topic, position, public, comment, online, unread, direct_message, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	updateChatQuery = `
		UPDATE tinodemeow_chat
		SET public = $2, comment = $3, online = $4, unread = $5, direct_message = $6, updated_at = $7
		WHERE topic = $1
	`
)

func scanChat(row dbutil.Scannable) (*types.Conversation, error) {
	var conv types.Conversation
	var public sql.NullString
	err := row.Scan(&conv.Topic, &public, &conv.Comment, &conv.Online, &conv.Unread, &conv.DirectMessage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	if public.Valid && public.String != "" {
		var card types.VCard
		if err = json.Unmarshal([]byte(public.String), &card); err != nil {
			return nil, fmt.Errorf("failed to unmarshal card of %s: %w", conv.Topic, err)
		}
		conv.Public = &card
	}
	return &conv, nil
}

func marshalCard(card *types.VCard) (sql.NullString, error) {
	if card == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(card)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// All returns the stored conversations in display order.
func (s *ChatStore) All(ctx context.Context) ([]*types.Conversation, error) {
	rows, err := s.db.Query(ctx, getAllChatsOrderedQuery)
	if err != nil {
		return nil, err
	}
	return dbutil.NewRowIter(rows, scanChat).AsList()
}

// Get returns the stored conversation, or nil if the topic isn't stored.
func (s *ChatStore) Get(ctx context.Context, topic string) (*types.Conversation, error) {
	return scanChat(s.db.QueryRow(ctx, getChatByTopicQuery, topic))
}

func (s *ChatStore) Count(ctx context.Context) (count int, err error) {
	err = s.db.QueryRow(ctx, countChatsQuery).Scan(&count)
	return
}

// ReplaceAll stores a new full list. Duplicate topics keep the last occurrence,
// the same way the chat list index resolves them.
func (s *ChatStore) ReplaceAll(ctx context.Context, convs []*types.Conversation) error {
	now := time.Now().UnixMilli()
	return s.db.DoTxn(ctx, nil, func(ctx context.Context) error {
		if _, err := s.db.Exec(ctx, deleteAllChatsQuery); err != nil {
			return fmt.Errorf("failed to clear chats: %w", err)
		}
		last := make(map[string]int, len(convs))
		for i, conv := range convs {
			last[conv.Topic] = i
		}
		for i, conv := range convs {
			if last[conv.Topic] != i {
				continue
			}
			public, err := marshalCard(conv.Public)
			if err != nil {
				return fmt.Errorf("failed to marshal card of %s: %w", conv.Topic, err)
			}
			_, err = s.db.Exec(ctx, insertChatQuery,
				conv.Topic, i, public, conv.Comment, conv.Online, conv.Unread, conv.DirectMessage, now)
			if err != nil {
				return fmt.Errorf("failed to insert %s: %w", conv.Topic, err)
			}
		}
		zerolog.Ctx(ctx).Debug().Int("count", len(last)).Msg("Stored chat list")
		return nil
	})
}

// Update stores a single conversation in place. Unknown topics aren't inserted,
// because their position in the list isn't known.
func (s *ChatStore) Update(ctx context.Context, conv *types.Conversation) (found bool, err error) {
	public, err := marshalCard(conv.Public)
	if err != nil {
		return false, fmt.Errorf("failed to marshal card: %w", err)
	}
	res, err := s.db.Exec(ctx, updateChatQuery,
		conv.Topic, public, conv.Comment, conv.Online, conv.Unread, conv.DirectMessage, time.Now().UnixMilli())
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}
