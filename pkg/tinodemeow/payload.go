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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"go.mau.fi/mautrix-tinode/pkg/tinodemeow/types"
)

var (
	ErrInvalidPayload = errors.New("invalid conversation payload")

	errNotSubscriptionList = errors.New("expected a list of subscriptions")
)

// ParseConversations parses a subscription list. The list may be a bare JSON
// array, or wrapped in a {"sub": [...]} or {"meta": {"sub": [...]}} object as
// sent by the server.
func ParseConversations(ctx context.Context, data []byte) ([]*types.Conversation, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrInvalidPayload)
	}
	list := gjson.ParseBytes(data)
	if !list.IsArray() {
		if sub := list.Get("meta.sub"); sub.Exists() {
			list = sub
		} else {
			list = list.Get("sub")
		}
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, errNotSubscriptionList)
	}
	items := list.Array()
	convs := make([]*types.Conversation, 0, len(items))
	for i, item := range items {
		conv, err := parseConversation(ctx, item)
		if err != nil {
			return nil, fmt.Errorf("subscription #%d: %w", i, err)
		}
		convs = append(convs, conv)
	}
	return convs, nil
}

// ParseConversation parses a single subscription.
func ParseConversation(ctx context.Context, data []byte) (*types.Conversation, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrInvalidPayload)
	}
	return parseConversation(ctx, gjson.ParseBytes(data))
}

func parseConversation(ctx context.Context, item gjson.Result) (*types.Conversation, error) {
	if !item.IsObject() {
		return nil, fmt.Errorf("%w: expected an object", ErrInvalidPayload)
	}
	topic := item.Get("topic").String()
	if topic == "" {
		return nil, fmt.Errorf("%w: missing topic", ErrInvalidPayload)
	}
	conv := &types.Conversation{
		Topic:  topic,
		Online: item.Get("online").Bool(),
	}
	if comment := item.Get("private.comment"); comment.Exists() {
		conv.Comment = comment.String()
	} else {
		conv.Comment = item.Get("comment").String()
	}
	if public := item.Get("public"); public.IsObject() {
		var card types.VCard
		if err := json.Unmarshal([]byte(public.Raw), &card); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).
				Str("topic", topic).
				Msg("Ignoring malformed public card")
		} else {
			conv.Public = &card
		}
	}
	if unread := item.Get("unread"); unread.Exists() {
		conv.Unread = int(unread.Int())
	} else {
		conv.Unread = int(item.Get("seq").Int() - item.Get("read").Int())
	}
	if conv.Unread < 0 {
		conv.Unread = 0
	}
	if p2p := item.Get("p2p"); p2p.Exists() {
		conv.DirectMessage = p2p.Bool()
	} else {
		conv.DirectMessage = types.TopicTypeOf(topic) == types.TopicTypeP2P
	}
	return conv, nil
}
