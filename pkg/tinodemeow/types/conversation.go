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

package types

import (
	"strings"
)

type TopicType string

const (
	TopicTypeP2P     TopicType = "p2p"
	TopicTypeGroup   TopicType = "grp"
	TopicTypeMe      TopicType = "me"
	TopicTypeFnd     TopicType = "fnd"
	TopicTypeUnknown TopicType = ""
)

// TopicTypeOf guesses the topic type from a topic name. One-to-one topics are
// addressed either by the peer's user ID ("usr...") or by the p2p topic name.
func TopicTypeOf(topic string) TopicType {
	switch {
	case topic == "me":
		return TopicTypeMe
	case topic == "fnd":
		return TopicTypeFnd
	case strings.HasPrefix(topic, "usr"), strings.HasPrefix(topic, "p2p"):
		return TopicTypeP2P
	case strings.HasPrefix(topic, "grp"), strings.HasPrefix(topic, "new"), strings.HasPrefix(topic, "chn"):
		return TopicTypeGroup
	default:
		return TopicTypeUnknown
	}
}

// Conversation is one entry of the chat list as supplied by the sync layer.
type Conversation struct {
	// Topic is the identity of the conversation. It must be unique within a list.
	Topic         string `json:"topic"`
	Public        *VCard `json:"public,omitempty"`
	Comment       string `json:"comment,omitempty"`
	Online        bool   `json:"online"`
	Unread        int    `json:"unread"`
	DirectMessage bool   `json:"p2p"`
}

// Photo returns the avatar photo of the conversation, if any.
func (c *Conversation) Photo() *Photo {
	if c == nil || c.Public == nil {
		return nil
	}
	return c.Public.Photo
}

// DisplayName returns the formatted name from the public card, or an empty string.
func (c *Conversation) DisplayName() string {
	if c == nil || c.Public == nil {
		return ""
	}
	return c.Public.FormattedName
}
