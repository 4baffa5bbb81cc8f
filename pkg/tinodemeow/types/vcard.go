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
	"golang.org/x/exp/slices"
)

// Contact is a single phone number, email address or IM handle of a contact card.
type Contact struct {
	// Type is a free-form label such as "home" or "work".
	Type string `json:"type,omitempty"`
	URI  string `json:"uri,omitempty"`
}

// Name is the structured name of a contact card.
type Name struct {
	Surname    string `json:"surname,omitempty"`
	Given      string `json:"given,omitempty"`
	Additional string `json:"additional,omitempty"`
	Prefix     string `json:"prefix,omitempty"`
	Suffix     string `json:"suffix,omitempty"`
}

func (n *Name) Copy() *Name {
	if n == nil {
		return nil
	}
	nameCopy := *n
	return &nameCopy
}

// VCard is the public description of a user or topic as sent by the server.
//
// Cards are replaced wholesale when a conversation is updated. A card may exist
// without a photo, which is different from a photo whose data can't be decoded,
// even though both end up rendered as a placeholder.
type VCard struct {
	FormattedName string `json:"fn,omitempty"`
	Name          *Name  `json:"n,omitempty"`
	Organization  string `json:"org,omitempty"`
	Title         string `json:"title,omitempty"`
	// List of phone numbers associated with the contact.
	Phones []Contact `json:"tel,omitempty"`
	// List of contact's email addresses.
	Emails    []Contact `json:"email,omitempty"`
	IMHandles []Contact `json:"impp,omitempty"`
	Photo     *Photo    `json:"photo,omitempty"`
}

// Copy returns a duplicate of the card that shares no mutable state with the original.
// The photo is reconstructed from its encoded form, so the copy starts with an empty
// decode cache.
func (v *VCard) Copy() *VCard {
	if v == nil {
		return nil
	}
	return &VCard{
		FormattedName: v.FormattedName,
		Name:          v.Name.Copy(),
		Organization:  v.Organization,
		Title:         v.Title,
		Phones:        copyContacts(v.Phones),
		Emails:        copyContacts(v.Emails),
		IMHandles:     copyContacts(v.IMHandles),
		Photo:         v.Photo.Copy(),
	}
}

// Contact is a plain value type, so cloning the slice copies every entry.
func copyContacts(list []Contact) []Contact {
	if list == nil {
		return nil
	}
	return slices.Clone(list)
}
