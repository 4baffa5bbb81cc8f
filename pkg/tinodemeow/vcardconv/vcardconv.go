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

package vcardconv

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/emersion/go-vcard"
	"github.com/skip2/go-qrcode"

	"go.mau.fi/mautrix-tinode/pkg/tinodemeow/types"
)

const (
	MimeType = "text/vcard"
	Version  = "4.0"

	DefaultQRSize = 256
)

const (
	uriSchemeTel    = "tel:"
	uriSchemeMailto = "mailto:"
	dataURIPrefix   = "data:"
)

// ToVCard converts a card into a vCard 4.0 object. The topic is stored in the UID
// field so that the card can be matched to its conversation again.
func ToVCard(topic string, card *types.VCard) vcard.Card {
	out := make(vcard.Card)
	out.SetValue(vcard.FieldVersion, Version)
	if topic != "" {
		out.SetValue(vcard.FieldUID, topic)
	}
	if card == nil {
		return out
	}
	// FN is mandatory in vCard 4.0
	out.SetValue(vcard.FieldFormattedName, card.FormattedName)
	if card.Name != nil {
		out.SetName(&vcard.Name{
			FamilyName:      card.Name.Surname,
			GivenName:       card.Name.Given,
			AdditionalName:  card.Name.Additional,
			HonorificPrefix: card.Name.Prefix,
			HonorificSuffix: card.Name.Suffix,
		})
	}
	if card.Organization != "" {
		out.SetValue(vcard.FieldOrganization, card.Organization)
	}
	if card.Title != "" {
		out.SetValue(vcard.FieldTitle, card.Title)
	}
	for _, phone := range card.Phones {
		field := contactField(phone.URI, phone.Type)
		field.Params.Set("VALUE", "uri")
		out.Add(vcard.FieldTelephone, field)
	}
	for _, email := range card.Emails {
		out.Add(vcard.FieldEmail, contactField(strings.TrimPrefix(email.URI, uriSchemeMailto), email.Type))
	}
	for _, handle := range card.IMHandles {
		out.Add(vcard.FieldIMPP, contactField(handle.URI, handle.Type))
	}
	// Undecodable photo data is left out
	if data, err := card.Photo.Bytes(); err == nil {
		mimeType := card.Photo.Type
		if mimeType == "" {
			mimeType = http.DetectContentType(data)
		}
		out.SetValue(vcard.FieldPhoto, fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data)))
	}
	return out
}

func contactField(value, typ string) *vcard.Field {
	field := &vcard.Field{
		Value:  value,
		Params: make(vcard.Params),
	}
	if typ != "" {
		field.Params.Set(vcard.ParamType, strings.ToLower(typ))
	}
	return field
}

// FromVCard converts a parsed vCard back into a card. Both vCard 4.0 data URI
// photos and vCard 3.0 inline base64 photos are understood.
func FromVCard(in vcard.Card) (topic string, card *types.VCard) {
	topic = in.Value(vcard.FieldUID)
	card = &types.VCard{
		FormattedName: in.Value(vcard.FieldFormattedName),
		Organization:  in.Value(vcard.FieldOrganization),
		Title:         in.Value(vcard.FieldTitle),
	}
	if name := in.Name(); name != nil {
		card.Name = &types.Name{
			Surname:    name.FamilyName,
			Given:      name.GivenName,
			Additional: name.AdditionalName,
			Prefix:     name.HonorificPrefix,
			Suffix:     name.HonorificSuffix,
		}
		if card.FormattedName == "" {
			card.FormattedName = strings.TrimSpace(name.GivenName + " " + name.FamilyName)
		}
	}
	for _, field := range in[vcard.FieldTelephone] {
		uri := field.Value
		if !strings.HasPrefix(uri, uriSchemeTel) {
			uri = uriSchemeTel + uri
		}
		card.Phones = append(card.Phones, types.Contact{Type: fieldType(field), URI: uri})
	}
	for _, field := range in[vcard.FieldEmail] {
		uri := field.Value
		if !strings.HasPrefix(uri, uriSchemeMailto) {
			uri = uriSchemeMailto + uri
		}
		card.Emails = append(card.Emails, types.Contact{Type: fieldType(field), URI: uri})
	}
	for _, field := range in[vcard.FieldIMPP] {
		card.IMHandles = append(card.IMHandles, types.Contact{Type: fieldType(field), URI: field.Value})
	}
	if field := in.Get(vcard.FieldPhoto); field != nil {
		card.Photo = photoFromField(field)
	}
	return
}

func fieldType(field *vcard.Field) string {
	for _, typ := range field.Params.Types() {
		// "pref" isn't a label
		if !strings.EqualFold(typ, "pref") && !strings.EqualFold(typ, "voice") && !strings.EqualFold(typ, "internet") {
			return strings.ToLower(typ)
		}
	}
	return ""
}

func photoFromField(field *vcard.Field) *types.Photo {
	value := strings.ReplaceAll(strings.TrimSpace(field.Value), `\,`, ",")
	if strings.HasPrefix(value, dataURIPrefix) {
		header, data, ok := strings.Cut(value[len(dataURIPrefix):], ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return nil
		}
		return &types.Photo{Type: strings.TrimSuffix(header, ";base64"), Data: data}
	}
	encoding := strings.ToLower(field.Params.Get("ENCODING"))
	if encoding != "b" && encoding != "base64" {
		// Photos referenced by URL aren't fetched.
		return nil
	}
	mimeType := ""
	if typ := field.Params.Get(vcard.ParamType); typ != "" {
		mimeType = "image/" + strings.ToLower(typ)
	}
	return &types.Photo{Type: mimeType, Data: value}
}

// Encode writes the card as vCard text.
func Encode(w io.Writer, topic string, card *types.VCard) error {
	err := vcard.NewEncoder(w).Encode(ToVCard(topic, card))
	if err != nil {
		return fmt.Errorf("failed to encode vCard: %w", err)
	}
	return nil
}

// Marshal returns the vCard text of the card.
func Marshal(topic string, card *types.VCard) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, topic, card); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Entry is a card read from a vCard file along with the topic in its UID field.
type Entry struct {
	Topic string
	Card  *types.VCard
}

// Decode reads every card in the stream.
func Decode(r io.Reader) ([]Entry, error) {
	dec := vcard.NewDecoder(r)
	var entries []Entry
	for {
		card, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			return entries, nil
		} else if err != nil {
			return entries, fmt.Errorf("failed to decode vCard #%d: %w", len(entries)+1, err)
		}
		topic, parsed := FromVCard(card)
		entries = append(entries, Entry{Topic: topic, Card: parsed})
	}
}

// QRCode renders the card as a PNG QR code for sharing. The photo is left out,
// since even small images don't fit in a QR code.
func QRCode(topic string, card *types.VCard, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	if card != nil {
		card = card.Copy()
		card.Photo = nil
	}
	text, err := Marshal(topic, card)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(string(text), qrcode.Low, size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}
	return png, nil
}
