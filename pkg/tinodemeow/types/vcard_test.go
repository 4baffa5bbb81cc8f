package types_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.mau.fi/mautrix-tinode/pkg/tinodemeow/types"
)

func testCard() *types.VCard {
	return &types.VCard{
		FormattedName: "Alice Johnson",
		Name:          &types.Name{Given: "Alice", Surname: "Johnson"},
		Organization:  "Acme",
		Title:         "Engineer",
		Phones:        []types.Contact{{Type: "home", URI: "tel:+15550001"}},
		Emails:        []types.Contact{{Type: "work", URI: "mailto:alice@example.com"}},
		IMHandles:     []types.Contact{{URI: "tinode:usrAlice"}},
		Photo:         &types.Photo{Type: "image/png", Data: "iVBORw0KGgo="},
	}
}

func TestVCard_CopyIsIndependent(t *testing.T) {
	orig := testCard()
	dup := orig.Copy()
	require.Equal(t, orig.FormattedName, dup.FormattedName)
	require.Equal(t, orig.Phones, dup.Phones)

	dup.Phones[0].URI = "tel:+15559999"
	dup.Phones = append(dup.Phones, types.Contact{URI: "tel:+1"})
	dup.Emails[0].Type = "home"
	dup.IMHandles = nil
	dup.Name.Given = "Bob"

	assert.Equal(t, "tel:+15550001", orig.Phones[0].URI)
	assert.Len(t, orig.Phones, 1)
	assert.Equal(t, "work", orig.Emails[0].Type)
	assert.Len(t, orig.IMHandles, 1)
	assert.Equal(t, "Alice", orig.Name.Given)
	assert.NotSame(t, orig.Photo, dup.Photo)
	assert.Equal(t, orig.Photo.Data, dup.Photo.Data)
}

func TestVCard_CopyNil(t *testing.T) {
	var card *types.VCard
	assert.Nil(t, card.Copy())

	bare := (&types.VCard{FormattedName: "x"}).Copy()
	assert.Nil(t, bare.Photo)
	assert.Nil(t, bare.Phones)
	assert.Nil(t, bare.Name)
}

func TestVCard_WireFormat(t *testing.T) {
	payload := `{
		"fn": "Alice Johnson",
		"n": {"surname": "Johnson", "given": "Alice"},
		"org": "Acme",
		"tel": [{"type": "home", "uri": "tel:+15550001"}],
		"photo": {"type": "image/png", "data": "iVBORw0KGgo="}
	}`
	var card types.VCard
	require.NoError(t, json.Unmarshal([]byte(payload), &card))
	assert.Equal(t, "Alice Johnson", card.FormattedName)
	assert.Equal(t, "Johnson", card.Name.Surname)
	assert.Equal(t, []types.Contact{{Type: "home", URI: "tel:+15550001"}}, card.Phones)
	require.NotNil(t, card.Photo)
	assert.Equal(t, "image/png", card.Photo.Type)

	out, err := json.Marshal(&card)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"fn": "Alice Johnson",
		"n": {"surname": "Johnson", "given": "Alice"},
		"org": "Acme",
		"tel": [{"type": "home", "uri": "tel:+15550001"}],
		"photo": {"type": "image/png", "data": "iVBORw0KGgo="}
	}`, string(out))
}

func TestTopicTypeOf(t *testing.T) {
	assert.Equal(t, types.TopicTypeP2P, types.TopicTypeOf("usrAbCdEf"))
	assert.Equal(t, types.TopicTypeP2P, types.TopicTypeOf("p2pAbCdEf"))
	assert.Equal(t, types.TopicTypeGroup, types.TopicTypeOf("grpX7zz"))
	assert.Equal(t, types.TopicTypeMe, types.TopicTypeOf("me"))
	assert.Equal(t, types.TopicTypeUnknown, types.TopicTypeOf("alice"))
}
