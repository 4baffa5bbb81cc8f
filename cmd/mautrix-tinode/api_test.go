package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"go.mau.fi/mautrix-tinode/pkg/tinodemeow"
	"go.mau.fi/mautrix-tinode/pkg/tinodemeow/chatlist"
)

const testSecret = "meow"

func newTestAPI(t *testing.T) (*httptest.Server, *UpdateHub) {
	t.Helper()
	hub := NewUpdateHub(zerolog.Nop(), nil)
	list := chatlist.New(zerolog.Nop(), hub, nil, nil)
	t.Cleanup(list.Close)
	api := NewChatAPI(zerolog.Nop(), tinodemeow.NewSession(list, nil), hub, testSecret, 64)
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return srv, hub
}

func doRequest(t *testing.T, srv *httptest.Server, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testSecret)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

const testList = `[
	{"topic": "usrAlice", "unread": 12, "online": true, "public": {"fn": "Alice", "tel": [{"type": "mobile", "uri": "tel:+15550001"}]}},
	{"topic": "grpBooks", "public": {"fn": "Books"}},
	{"topic": "usrNobody"}
]`

func TestAPI_Auth(t *testing.T) {
	srv, _ := newTestAPI(t)
	resp, err := srv.Client().Get(srv.URL + "/v1/chats")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	var apiErr Error
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&apiErr))
	assert.Equal(t, "M_FORBIDDEN", apiErr.ErrCode)

	resp2, err := srv.Client().Get(srv.URL + "/v1/chats?access_token=" + testSecret)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}

func TestAPI_ListAndPointUpdate(t *testing.T) {
	srv, _ := newTestAPI(t)
	resp := doRequest(t, srv, http.MethodPut, "/v1/chats", testList)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, srv, http.MethodGet, "/v1/chats", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rows []json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rows))
	require.Len(t, rows, 3)
	var first struct {
		Title       string `json:"title"`
		UnreadBadge string `json:"unread_badge"`
		OnlineColor string `json:"online_color"`
		Avatar      struct {
			Kind       string `json:"kind"`
			Initial    string `json:"initial"`
			Background string `json:"background"`
		} `json:"avatar"`
	}
	require.NoError(t, json.Unmarshal(rows[0], &first))
	assert.Equal(t, "Alice", first.Title)
	assert.Equal(t, "9+", first.UnreadBadge)
	assert.Equal(t, "#40C040", first.OnlineColor)
	assert.Equal(t, "placeholder", first.Avatar.Kind)
	assert.Equal(t, "A", first.Avatar.Initial)

	resp = doRequest(t, srv, http.MethodGet, "/v1/chats/grpBooks/position", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var pos PositionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pos))
	assert.Equal(t, 1, pos.Position)

	resp = doRequest(t, srv, http.MethodPost, "/v1/chats/grpBooks", `{"topic": "grpBooks", "unread": 2, "public": {"fn": "Books!"}}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = doRequest(t, srv, http.MethodGet, "/v1/chats/grpBooks", "")
	var row chatlist.Row
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&row))
	assert.Equal(t, "Books!", row.Title)
	assert.Equal(t, "2", row.UnreadBadge)

	resp = doRequest(t, srv, http.MethodPost, "/v1/chats/grpOther", `{"topic": "grpOther"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var apiErr Error
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&apiErr))
	assert.Equal(t, "STALE_INDEX", apiErr.ErrCode)

	resp = doRequest(t, srv, http.MethodPost, "/v1/chats/grpBooks", `{"topic": "grpOther"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = doRequest(t, srv, http.MethodPut, "/v1/chats", `{"nope": true}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = doRequest(t, srv, http.MethodGet, "/v1/chats/grpOther/position", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_InvalidateIndex(t *testing.T) {
	srv, _ := newTestAPI(t)
	resp := doRequest(t, srv, http.MethodPut, "/v1/chats", testList)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, srv, http.MethodDelete, "/v1/chats/index", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, srv, http.MethodPost, "/v1/chats/grpBooks", `{"topic": "grpBooks", "unread": 1}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var apiErr Error
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&apiErr))
	assert.Equal(t, "STALE_INDEX", apiErr.ErrCode)

	resp = doRequest(t, srv, http.MethodPut, "/v1/chats", testList)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = doRequest(t, srv, http.MethodPost, "/v1/chats/grpBooks", `{"topic": "grpBooks", "unread": 1}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_Media(t *testing.T) {
	srv, _ := newTestAPI(t)
	require.Equal(t, http.StatusOK, doRequest(t, srv, http.MethodPut, "/v1/chats", testList).StatusCode)

	resp := doRequest(t, srv, http.MethodGet, "/v1/avatars/usrAlice.png?size=32", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())

	resp = doRequest(t, srv, http.MethodGet, "/v1/chats/usrAlice/vcard", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "FN:Alice")
	assert.Contains(t, buf.String(), "UID:usrAlice")

	resp = doRequest(t, srv, http.MethodGet, "/v1/chats/usrAlice/qr", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, err = png.Decode(resp.Body)
	assert.NoError(t, err)

	resp = doRequest(t, srv, http.MethodGet, "/v1/avatars/usrMissing.png", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_UpdateStream(t *testing.T) {
	srv, hub := newTestAPI(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/updates"
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + testSecret}},
	})
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 5*time.Second, 10*time.Millisecond)

	require.Equal(t, http.StatusOK, doRequest(t, srv, http.MethodPut, "/v1/chats", testList).StatusCode)
	require.Equal(t, http.StatusOK, doRequest(t, srv, http.MethodPost, "/v1/chats/usrNobody", `{"topic": "usrNobody", "public": {"fn": "Somebody"}}`).StatusCode)

	var update Update
	require.NoError(t, wsjson.Read(ctx, conn, &update))
	assert.Equal(t, UpdateTypeReload, update.Type)
	assert.Equal(t, 3, update.Count)
	require.NoError(t, wsjson.Read(ctx, conn, &update))
	assert.Equal(t, UpdateTypeRow, update.Type)
	assert.Equal(t, 2, update.Position)
	assert.Equal(t, "usrNobody", update.Topic)
	require.NotNil(t, update.Row)
	assert.Equal(t, "Somebody", update.Row.Title)
}

func TestUpdateHub_DropsSlowSubscribers(t *testing.T) {
	hub := NewUpdateHub(zerolog.Nop(), nil)
	sub := hub.Subscribe()
	for i := 0; i < subscriberBuffer+1; i++ {
		hub.ReloadAll(nil)
	}
	assert.Equal(t, 0, hub.Count())
	received := 0
	for range sub.ch {
		received++
	}
	assert.Equal(t, subscriberBuffer, received)
	hub.Unsubscribe(sub)
}
