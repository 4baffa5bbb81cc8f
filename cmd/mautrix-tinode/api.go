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
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"go.mau.fi/mautrix-tinode/pkg/tinodemeow"
	"go.mau.fi/mautrix-tinode/pkg/tinodemeow/avatar"
	"go.mau.fi/mautrix-tinode/pkg/tinodemeow/chatlist"
	"go.mau.fi/mautrix-tinode/pkg/tinodemeow/vcardconv"
)

const maxPayloadSize = 16 * 1024 * 1024

type ChatAPI struct {
	Session      *tinodemeow.Session
	Updates      *UpdateHub
	SharedSecret string
	RenderSize   int

	log    zerolog.Logger
	router *mux.Router
}

func NewChatAPI(log zerolog.Logger, session *tinodemeow.Session, updates *UpdateHub, sharedSecret string, renderSize int) *ChatAPI {
	api := &ChatAPI{
		Session:      session,
		Updates:      updates,
		SharedSecret: sharedSecret,
		RenderSize:   renderSize,
		log:          log,
	}
	api.router = mux.NewRouter()
	r := api.router.PathPrefix("/v1").Subrouter()
	r.Use(api.AuthMiddleware)
	r.HandleFunc("/chats", api.PutChats).Methods(http.MethodPut)
	r.HandleFunc("/chats", api.GetChats).Methods(http.MethodGet)
	r.HandleFunc("/chats/index", api.DeleteIndex).Methods(http.MethodDelete)
	r.HandleFunc("/chats/{topic}", api.PostChat).Methods(http.MethodPost)
	r.HandleFunc("/chats/{topic}", api.GetChat).Methods(http.MethodGet)
	r.HandleFunc("/chats/{topic}/position", api.GetPosition).Methods(http.MethodGet)
	r.HandleFunc("/chats/{topic}/vcard", api.GetVCard).Methods(http.MethodGet)
	r.HandleFunc("/chats/{topic}/qr", api.GetQR).Methods(http.MethodGet)
	r.HandleFunc("/avatars/{topic}.png", api.GetAvatar).Methods(http.MethodGet)
	if updates != nil {
		r.Handle("/updates", updates).Methods(http.MethodGet)
	}
	return api
}

func (api *ChatAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	api.router.ServeHTTP(w, r)
}

type responseWrap struct {
	http.ResponseWriter
	statusCode int
}

var _ http.Hijacker = (*responseWrap)(nil)

func (rw *responseWrap) WriteHeader(statusCode int) {
	rw.ResponseWriter.WriteHeader(statusCode)
	rw.statusCode = statusCode
}

func (rw *responseWrap) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func jsonResponse(w http.ResponseWriter, status int, response any) {
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

type Error struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	ErrCode string `json:"errcode"`
}

type Response struct {
	Success bool `json:"success"`
	Count   int  `json:"count,omitempty"`
}

type PositionResponse struct {
	Topic    string `json:"topic"`
	Position int    `json:"position"`
}

var (
	errForbidden = Error{Error: "Authentication token does not match shared secret", ErrCode: "M_FORBIDDEN"}
	errNotFound  = Error{Error: "Topic is not in the chat list", ErrCode: "M_NOT_FOUND"}
	errStale     = Error{Error: "Topic is not in the chat list index, send the full list", ErrCode: "STALE_INDEX"}
)

func (api *ChatAPI) AuthMiddleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if strings.HasPrefix(auth, "Bearer ") {
			auth = auth[len("Bearer "):]
		} else if auth == "" {
			// Browsers can't set headers on websocket requests
			auth = r.URL.Query().Get("access_token")
		}
		if auth != api.SharedSecret {
			api.log.Info().Msg("Authentication token does not match shared secret")
			jsonResponse(w, http.StatusForbidden, errForbidden)
			return
		}
		start := time.Now()
		wWrap := &responseWrap{w, http.StatusOK}
		log := api.log.With().Str("method", r.Method).Str("path", r.URL.Path).Logger()
		h.ServeHTTP(wWrap, r.WithContext(log.WithContext(r.Context())))
		log.Debug().
			Dur("duration", time.Since(start)).
			Int("status_code", wWrap.statusCode).
			Msg("Handled API request")
	})
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadSize))
	if err != nil {
		jsonResponse(w, http.StatusBadRequest, Error{Error: "Failed to read request body", ErrCode: "M_BAD_JSON"})
		return nil, false
	}
	return data, true
}

func (api *ChatAPI) PutChats(w http.ResponseWriter, r *http.Request) {
	data, ok := readBody(w, r)
	if !ok {
		return
	}
	convs, err := tinodemeow.ParseConversations(r.Context(), data)
	if err != nil {
		jsonResponse(w, http.StatusBadRequest, Error{Error: err.Error(), ErrCode: "M_BAD_JSON"})
		return
	}
	if err = api.Session.ApplyList(r.Context(), convs); err != nil {
		zerolog.Ctx(r.Context()).Err(err).Msg("Failed to apply chat list")
		jsonResponse(w, http.StatusInternalServerError, Error{Error: "Failed to store chat list", ErrCode: "M_UNKNOWN"})
		return
	}
	jsonResponse(w, http.StatusOK, Response{Success: true, Count: len(convs)})
}

func (api *ChatAPI) PostChat(w http.ResponseWriter, r *http.Request) {
	topic := mux.Vars(r)["topic"]
	data, ok := readBody(w, r)
	if !ok {
		return
	}
	conv, err := tinodemeow.ParseConversation(r.Context(), data)
	if err != nil {
		jsonResponse(w, http.StatusBadRequest, Error{Error: err.Error(), ErrCode: "M_BAD_JSON"})
		return
	} else if conv.Topic != topic {
		jsonResponse(w, http.StatusBadRequest, Error{Error: "Topic in body doesn't match path", ErrCode: "M_BAD_JSON"})
		return
	}
	err = api.Session.ApplyUpdate(r.Context(), conv)
	if errors.Is(err, chatlist.ErrStaleIndex) {
		jsonResponse(w, http.StatusConflict, errStale)
		return
	} else if err != nil {
		zerolog.Ctx(r.Context()).Err(err).Msg("Failed to apply chat update")
		jsonResponse(w, http.StatusInternalServerError, Error{Error: "Failed to store chat update", ErrCode: "M_UNKNOWN"})
		return
	}
	jsonResponse(w, http.StatusOK, Response{Success: true, Count: 1})
}

func (api *ChatAPI) DeleteIndex(w http.ResponseWriter, r *http.Request) {
	api.Session.Invalidate(r.Context())
	jsonResponse(w, http.StatusOK, Response{Success: true})
}

func (api *ChatAPI) GetChats(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, api.Session.List.Rows(r.Context()))
}

func (api *ChatAPI) GetChat(w http.ResponseWriter, r *http.Request) {
	row, ok := api.Session.List.Row(r.Context(), mux.Vars(r)["topic"])
	if !ok {
		jsonResponse(w, http.StatusNotFound, errNotFound)
		return
	}
	jsonResponse(w, http.StatusOK, row)
}

func (api *ChatAPI) GetPosition(w http.ResponseWriter, r *http.Request) {
	topic := mux.Vars(r)["topic"]
	pos, ok := api.Session.List.PositionOf(topic)
	if !ok {
		jsonResponse(w, http.StatusNotFound, errNotFound)
		return
	}
	jsonResponse(w, http.StatusOK, PositionResponse{Topic: topic, Position: pos})
}

func sizeParam(r *http.Request, def int) int {
	size, err := strconv.Atoi(r.URL.Query().Get("size"))
	if err != nil || size <= 0 || size > 1024 {
		return def
	}
	return size
}

func (api *ChatAPI) GetAvatar(w http.ResponseWriter, r *http.Request) {
	row, ok := api.Session.List.Row(r.Context(), mux.Vars(r)["topic"])
	if !ok {
		jsonResponse(w, http.StatusNotFound, errNotFound)
		return
	}
	api.writeAvatar(w, r, row.Avatar)
}

func (api *ChatAPI) writeAvatar(w http.ResponseWriter, r *http.Request, visual avatar.Visual) {
	size := sizeParam(r, api.RenderSize)
	w.Header().Set("Content-Type", "image/png")
	if visual.PhotoPending {
		w.Header().Set("Cache-Control", "no-store")
	}
	w.WriteHeader(http.StatusOK)
	if err := visual.EncodePNG(w, size); err != nil {
		zerolog.Ctx(r.Context()).Err(err).Msg("Failed to encode avatar")
	}
}

func (api *ChatAPI) GetVCard(w http.ResponseWriter, r *http.Request) {
	topic := mux.Vars(r)["topic"]
	conv, ok := api.Session.List.Conversation(topic)
	if !ok {
		jsonResponse(w, http.StatusNotFound, errNotFound)
		return
	}
	data, err := vcardconv.Marshal(topic, conv.Public)
	if err != nil {
		zerolog.Ctx(r.Context()).Err(err).Msg("Failed to encode vCard")
		jsonResponse(w, http.StatusInternalServerError, Error{Error: "Failed to encode vCard", ErrCode: "M_UNKNOWN"})
		return
	}
	w.Header().Set("Content-Type", vcardconv.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.vcf"`, topic))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (api *ChatAPI) GetQR(w http.ResponseWriter, r *http.Request) {
	topic := mux.Vars(r)["topic"]
	conv, ok := api.Session.List.Conversation(topic)
	if !ok {
		jsonResponse(w, http.StatusNotFound, errNotFound)
		return
	}
	png, err := vcardconv.QRCode(topic, conv.Public, sizeParam(r, vcardconv.DefaultQRSize))
	if err != nil {
		zerolog.Ctx(r.Context()).Err(err).Msg("Failed to encode QR code")
		jsonResponse(w, http.StatusInternalServerError, Error{Error: "Failed to encode QR code", ErrCode: "M_UNKNOWN"})
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
