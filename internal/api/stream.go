// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agricure/agricure-locate/internal/logger"
)

const (
	streamBuffer = 8
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleStream upgrades to a WebSocket and pushes every state snapshot, starting with the current
// one. Clients only need to read; anything they send is discarded.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("failed to upgrade websocket connection", logger.Err(err))
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			s.log.Debug("failed to close websocket connection", logger.Err(err))
		}
	}()

	states, unsub := s.backend.Subscribe(streamBuffer)
	defer unsub()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			s.log.Debug("websocket client disconnected", slog.String("remote", r.RemoteAddr))
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if err = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		case state, ok := <-states:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err = conn.WriteJSON(positionResponse{Status: state.Status(), State: state}); err != nil {
				s.log.Debug("failed to write state to websocket", logger.Err(err))
				return
			}
		}
	}
}
