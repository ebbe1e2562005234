// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/darshanparajuli/logcatreader/pkg/ds"
	"github.com/darshanparajuli/logcatreader/pkg/panichandler"
	"github.com/darshanparajuli/logcatreader/pkg/utilds"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const wsReadWaitTimeout = 15 * time.Second
const wsWriteWaitTimeout = 10 * time.Second
const wsPingPeriodTickTime = 10 * time.Second
const wsInitialPingTime = 1 * time.Second

const (
	WsMsgRecords = "records"
	WsMsgStatus  = "status"
	WsMsgPing    = "ping"
	WsMsgPong    = "pong"
)

type RecordsMessage struct {
	Type    string      `json:"type"`
	Records []ds.Record `json:"records"`
}

type StatusMessage struct {
	Type string `json:"type"`
	ds.SessionEvent
}

var conns = utilds.MakeSyncMap[string, *websocket.Conn]() // connId => conn

var WebSocketUpgrader = websocket.Upgrader{
	ReadBufferSize:   4 * 1024,
	WriteBufferSize:  32 * 1024,
	HandshakeTimeout: 1 * time.Second,
	CheckOrigin:      func(r *http.Request) bool { return true },
}

func (s *Server) HandleWs(w http.ResponseWriter, r *http.Request) {
	err := s.HandleWsInternal(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func getMessageType(jmsg map[string]any) string {
	if str, ok := jmsg["type"].(string); ok {
		return str
	}
	return ""
}

// ReadLoop handles client pings and keeps the read deadline fresh. Clients only
// send keepalives; everything else is ignored.
func ReadLoop(conn *websocket.Conn, outputCh chan any, closeCh chan any, connId string) {
	readWait := wsReadWaitTimeout
	conn.SetReadLimit(64 * 1024)
	conn.SetReadDeadline(time.Now().Add(readWait))
	defer close(closeCh)
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.WithField("conn", connId).Debugf("read loop done: %v", err)
			break
		}
		jmsg := map[string]any{}
		err = json.Unmarshal(message, &jmsg)
		if err != nil {
			log.WithField("conn", connId).Warnf("error unmarshalling json: %v", err)
			break
		}
		conn.SetReadDeadline(time.Now().Add(readWait))
		msgType := getMessageType(jmsg)
		if msgType == WsMsgPing {
			pongMessage := map[string]any{"type": WsMsgPong, "stime": time.Now().UnixMilli()}
			select {
			case outputCh <- pongMessage:
			default:
			}
		}
	}
}

func WritePing(conn *websocket.Conn) error {
	pingMessage := map[string]any{"type": WsMsgPing, "stime": time.Now().UnixMilli()}
	jsonVal, _ := json.Marshal(pingMessage)
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWaitTimeout)) // no error
	return conn.WriteMessage(websocket.TextMessage, jsonVal)
}

func WriteLoop(conn *websocket.Conn, outputCh chan any, closeCh chan any, connId string) {
	ticker := time.NewTicker(wsInitialPingTime)
	defer ticker.Stop()
	initialPing := true
	for {
		select {
		case msg := <-outputCh:
			barr, err := json.Marshal(msg)
			if err != nil {
				log.WithField("conn", connId).Errorf("cannot marshal websocket message: %v", err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWaitTimeout))
			err = conn.WriteMessage(websocket.TextMessage, barr)
			if err != nil {
				conn.Close()
				log.WithField("conn", connId).Debugf("write loop error: %v", err)
				return
			}

		case <-ticker.C:
			err := WritePing(conn)
			if err != nil {
				conn.Close()
				log.WithField("conn", connId).Debugf("write loop error: %v", err)
				return
			}
			if initialPing {
				initialPing = false
				ticker.Reset(wsPingPeriodTickTime)
			}

		case <-closeCh:
			return
		}
	}
}

func NumConns() int {
	return conns.Len()
}

// CloseAllConns closes every open websocket; their handlers exit on the read error.
func CloseAllConns() {
	for _, conn := range conns.Values() {
		conn.Close()
	}
}

// forward copies one subscription into the connection's output channel until
// either side closes.
func forward[T any](ch <-chan T, outputCh chan any, closeCh chan any, toMsg func(T) any) {
	defer func() {
		panichandler.PanicHandler("ws:forward", recover())
	}()
	for {
		select {
		case item, ok := <-ch:
			if !ok {
				return
			}
			select {
			case outputCh <- toMsg(item):
			case <-closeCh:
				return
			}
		case <-closeCh:
			return
		}
	}
}

func (s *Server) HandleWsInternal(w http.ResponseWriter, r *http.Request) error {
	conn, err := WebSocketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("WebSocket Upgrade Failed: %v", err)
	}
	defer conn.Close()

	connId := uuid.New().String()
	outputCh := make(chan any, 100)
	closeCh := make(chan any)

	log.WithField("conn", connId).Infof("new websocket connection from %s", r.RemoteAddr)

	conns.Set(connId, conn)
	defer conns.Delete(connId)

	statusSub := s.Controller.SubscribeStatus()
	defer statusSub.Close()
	recordSub := s.Controller.Subscribe()
	defer recordSub.Close()

	wg := &sync.WaitGroup{}
	wg.Add(4)

	go func() {
		defer wg.Done()
		ReadLoop(conn, outputCh, closeCh, connId)
	}()
	go func() {
		defer wg.Done()
		WriteLoop(conn, outputCh, closeCh, connId)
	}()
	go func() {
		defer wg.Done()
		forward(statusSub.C(), outputCh, closeCh, func(events []ds.SessionEvent) any {
			return StatusMessage{Type: WsMsgStatus, SessionEvent: events[len(events)-1]}
		})
	}()
	go func() {
		defer wg.Done()
		forward(recordSub.C(), outputCh, closeCh, func(recs []ds.Record) any {
			return RecordsMessage{Type: WsMsgRecords, Records: recs}
		})
	}()

	wg.Wait()
	return nil
}
