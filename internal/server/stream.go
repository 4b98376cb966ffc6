package server

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"conductor/internal/async"
	"conductor/internal/ports"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// streamBuffer bounds per-client queueing; events beyond it are
	// dropped so a stalled client cannot block the pipeline.
	streamBuffer = 16

	// stageConnected is the synthetic first frame on every stream.
	stageConnected = "connected"
)

// streamConn is one websocket subscriber. An empty conversation
// subscribes to every request's events.
type streamConn struct {
	conn         *websocket.Conn
	send         chan ports.PipelineEvent
	done         chan struct{}
	closeOnce    sync.Once
	conversation string
}

func (sc *streamConn) close() {
	sc.closeOnce.Do(func() {
		close(sc.done)
		_ = sc.conn.Close()
	})
}

// OnEvent implements ports.EventListener. It runs on the request path and
// must never block: full client queues drop the event.
func (s *Server) OnEvent(event ports.PipelineEvent) {
	s.streamMu.RLock()
	defer s.streamMu.RUnlock()
	for sc := range s.streams {
		if sc.conversation != "" && sc.conversation != event.ConversationID {
			continue
		}
		select {
		case sc.send <- event:
		default:
			s.logger.Debug("Dropping %s event for slow stream client", event.Stage)
		}
	}
}

// handleEvents upgrades the request and streams pipeline events until the
// client disconnects. The ?conversation= query filters to one conversation.
func (s *Server) handleEvents(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("Stream upgrade failed: %v", err)
		return
	}

	sc := &streamConn{
		conn:         conn,
		send:         make(chan ports.PipelineEvent, streamBuffer),
		done:         make(chan struct{}),
		conversation: c.Query("conversation"),
	}
	// Queued before the conn is registered, so it is always the first frame.
	sc.send <- ports.PipelineEvent{
		Stage:          stageConnected,
		ConversationID: sc.conversation,
		At:             time.Now(),
	}

	s.addStream(sc)
	defer s.removeStream(sc)

	s.wg.Add(1)
	async.Go(s.logger, "stream-writer", func() {
		defer s.wg.Done()
		s.writePump(sc)
	})

	s.readPump(sc)
}

// readPump discards client frames; it exists to surface disconnects and
// answer pings. It blocks until the connection dies.
func (s *Server) readPump(sc *streamConn) {
	sc.conn.SetReadLimit(512)
	_ = sc.conn.SetReadDeadline(time.Now().Add(pongWait))
	sc.conn.SetPongHandler(func(string) error {
		return sc.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := sc.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump owns all writes on the connection.
func (s *Server) writePump(sc *streamConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.removeStream(sc)
	}()

	for {
		select {
		case event := <-sc.send:
			_ = sc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sc.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = sc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-sc.done:
			_ = sc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = sc.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (s *Server) addStream(sc *streamConn) {
	s.streamMu.Lock()
	s.streams[sc] = struct{}{}
	total := len(s.streams)
	s.streamMu.Unlock()
	s.logger.Debug("Stream client connected (%d active)", total)
}

func (s *Server) removeStream(sc *streamConn) {
	s.streamMu.Lock()
	_, registered := s.streams[sc]
	delete(s.streams, sc)
	total := len(s.streams)
	s.streamMu.Unlock()
	sc.close()
	if registered {
		s.logger.Debug("Stream client disconnected (%d active)", total)
	}
}

func (s *Server) closeAllStreams() {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()
	for sc := range s.streams {
		sc.close()
		delete(s.streams, sc)
	}
}
