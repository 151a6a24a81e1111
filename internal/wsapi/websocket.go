package wsapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dietplan/dietplan/internal/middleware"
)

const (
	pingPeriod = 25 * time.Second
	pongWait   = 60 * time.Second
	writeWait  = 10 * time.Second
	maxMessage = 64 << 10
)

// Origin checks are left to the proxy that sets the caller header.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWebsocket upgrades the request and answers commands in arrival order
// until the client goes away. The caller is fixed at upgrade time.
func (s *Server) handleWebsocket(c *gin.Context) {
	caller := middleware.GetCaller(c)
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	log := s.log.With(zap.String("conn_id", middleware.GetRequestID(c)), zap.String("caller", caller))
	log.Debug("websocket connected")
	s.conns.Add(1)
	if s.metrics != nil {
		s.metrics.ConnOpened()
	}
	done := make(chan struct{})
	defer func() {
		close(done)
		conn.Close()
		s.conns.Add(-1)
		if s.metrics != nil {
			s.metrics.ConnClosed()
		}
		log.Debug("websocket closed")
	}()

	conn.SetReadLimit(maxMessage)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// keep the connection alive through proxies
	go func() {
		t := time.NewTicker(pingPeriod)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			}
		}
	}()

	ctx := c.Request.Context()
	for {
		mt, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("websocket read", zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		resp := s.Dispatch(ctx, caller, raw)
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(resp); err != nil {
			log.Debug("websocket write", zap.Error(err))
			return
		}
	}
}
