package api

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
)

// handleWebSocket upgrades the connection and hands it to the connection
// manager, which owns the subscribe/unsubscribe protocol. Blocks until the
// client disconnects.
func (s *Server) handleWebSocket(c *gin.Context) {
	opts := &websocket.AcceptOptions{}
	if len(s.cfg.AllowedWSOrigins) > 0 {
		opts.OriginPatterns = s.cfg.AllowedWSOrigins
	} else {
		// No allowlist configured: accept any origin. Deployments fronting
		// untrusted browsers must set allowed_ws_origins.
		opts.InsecureSkipVerify = true
	}

	conn, err := websocket.Accept(c.Writer, c.Request, opts)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "WS_UPGRADE_FAILED", Message: err.Error()})
		return
	}
	s.conns.HandleConnection(c.Request.Context(), conn)
}
