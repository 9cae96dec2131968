package echoapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/attendance"
)

const (
	wsWriteWait  = 5 * time.Second
	wsPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 10 * time.Second,
	CheckOrigin: func(r *http.Request) bool {
		return true // TODO: restrict origins once the frontend host is settled
	},
}

// live streams marking and lifecycle events of the teacher's session over a
// websocket. The stream closes itself once a terminal event (session ended or
// expired) has been delivered, or when the viewer disconnects.
func (api *attendanceApi) live(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	// ownership check before upgrading; invalid requests get a proper HTTP error
	s, err := api.svc.GetSession(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "finding session")
	}

	conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		return errors.Wrap(err, "upgrading connection")
	}
	defer conn.Close()

	sub := api.broadcaster.Subscribe(s.ID)
	defer sub.Close()

	// the read pump only detects disconnects; viewers never send data
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				sub.Close()
				return
			}
		}
	}()

	// single writer: events and pings both go through this loop
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return nil // viewer disconnected
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				return nil
			}
			if ev.Type == attendance.EventSessionEnded || ev.Type == attendance.EventSessionExpired {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(ev.Type))
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
				return nil
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return nil
			}
		}
	}
}
