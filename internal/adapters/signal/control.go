package signal

import "github.com/liangshengmoran/Nine-chat-backend/internal/core"

func (ctl *SignalWSController) handlePing(conn *WsSignalConn) {
	ctl.sendJSON(conn, core.EventPong, nil)
}
