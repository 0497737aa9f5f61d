package signal

import (
	"context"
	"encoding/json"

	"github.com/liangshengmoran/Nine-chat-backend/internal/core"
)

func (ctl *SignalWSController) handleKick(ctx context.Context, sid core.SessionID, raw json.RawMessage) error {
	p, err := decode[core.KickUser](raw)
	if err != nil {
		return err
	}
	return ctl.Orch.Kick(ctx, sid, p)
}

func (ctl *SignalWSController) handleUpdateRoomInfo(ctx context.Context, sid core.SessionID, raw json.RawMessage) error {
	p, err := decode[core.UpdateRoomInfo](raw)
	if err != nil {
		return err
	}
	return ctl.Orch.UpdateRoomInfo(ctx, sid, p)
}
