package signal

import (
	"context"
	"encoding/json"

	"github.com/liangshengmoran/Nine-chat-backend/internal/core"
)

func (ctl *SignalWSController) handleUpdateUserInfo(ctx context.Context, sid core.SessionID, raw json.RawMessage) error {
	p, err := decode[core.UpdateUserInfo](raw)
	if err != nil {
		return err
	}
	return ctl.Orch.UpdateUserInfo(ctx, sid, p)
}
