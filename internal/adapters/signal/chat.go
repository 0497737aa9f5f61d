package signal

import (
	"context"
	"encoding/json"

	"github.com/liangshengmoran/Nine-chat-backend/internal/core"
	"github.com/liangshengmoran/Nine-chat-backend/internal/domain"
)

func (ctl *SignalWSController) handleMessage(ctx context.Context, sid core.SessionID, uid domain.UserID, raw json.RawMessage) error {
	p, err := decode[core.SendMessage](raw)
	if err != nil {
		return err
	}
	if ctl.Limiter != nil && !ctl.Limiter.Allow(uid) {
		return core.Invalid("you are sending messages too fast")
	}
	return ctl.Orch.SendMessage(ctx, sid, p)
}

func (ctl *SignalWSController) handleRecall(ctx context.Context, sid core.SessionID, raw json.RawMessage) error {
	p, err := decode[core.RecallMessage](raw)
	if err != nil {
		return err
	}
	return ctl.Orch.RecallMessage(ctx, sid, p)
}

func (ctl *SignalWSController) handleDelete(ctx context.Context, sid core.SessionID, raw json.RawMessage) error {
	p, err := decode[core.DeleteMessage](raw)
	if err != nil {
		return err
	}
	return ctl.Orch.DeleteMessage(ctx, sid, p)
}
