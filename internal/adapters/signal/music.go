package signal

import (
	"context"
	"encoding/json"

	"github.com/liangshengmoran/Nine-chat-backend/internal/core"
)

func (ctl *SignalWSController) handleChooseMusic(ctx context.Context, sid core.SessionID, raw json.RawMessage) error {
	p, err := decode[core.ChooseMusic](raw)
	if err != nil {
		return err
	}
	return ctl.Orch.ChooseMusic(ctx, sid, p)
}

func (ctl *SignalWSController) handleCutMusic(ctx context.Context, sid core.SessionID, raw json.RawMessage) error {
	p, err := decode[core.CutMusic](raw)
	if err != nil {
		return err
	}
	return ctl.Orch.CutMusic(ctx, sid, p)
}

func (ctl *SignalWSController) handleRemoveQueued(ctx context.Context, sid core.SessionID, raw json.RawMessage) error {
	p, err := decode[core.RemoveQueued](raw)
	if err != nil {
		return err
	}
	return ctl.Orch.RemoveQueued(ctx, sid, p)
}
