package bot

import (
	"context"
	"errors"

	"github.com/liangshengmoran/Nine-chat-backend/internal/core"
)

// Fanout publishes to every hook and joins their errors.
type Fanout []core.BotHook

func (f Fanout) Publish(ctx context.Context, u core.BotUpdate) error {
	var errs []error
	for _, h := range f {
		if err := h.Publish(ctx, u); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
