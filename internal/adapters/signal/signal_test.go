package signal

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/liangshengmoran/Nine-chat-backend/internal/core"
)

func TestWsSignalConn_Backpressure(t *testing.T) {
	c := &WsSignalConn{send: make(chan core.Frame, 1)}
	if err := c.TrySend(core.Frame("a")); err != nil {
		t.Fatalf("first send error = %v", err)
	}
	if err := c.TrySend(core.Frame("b")); !errors.Is(err, ErrBackpressure) {
		t.Fatalf("full buffer error = %v, want ErrBackpressure", err)
	}
	c.Close()
	c.Close()
	if err := c.TrySend(core.Frame("c")); !errors.Is(err, ErrConnClosed) {
		t.Fatalf("send after close error = %v, want ErrConnClosed", err)
	}
	if f, ok := <-c.send; !ok || string(f) != "a" {
		t.Fatal("queued frame should still be drained after close")
	}
	if _, ok := <-c.send; ok {
		t.Fatal("send channel should be closed")
	}
}

func TestDecode(t *testing.T) {
	p, err := decode[core.ChooseMusic](json.RawMessage(`{"music_mid":"42"}`))
	if err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if p.MusicID != "42" || p.Source == "" {
		t.Errorf("decoded = %+v", p)
	}

	if _, err := decode[core.ChooseMusic](json.RawMessage(`{}`)); !errors.Is(err, core.ErrBadPayload) {
		t.Errorf("missing mid error = %v", err)
	}
	if _, err := decode[core.KickUser](json.RawMessage(`not json`)); !errors.Is(err, core.ErrBadPayload) {
		t.Errorf("garbage error = %v", err)
	}
	if _, err := decode[core.CutMusic](nil); err != nil {
		t.Errorf("empty cut payload error = %v", err)
	}
	m, err := decode[core.SendMessage](json.RawMessage(`{"message_content":"hi"}`))
	if err != nil || m.Type != "text" {
		t.Errorf("message = %+v, %v", m, err)
	}
}

func TestReply(t *testing.T) {
	ctl := &SignalWSController{}
	c := &WsSignalConn{send: make(chan core.Frame, 4)}

	ctl.reply(c, "s", "chooseMusic", nil)
	ctl.reply(c, "s", "chooseMusic", &core.Denial{Kind: core.ValidationFailure, Msg: "slow down", Remaining: 3})
	ctl.reply(c, "s", "kickUser", core.ErrBadPayload)
	ctl.reply(c, "s", "kickUser", core.ErrNoSession)

	if got := len(c.send); got != 2 {
		t.Fatalf("frames = %d, want 2", got)
	}
	var env struct {
		Type string    `json:"type"`
		Data core.Tips `json:"data"`
	}
	if err := json.Unmarshal(<-c.send, &env); err != nil {
		t.Fatal(err)
	}
	if env.Type != core.EventTips || env.Data.Code != core.CodeDenied || env.Data.Remaining != 3 {
		t.Errorf("denial frame = %+v", env)
	}
}
