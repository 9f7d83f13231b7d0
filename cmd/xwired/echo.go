package main

import (
	"context"
	"time"

	"xwire/xlog"
	"xwire/xnet"
)

type echoHandler struct{}

func (h *echoHandler) OnOpen(s xnet.Sessioner, reopen bool) {
	xlog.Debugf("session %d open from %s", s.ID(), s.RemoteAddr())
}

func (h *echoHandler) OnClose(s xnet.Sessioner) {
	xlog.Debugf("session %d closed", s.ID())
}

func (h *echoHandler) OnMessage(s xnet.Sessioner, msg *xnet.Message) {
	if err := s.SyncSendBytes(msg.Body); err != nil {
		xlog.Warnf("session %d echo err=%v", s.ID(), err)
	}
}

// processLoop drives ProcessEvent for servers running in post event mode.
func processLoop(ctx context.Context, srv xnet.Server) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for !srv.ProcessEvent() {
			}
		}
	}
}
