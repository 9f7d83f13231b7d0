package main

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"xwire/xnet"
)

type pingMsg struct {
	Seq  int    `json:"seq" yaml:"seq" codec:"seq"`
	Text string `json:"text" yaml:"text" codec:"text"`
}

type pingHandler struct {
	open chan struct{}
	msgs chan *xnet.Message
}

func (h *pingHandler) OnOpen(s xnet.Sessioner, reopen bool) {
	select {
	case h.open <- struct{}{}:
	default:
	}
}

func (h *pingHandler) OnClose(s xnet.Sessioner) {}

func (h *pingHandler) OnMessage(s xnet.Sessioner, msg *xnet.Message) {
	h.msgs <- msg
}

func pingCmd() *cobra.Command {
	var (
		addr  string
		count int
		size  int
	)
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Send messages to an xwired server and check the echoes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, proto, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			tp, err := xnet.ParseTransmitProto(cfg.Server.Protocol)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
				if tp == xnet.ProtocolWS {
					addr = "ws://" + addr + cfg.Server.WSPath
				}
			}
			h := &pingHandler{open: make(chan struct{}, 1), msgs: make(chan *xnet.Message, count)}
			cli, err := xnet.PostDial(&xnet.ClientConfig{
				Protocol: tp,
				Addr:     addr,
				Handler:  h,
				Factory:  xnet.NewFrameStreamFactory(proto, cfg.Server.Timeout.Duration, cfg.Server.ReadBufSize),
			})
			if err != nil {
				return err
			}
			defer cli.Close()

			select {
			case <-h.open:
			case <-time.After(10 * time.Second):
				return errors.Errorf("connect %s timeout", addr)
			}

			text := make([]byte, size)
			for i := range text {
				text[i] = 'a' + byte(i%26)
			}
			out := cmd.OutOrStdout()
			for i := 0; i < count; i++ {
				start := time.Now()
				if err := cli.SyncSend(pingMsg{Seq: i, Text: string(text)}); err != nil {
					return err
				}
				select {
				case msg := <-h.msgs:
					var echo pingMsg
					if err := msg.Decode(&echo); err != nil {
						return err
					}
					if echo.Seq != i || len(echo.Text) != size {
						return errors.Errorf("bad echo seq=%d len=%d", echo.Seq, len(echo.Text))
					}
					fmt.Fprintf(out, "seq=%d bytes=%d compressed=%v time=%v\n", i, len(msg.Body), msg.Compressed(), time.Since(start))
				case <-time.After(10 * time.Second):
					return errors.Errorf("seq %d timeout", i)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "server address, defaults to server.addr of the config")
	cmd.Flags().IntVarP(&count, "count", "n", 4, "number of messages")
	cmd.Flags().IntVar(&size, "size", 64, "text size of each message")
	return cmd
}
