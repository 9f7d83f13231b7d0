package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"xwire/xlog"
	"xwire/xmetric"
	"xwire/xnet"
	"xwire/xutil"
)

func serveCmd() *cobra.Command {
	var pidFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an echo server speaking the framed protocol",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, proto, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer xlog.Close()

			if pidFile != "" {
				pf, err := xutil.NewPidFile(pidFile)
				if err != nil {
					return err
				}
				defer pf.Remove()
			}

			tp, err := xnet.ParseTransmitProto(cfg.Server.Protocol)
			if err != nil {
				return err
			}
			srvCfg := &xnet.ServerConfig{
				Addr:          cfg.Server.Addr,
				PostEvent:     cfg.Server.PostEvent,
				Handler:       &echoHandler{},
				Factory:       xnet.NewFrameStreamFactory(proto, cfg.Server.Timeout.Duration, cfg.Server.ReadBufSize),
				MaxSessionNum: cfg.Server.MaxSessions,
				QueueBufLen:   cfg.Server.QueueBufLen,
				WSPath:        cfg.Server.WSPath,
			}
			srv, err := newServer(tp, srvCfg)
			if err != nil {
				return err
			}
			defer srv.Close()
			xlog.InfoF("xwired %s serving %s on %s, serializer=%s codec=%s compression=%v",
				xutil.Version, tp, srv.Addr(), proto.Serializer().Name(),
				proto.Compressor().Codec().Name(), proto.Compressor().Enabled())

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				err := xutil.WaitSignal(ctx)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return errSignal
			})
			if cfg.Server.PostEvent {
				g.Go(func() error {
					return processLoop(ctx, srv)
				})
			}
			if cfg.Metric.Addr != "" {
				host, port, err := cfg.MetricHostPort()
				if err != nil {
					return err
				}
				gather := xmetric.NewGather(xnet.NewMetricJob(srv), host, port).
					Program("xwired").
					Consul(cfg.Consul.Addr, cfg.Consul.ServiceName)
				gather.Init()
				g.Go(func() error {
					return gather.Serve(ctx)
				})
			}
			if err := g.Wait(); err != nil && !errors.Is(err, errSignal) {
				return err
			}
			xlog.InfoF("xwired stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&pidFile, "pid", "", "write pid to this file")
	return cmd
}

var errSignal = errors.New("stopped by signal")

func newServer(tp xnet.TransmitProto, cfg *xnet.ServerConfig) (xnet.Server, error) {
	switch tp {
	case xnet.ProtocolKCP:
		return xnet.NewKcpServer(cfg)
	case xnet.ProtocolWS:
		return xnet.NewWSServer(cfg)
	default:
		return xnet.NewTcpServer(cfg)
	}
}
