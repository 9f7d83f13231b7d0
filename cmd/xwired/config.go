package main

import (
	"github.com/spf13/cobra"

	"xwire/xconfig"
	"xwire/xlog"
	"xwire/xnet"
)

// loadConfig 读取 --config, 初始化日志并安装编解码默认值.
func loadConfig(cmd *cobra.Command) (*xconfig.Config, *xnet.Protocol, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg := xconfig.Default()
	if path != "" {
		var err error
		if cfg, err = xconfig.Load(path); err != nil {
			return nil, nil, err
		}
	}
	if err := xlog.Configure(cfg.Log); err != nil {
		return nil, nil, err
	}
	proto, err := cfg.Setup()
	if err != nil {
		return nil, nil, err
	}
	return cfg, proto, nil
}
