package xutil

import (
	"fmt"
	"runtime"
)

// 编译时通过 -ldflags "-X xwire/xutil.Version=..." 注入
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func VersionString() string {
	return fmt.Sprintf("version=%s commit=%s build=%s go=%s %s/%s",
		Version, GitCommit, BuildTime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
