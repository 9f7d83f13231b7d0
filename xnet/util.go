package xnet

import (
	"strings"

	"github.com/pkg/errors"

	"xwire/xlog"
)

// 检测是否需要打该log
func errNetLog(err error, str string) {
	errstr := err.Error()
	if !strings.Contains(errstr, "use of closed network connection") &&
		!strings.Contains(errstr, "EOF") &&
		!strings.Contains(errstr, "io: read/write on closed pipe") &&
		!errors.Is(err, errSessionClosed) &&
		!strings.Contains(errstr, "websocket: close") &&
		!strings.Contains(errstr, "read: connection reset by peer") {
		xlog.ErrorfSkip(1, "%s", str)
	}
}
