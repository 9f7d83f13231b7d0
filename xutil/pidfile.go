package xutil

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// PidFile 启动时写入 pid, 退出时删除.
type PidFile struct {
	path string
}

func NewPidFile(path string) (*PidFile, error) {
	data := []byte(strconv.Itoa(os.Getpid()) + "\n")
	if err := os.WriteFile(path, data, os.FileMode(0600)); err != nil {
		return nil, errors.Wrapf(err, "write pid file %s", path)
	}
	return &PidFile{path: path}, nil
}

func (f *PidFile) Path() string {
	return f.path
}

func (f *PidFile) Remove() error {
	if f == nil || f.path == "" {
		return nil
	}
	err := os.Remove(f.path)
	f.path = ""
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
