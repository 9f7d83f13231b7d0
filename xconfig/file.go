package xconfig

import (
	"os"

	"github.com/pkg/errors"
)

func readFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	return b, nil
}
