package loader

import (
	"bytes"
	"io/ioutil"

	"github.com/pkg/errors"
)

// LoadFile picks the format by content: ELF kernels by magic, anything else
// is read as a TOML layout profile.
func LoadFile(path string) (*Image, error) {
	p, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	r := bytes.NewReader(p)
	if MatchElf(r) {
		img, err := LoadElf(r)
		if err != nil {
			return nil, errors.Wrap(err, path)
		}
		img.Source = path
		return img, nil
	}
	return LoadProfile(path)
}
