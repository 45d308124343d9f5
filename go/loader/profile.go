package loader

import (
	"encoding/hex"
	"io/ioutil"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/lunixbochs/bootcorn/go/models/mem"
)

// Profile describes a kernel image by its linker symbols instead of an ELF
// file. The initial .data contents come from hex or a file next to the
// profile.
type Profile struct {
	Entry   uint64            `toml:"entry"`
	Cmdline string            `toml:"cmdline"`
	Symbols map[string]uint64 `toml:"symbols"`
	Data    struct {
		Hex  string `toml:"hex"`
		File string `toml:"file"`
	} `toml:"data"`

	dir string
}

// DefaultProfile is used when no image is named and the user has no
// default profile of their own.
const DefaultProfile = `
entry = 0x100000
cmdline = "bootcorn"

[symbols]
__data_load  = 0x108000
__data_start = 0x200000
__data_end   = 0x200040
__bss_start  = 0x200040
__bss_end    = 0x201000
__heap_start = 0x210000
__heap_end   = 0x310000

[data]
hex = "48656c6c6f2066726f6d202e6461746121"
`

func ParseProfile(p []byte, dir string) (*Profile, error) {
	var prof Profile
	if err := toml.Unmarshal(p, &prof); err != nil {
		return nil, errors.Wrap(err, "profile")
	}
	prof.dir = dir
	return &prof, nil
}

func (p *Profile) data() ([]byte, error) {
	if p.Data.Hex != "" && p.Data.File != "" {
		return nil, errors.New("profile: data has both hex and file")
	}
	if p.Data.File != "" {
		path := p.Data.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(p.dir, path)
		}
		return ioutil.ReadFile(path)
	}
	b, err := hex.DecodeString(p.Data.Hex)
	return b, errors.Wrap(err, "profile: data.hex")
}

// Image resolves the profile into a boot image. The .data image is placed at
// __data_load and padded to the size of .data.
func (p *Profile) Image() (*Image, error) {
	img := &Image{Entry: p.Entry, Symbols: p.Symbols, Cmdline: p.Cmdline}
	l, err := img.Layout()
	if err != nil {
		return nil, err
	}
	data, err := p.data()
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) > l.DataLoad.Len() {
		return nil, errors.Errorf("profile: %d bytes of data do not fit in .data (%#x bytes)", len(data), l.DataLoad.Len())
	}
	if l.DataLoad.Len() > 0 {
		img.Segments = append(img.Segments, Segment{
			Addr: l.DataLoad.Start,
			Data: padTo(data, l.DataLoad.Len()),
			Prot: mem.PROT_READ,
			Desc: "profile",
		})
	}
	return img, nil
}

// Validate checks that the profile resolves to a usable image.
func (p *Profile) Validate() error {
	_, err := p.Image()
	return err
}

func LoadProfile(path string) (*Image, error) {
	p, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	prof, err := ParseProfile(p, filepath.Dir(path))
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	img, err := prof.Image()
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	img.Source = path
	return img, nil
}

func Default() (*Image, error) {
	prof, err := ParseProfile([]byte(DefaultProfile), "")
	if err != nil {
		return nil, err
	}
	img, err := prof.Image()
	if err != nil {
		return nil, err
	}
	img.Source = "<default>"
	return img, nil
}
