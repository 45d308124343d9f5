package models

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/pkg/errors"

	"github.com/lunixbochs/bootcorn/go/models/mem"
)

// savestate format:
//
// file header
// uint32(savestate format version)
// uint32(crc32 of compressed data)
// uint64(length of compressed data)
// remainder is gzip-compressed
//
// -- uncompressed data start --
// uint32(address bits)
// uint64(number of mapped pages)
// 1..num: uint64(addr), uint64(len), uint32(prot), uint16(desc len), desc, <raw memory bytes of len>

const saveVersion = 1

type saveHeader struct {
	Version uint32
	Crc     uint32
	Length  uint64
}

type savePage struct {
	Addr    uint64
	Size    uint64
	Prot    uint32
	DescLen int `struc:"uint16,sizeof=Desc"`
	Desc    string
}

// Save snapshots every mapped page of m.
func Save(m *mem.Mem) ([]byte, error) {
	var body bytes.Buffer
	s := &StrucStream{&body, binary.BigEndian}
	pages := m.Mappings()
	if err := s.Pack(uint32(m.Bits()), uint64(len(pages))); err != nil {
		return nil, err
	}
	for _, pg := range pages {
		rec := &savePage{Addr: pg.Addr, Size: pg.Size, Prot: uint32(pg.Prot), Desc: pg.Desc}
		if err := s.Pack(rec); err != nil {
			return nil, errors.Wrapf(err, "packing page %s", pg)
		}
		body.Write(pg.Data)
	}

	var tmp bytes.Buffer
	gz := gzip.NewWriter(&tmp)
	if _, err := body.WriteTo(gz); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	data := tmp.Bytes()

	var final bytes.Buffer
	s = &StrucStream{&final, binary.BigEndian}
	hdr := &saveHeader{Version: saveVersion, Crc: crc32.ChecksumIEEE(data), Length: uint64(len(data))}
	if err := s.Pack(hdr); err != nil {
		return nil, err
	}
	final.Write(data)
	return final.Bytes(), nil
}

// Load rebuilds a little-endian memory from a snapshot made by Save.
func Load(p []byte) (*mem.Mem, error) {
	r := bytes.NewBuffer(p)
	s := &StrucStream{r, binary.BigEndian}
	var hdr saveHeader
	if err := s.Unpack(&hdr); err != nil {
		return nil, errors.Wrap(err, "reading savestate header")
	}
	if hdr.Version != saveVersion {
		return nil, errors.Errorf("unsupported savestate version %d", hdr.Version)
	}
	if uint64(r.Len()) != hdr.Length {
		return nil, errors.Errorf("savestate length mismatch: header says %d, have %d", hdr.Length, r.Len())
	}
	if crc32.ChecksumIEEE(r.Bytes()) != hdr.Crc {
		return nil, errors.New("savestate checksum mismatch")
	}
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "opening savestate body")
	}
	var body bytes.Buffer
	if _, err := io.Copy(&body, gz); err != nil {
		return nil, errors.Wrap(err, "decompressing savestate")
	}
	s = &StrucStream{&body, binary.BigEndian}

	var bits uint32
	var count uint64
	if err := s.Unpack(&bits, &count); err != nil {
		return nil, err
	}
	if bits == 0 || bits > 64 {
		return nil, errors.Errorf("bad address width %d", bits)
	}
	m := mem.NewMem(uint(bits), binary.LittleEndian)
	for i := uint64(0); i < count; i++ {
		var rec savePage
		if err := s.Unpack(&rec); err != nil {
			return nil, errors.Wrapf(err, "reading page %d", i)
		}
		if uint64(body.Len()) < rec.Size {
			return nil, errors.Errorf("page %d truncated", i)
		}
		if err := m.MemMap(rec.Addr, rec.Size, int(rec.Prot), rec.Desc); err != nil {
			return nil, err
		}
		if err := m.MemWrite(rec.Addr, body.Next(int(rec.Size))); err != nil {
			return nil, err
		}
	}
	return m, nil
}
