package mem

import (
	"fmt"
	"sort"
	"strings"
)

// Page is one contiguous mapping of physical memory.
type Page struct {
	Addr uint64
	Size uint64
	Prot int
	Data []byte

	// Desc names the mapping in memory maps, e.g. ".data" or "heap".
	Desc string
}

func (p *Page) End() uint64 {
	return p.Addr + p.Size
}

func (p *Page) String() string {
	prot := []byte("---")
	for i, c := range "rwx" {
		if p.Prot&(1<<uint(i)) != 0 {
			prot[i] = byte(c)
		}
	}
	desc := fmt.Sprintf("0x%08x-0x%08x %s", p.Addr, p.End(), prot)
	if p.Desc != "" {
		desc += fmt.Sprintf(" [%s]", p.Desc)
	}
	return desc
}

func (p *Page) Contains(addr uint64) bool {
	return addr >= p.Addr && addr < p.End()
}

// Intersect returns the overlap of the page and [addr, addr+size).
// start = max(s1, s2), end = min(e1, e2), ok = end > start
func (p *Page) Intersect(addr, size uint64) (uint64, uint64, bool) {
	start, end := p.Addr, p.End()
	if addr > start {
		start = addr
	}
	if e := addr + size; e < end {
		end = e
	}
	if end <= start {
		return 0, 0, false
	}
	return start, end - start, true
}

func (p *Page) Overlaps(addr, size uint64) bool {
	_, _, ok := p.Intersect(addr, size)
	return ok
}

func (p *Page) slice(addr, size uint64) *Page {
	o := addr - p.Addr
	return &Page{Addr: addr, Size: size, Prot: p.Prot, Data: p.Data[o : o+size], Desc: p.Desc}
}

// Split cuts [addr, addr+size) out of the page. The page itself is
// narrowed to the intersection and the pieces left over on either side
// are returned (nil when empty).
//
//   [----left----][--page--][----right----]
//   p.Addr        addr      addr+size     p.End()
func (p *Page) Split(addr, size uint64) (left, right *Page) {
	start, n, ok := p.Intersect(addr, size)
	if !ok {
		return nil, nil
	}
	if end := start + n; end < p.End() {
		right = p.slice(end, p.End()-end)
	}
	if start > p.Addr {
		left = p.slice(p.Addr, start-p.Addr)
	}
	o := start - p.Addr
	p.Data = p.Data[o : o+n]
	p.Addr, p.Size = start, n
	return left, right
}

type Pages []*Page

func (p Pages) Len() int           { return len(p) }
func (p Pages) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }
func (p Pages) Less(i, j int) bool { return p[i].Addr < p[j].Addr }

func (p Pages) String() string {
	s := make([]string, len(p))
	for i, v := range p {
		s[i] = v.String()
	}
	return strings.Join(s, "\n")
}

// bsearch returns the index of the page containing addr, or -1.
func (p Pages) bsearch(addr uint64) int {
	i := sort.Search(len(p), func(i int) bool { return p[i].End() > addr })
	if i < len(p) && p[i].Contains(addr) {
		return i
	}
	return -1
}

func (p Pages) Find(addr uint64) *Page {
	if i := p.bsearch(addr); i >= 0 {
		return p[i]
	}
	return nil
}

// FindRange returns every page overlapping [addr, addr+size).
func (p Pages) FindRange(addr, size uint64) Pages {
	var out Pages
	for _, pg := range p {
		if pg.Overlaps(addr, size) {
			out = append(out, pg)
		}
	}
	return out
}
