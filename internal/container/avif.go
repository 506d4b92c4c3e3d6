package container

import (
	"errors"
	"fmt"
)

var ErrNotAVIF = errors.New("container: not an AVIF file")

// IsAVIF reports whether data starts with an ftyp box branded avif or avis.
func IsAVIF(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	brand := string(data[8:12])
	return brand == "avif" || brand == "avis"
}

// AVIFPlanes sums the extents of every av01 item. Items that point at another
// item through an auxl reference hold alpha; the rest hold color.
func AVIFPlanes(data []byte) (Planes, error) {
	if !IsAVIF(data) {
		return Planes{}, ErrNotAVIF
	}
	top, err := readBoxes(data)
	if err != nil {
		return Planes{}, err
	}
	meta, ok := findBox(top, "meta")
	if !ok {
		return Planes{}, fmt.Errorf("container: missing meta box")
	}
	if len(meta.payload) < 4 {
		return Planes{}, ErrTruncated
	}
	children, err := readBoxes(meta.payload[4:])
	if err != nil {
		return Planes{}, fmt.Errorf("container: meta: %w", err)
	}

	iinf, ok := findBox(children, "iinf")
	if !ok {
		return Planes{}, fmt.Errorf("container: missing iinf box")
	}
	itemTypes, err := parseIINF(iinf.payload)
	if err != nil {
		return Planes{}, err
	}

	iloc, ok := findBox(children, "iloc")
	if !ok {
		return Planes{}, fmt.Errorf("container: missing iloc box")
	}
	sizes, err := parseILOC(iloc.payload)
	if err != nil {
		return Planes{}, err
	}

	auxiliary := map[uint32]bool{}
	if iref, ok := findBox(children, "iref"); ok {
		auxiliary, err = parseAuxl(iref.payload)
		if err != nil {
			return Planes{}, err
		}
	}

	var planes Planes
	for id, typ := range itemTypes {
		if typ != "av01" {
			continue
		}
		if auxiliary[id] {
			planes.Alpha += sizes[id]
		} else {
			planes.Color += sizes[id]
		}
	}
	if planes.Color+planes.Alpha > len(data) {
		return Planes{}, fmt.Errorf("container: item extents exceed file size")
	}
	return planes, nil
}

func parseIINF(payload []byte) (map[uint32]string, error) {
	r := &reader{b: payload}
	version := r.fullBox()
	if version == 0 {
		r.u16()
	} else {
		r.u32()
	}
	if r.err != nil {
		return nil, fmt.Errorf("container: iinf: %w", r.err)
	}

	entries, err := readBoxes(r.b)
	if err != nil {
		return nil, fmt.Errorf("container: iinf entries: %w", err)
	}

	types := make(map[uint32]string, len(entries))
	for _, e := range entries {
		if e.typ != "infe" {
			continue
		}
		er := &reader{b: e.payload}
		v := er.fullBox()
		if v < 2 {
			continue
		}
		id := er.itemID(v >= 3)
		er.u16() // item_protection_index
		typ := er.fourcc()
		if er.err != nil {
			return nil, fmt.Errorf("container: infe: %w", er.err)
		}
		types[id] = typ
	}
	return types, nil
}

func parseILOC(payload []byte) (map[uint32]int, error) {
	r := &reader{b: payload}
	version := r.fullBox()
	if version > 2 {
		return nil, fmt.Errorf("container: iloc version %d", version)
	}
	sizesByte := r.u8()
	offsetSize, lengthSize := int(sizesByte>>4), int(sizesByte&0x0f)
	sizesByte = r.u8()
	baseOffsetSize, indexSize := int(sizesByte>>4), 0
	if version == 1 || version == 2 {
		indexSize = int(sizesByte & 0x0f)
	}

	var count uint32
	if version < 2 {
		count = uint32(r.u16())
	} else {
		count = r.u32()
	}

	sizes := make(map[uint32]int, count)
	for i := uint32(0); i < count && r.err == nil; i++ {
		id := r.itemID(version == 2)
		if version == 1 || version == 2 {
			r.u16() // construction_method
		}
		r.u16() // data_reference_index
		r.uintN(baseOffsetSize)
		extents := r.u16()
		total := 0
		for j := uint16(0); j < extents && r.err == nil; j++ {
			if indexSize > 0 {
				r.uintN(indexSize)
			}
			r.uintN(offsetSize)
			total += int(r.uintN(lengthSize))
		}
		sizes[id] = total
	}
	if r.err != nil {
		return nil, fmt.Errorf("container: iloc: %w", r.err)
	}
	return sizes, nil
}

func parseAuxl(payload []byte) (map[uint32]bool, error) {
	r := &reader{b: payload}
	wide := r.fullBox() != 0
	if r.err != nil {
		return nil, fmt.Errorf("container: iref: %w", r.err)
	}

	refs, err := readBoxes(r.b)
	if err != nil {
		return nil, fmt.Errorf("container: iref entries: %w", err)
	}

	aux := map[uint32]bool{}
	for _, ref := range refs {
		if ref.typ != "auxl" {
			continue
		}
		rr := &reader{b: ref.payload}
		from := rr.itemID(wide)
		if rr.err != nil {
			return nil, fmt.Errorf("container: auxl: %w", rr.err)
		}
		aux[from] = true
	}
	return aux, nil
}
