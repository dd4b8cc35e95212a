package tag

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	oggHeaderSize     = 27
	oggMaxSegments    = 255
	oggContinued      = 0x01
	oggNoGranule      = ^uint64(0)
	oggCapturePattern = "OggS"
)

var errOggHeaderBoundary = errors.New("ogg header packets do not end on a page boundary")

var oggCRCTable = func() [256]uint32 {
	var table [256]uint32
	for i := range table {
		r := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if r&0x80000000 != 0 {
				r = (r << 1) ^ 0x04c11db7
			} else {
				r <<= 1
			}
		}
		table[i] = r
	}
	return table
}()

func oggCRC(data []byte) uint32 {
	var crc uint32
	for _, b := range data {
		crc = (crc << 8) ^ oggCRCTable[byte(crc>>24)^b]
	}
	return crc
}

type oggPage struct {
	version    byte
	headerType byte
	granule    uint64
	serial     uint32
	sequence   uint32
	segments   []byte
	payload    []byte
}

// endsPacket reports whether the last lacing value terminates a packet.
func (p *oggPage) endsPacket() bool {
	return len(p.segments) > 0 && p.segments[len(p.segments)-1] < 255
}

func (p *oggPage) marshal() []byte {
	buf := make([]byte, oggHeaderSize+len(p.segments)+len(p.payload))
	copy(buf, oggCapturePattern)
	buf[4] = p.version
	buf[5] = p.headerType
	binary.LittleEndian.PutUint64(buf[6:], p.granule)
	binary.LittleEndian.PutUint32(buf[14:], p.serial)
	binary.LittleEndian.PutUint32(buf[18:], p.sequence)
	buf[26] = byte(len(p.segments))
	copy(buf[oggHeaderSize:], p.segments)
	copy(buf[oggHeaderSize+len(p.segments):], p.payload)
	binary.LittleEndian.PutUint32(buf[22:], oggCRC(buf))
	return buf
}

func parseOggPages(data []byte) ([]oggPage, error) {
	var pages []oggPage
	for off := 0; off < len(data); {
		if len(data)-off < oggHeaderSize || string(data[off:off+4]) != oggCapturePattern {
			return nil, fmt.Errorf("invalid ogg page at offset %d", off)
		}
		nsegs := int(data[off+26])
		head := off + oggHeaderSize
		if len(data) < head+nsegs {
			return nil, fmt.Errorf("truncated ogg page at offset %d", off)
		}
		segments := data[head : head+nsegs]
		size := 0
		for _, s := range segments {
			size += int(s)
		}
		body := head + nsegs
		if len(data) < body+size {
			return nil, fmt.Errorf("truncated ogg page at offset %d", off)
		}

		page := oggPage{
			version:    data[off+4],
			headerType: data[off+5],
			granule:    binary.LittleEndian.Uint64(data[off+6:]),
			serial:     binary.LittleEndian.Uint32(data[off+14:]),
			sequence:   binary.LittleEndian.Uint32(data[off+18:]),
			segments:   segments,
			payload:    data[body : body+size],
		}

		raw := make([]byte, body+size-off)
		copy(raw, data[off:body+size])
		crc := binary.LittleEndian.Uint32(raw[22:])
		binary.LittleEndian.PutUint32(raw[22:], 0)
		if oggCRC(raw) != crc {
			return nil, fmt.Errorf("ogg page %d has a bad checksum", page.sequence)
		}

		pages = append(pages, page)
		off = body + size
	}
	if len(pages) == 0 {
		return nil, errors.New("no ogg pages found")
	}
	return pages, nil
}

// oggHeaders locates the n packets following the identification page.
// It returns the packets and the index of the page the last one ends on.
func oggHeaders(pages []oggPage, n int) ([][]byte, int, error) {
	if !pages[0].endsPacket() {
		return nil, 0, errOggHeaderBoundary
	}
	serial := pages[0].serial
	var packets [][]byte
	var current []byte
	for idx := 1; idx < len(pages); idx++ {
		page := pages[idx]
		if page.serial != serial {
			return nil, 0, errors.New("multiplexed ogg streams are not supported")
		}
		pos := 0
		for s, lace := range page.segments {
			current = append(current, page.payload[pos:pos+int(lace)]...)
			pos += int(lace)
			if lace == 255 {
				continue
			}
			packets = append(packets, current)
			current = nil
			if len(packets) == n {
				if s != len(page.segments)-1 {
					return nil, 0, errOggHeaderBoundary
				}
				return packets, idx, nil
			}
		}
	}
	return nil, 0, errors.New("ogg stream ended before the header packets")
}

// paginate lays packets out on fresh pages starting at sequence seq.
func paginate(packets [][]byte, serial, seq uint32, version byte) []oggPage {
	var pages []oggPage
	page := oggPage{version: version, serial: serial, sequence: seq, granule: oggNoGranule}
	flush := func(continued bool) {
		pages = append(pages, page)
		seq++
		page = oggPage{version: version, serial: serial, sequence: seq, granule: oggNoGranule}
		if continued {
			page.headerType = oggContinued
		}
	}

	for _, packet := range packets {
		rest := packet
		for {
			lace := min(len(rest), 255)
			page.segments = append(page.segments, byte(lace))
			page.payload = append(page.payload, rest[:lace]...)
			rest = rest[lace:]
			done := lace < 255
			if done {
				page.granule = 0
			}
			if len(page.segments) == oggMaxSegments {
				flush(!done)
			}
			if done {
				break
			}
		}
	}
	if len(page.segments) > 0 {
		pages = append(pages, page)
	}
	return pages
}

// rewriteOggComment swaps the comment packet of an Ogg stream and renumbers the pages after it.
// headerPackets is the number of packets after the identification page that belong to the header
// (2 for Vorbis: comment and setup, 1 for Opus).
func rewriteOggComment(data []byte, headerPackets int, edit func(comment []byte) ([]byte, error)) ([]byte, error) {
	pages, err := parseOggPages(data)
	if err != nil {
		return nil, err
	}
	packets, last, err := oggHeaders(pages, headerPackets)
	if err != nil {
		return nil, err
	}

	comment, err := edit(packets[0])
	if err != nil {
		return nil, err
	}
	packets[0] = comment

	first := pages[0]
	header := paginate(packets, first.serial, first.sequence+1, first.version)

	var out bytes.Buffer
	out.Write(first.marshal())
	for i := range header {
		out.Write(header[i].marshal())
	}
	seq := first.sequence + uint32(len(header)) + 1
	for _, page := range pages[last+1:] {
		if page.serial == first.serial {
			page.sequence = seq
			seq++
		}
		out.Write(page.marshal())
	}
	return out.Bytes(), nil
}
