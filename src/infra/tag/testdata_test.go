package tag

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-flac/flacvorbis"
	goflac "github.com/go-flac/go-flac"
	"golang.org/x/image/bmp"
)

// minimalFLAC returns a FLAC file with a single STREAMINFO block describing three seconds
// of 44.1kHz stereo audio, followed by a few fake frame bytes.
func minimalFLAC() []byte {
	var si bytes.Buffer
	binary.Write(&si, binary.BigEndian, uint16(4096)) // min block size
	binary.Write(&si, binary.BigEndian, uint16(4096)) // max block size
	si.Write([]byte{0, 0, 0, 0, 0, 0})                // min/max frame size
	packed := uint64(44100)<<44 | uint64(1)<<41 | uint64(15)<<36 | uint64(3*44100)
	binary.Write(&si, binary.BigEndian, packed)
	si.Write(make([]byte, 16)) // md5

	var out bytes.Buffer
	out.WriteString("fLaC")
	out.WriteByte(0x80) // last block, STREAMINFO
	out.Write([]byte{0, 0, byte(si.Len())})
	out.Write(si.Bytes())
	out.Write([]byte{0xFF, 0xF8, 0x69, 0x18, 0x00, 0x00})
	return out.Bytes()
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func pngImage(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// commentBody encodes a Vorbis comment body the way both Ogg codecs store it.
func commentBody(t *testing.T, comments ...string) []byte {
	t.Helper()
	vc := flacvorbis.New()
	vc.Vendor = "usbdeck test"
	for _, cmt := range comments {
		key, value, _ := strings.Cut(cmt, "=")
		if err := vc.Add(key, value); err != nil {
			t.Fatal(err)
		}
	}
	return vc.Marshal().Data
}

// oggStream assembles a single logical stream: the identification page, the header packets,
// and one audio page.
func oggStream(identification []byte, header [][]byte, audio []byte) []byte {
	const serial = 0x1234
	var out bytes.Buffer

	first := oggPage{headerType: 0x02, serial: serial, sequence: 0}
	first.segments, first.payload = lace(identification)
	first.granule = 0
	out.Write(first.marshal())

	pages := paginate(header, serial, 1, 0)
	for i := range pages {
		out.Write(pages[i].marshal())
	}

	last := oggPage{headerType: 0x04, serial: serial, sequence: uint32(len(pages) + 1), granule: 44100}
	last.segments, last.payload = lace(audio)
	out.Write(last.marshal())
	return out.Bytes()
}

func lace(packets ...[]byte) ([]byte, []byte) {
	var segments, payload []byte
	for _, p := range packets {
		rest := p
		for {
			n := min(len(rest), 255)
			segments = append(segments, byte(n))
			payload = append(payload, rest[:n]...)
			rest = rest[n:]
			if n < 255 {
				break
			}
		}
	}
	return segments, payload
}

// readOggComments returns upper-cased comment fields of an Ogg file.
func readOggComments(t *testing.T, path string, f format) map[string][]string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	prefix, n := vorbisCommentPrefix, 2
	if f == formatOpus {
		prefix, n = opusTagsPrefix, 1
	}
	pages, err := parseOggPages(data)
	if err != nil {
		t.Fatalf("rewritten stream does not parse: %v", err)
	}
	packets, _, err := oggHeaders(pages, n)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(packets[0], []byte(prefix)) {
		t.Fatalf("comment packet lost its %q prefix", prefix)
	}
	vc, err := flacvorbis.ParseFromMetaDataBlock(goflac.MetaDataBlock{Type: goflac.VorbisComment, Data: packets[0][len(prefix):]})
	if err != nil {
		t.Fatal(err)
	}
	fields := make(map[string][]string)
	for _, cmt := range vc.Comments {
		key, value, _ := strings.Cut(cmt, "=")
		fields[strings.ToUpper(key)] = append(fields[strings.ToUpper(key)], value)
	}
	return fields
}

func mp4Box(name string, payload ...[]byte) []byte {
	body := bytes.Join(payload, nil)
	out := make([]byte, 8, 8+len(body))
	binary.BigEndian.PutUint32(out, uint32(8+len(body)))
	copy(out[4:], name)
	return append(out, body...)
}

// minimalMP4 returns an M4A with one chunk of fake audio ahead of the moov box. withIlst
// controls whether moov.udta.meta carries an empty ilst.
func minimalMP4(withIlst bool) []byte {
	ftyp := mp4Box("ftyp", []byte("M4A "), make([]byte, 4), []byte("M4A isom"))
	mdat := mp4Box("mdat", []byte("fake aac frames"))

	stco := make([]byte, 12)
	binary.BigEndian.PutUint32(stco[4:], 1)
	binary.BigEndian.PutUint32(stco[8:], uint32(len(ftyp)+8))
	trak := mp4Box("trak", mp4Box("mdia", mp4Box("minf", mp4Box("stbl", mp4Box("stco", stco)))))

	meta := [][]byte{make([]byte, 4)}
	if withIlst {
		meta = append(meta, mp4Box("ilst"))
	}
	moov := mp4Box("moov", trak, mp4Box("udta", mp4Box("meta", meta...)))
	return bytes.Join([][]byte{ftyp, mdat, moov}, nil)
}

func bmpImage(t *testing.T, width, height int) []byte {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(pngImage(t, width, height)))
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
