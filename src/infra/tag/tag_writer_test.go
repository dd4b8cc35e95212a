package tag

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"image"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/bogem/id3v2/v2"
	"github.com/contre95/usbdeck/src/features/config"
	"github.com/contre95/usbdeck/src/music"
	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	goflac "github.com/go-flac/go-flac"
	"github.com/zhaarey/go-mp4tag"
)

func TestApplyFLAC(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.flac", minimalFLAC())
	cover := writeFile(t, dir, "cover.png", pngImage(t, 8, 8))
	writer := NewTagWriter(nil)

	patch := music.MetadataPatch{Album: "Road Trip", Genre: "Rock", CoverPath: cover}
	if err := writer.Apply(context.Background(), path, patch); err != nil {
		t.Fatalf("first apply failed: %v", err)
	}
	patch.Album = "Road Trip 2"
	if err := writer.Apply(context.Background(), path, patch); err != nil {
		t.Fatalf("second apply failed: %v", err)
	}

	f, err := goflac.ParseFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var pictures int
	var vc *flacvorbis.MetaDataBlockVorbisComment
	for _, meta := range f.Meta {
		switch meta.Type {
		case goflac.Picture:
			pictures++
			pic, err := flacpicture.ParseFromMetaDataBlock(*meta)
			if err != nil {
				t.Fatal(err)
			}
			if pic.MIME != "image/png" || pic.PictureType != flacpicture.PictureTypeFrontCover {
				t.Errorf("unexpected picture %s type %d", pic.MIME, pic.PictureType)
			}
		case goflac.VorbisComment:
			vc, err = flacvorbis.ParseFromMetaDataBlock(*meta)
			if err != nil {
				t.Fatal(err)
			}
		}
	}
	if pictures != 1 {
		t.Errorf("expected exactly one picture block, got %d", pictures)
	}
	if vc == nil {
		t.Fatal("expected a vorbis comment block")
	}
	albums, _ := vc.Get(flacvorbis.FIELD_ALBUM)
	if !slices.Equal(albums, []string{"Road Trip 2"}) {
		t.Errorf("expected album to be replaced, got %v", albums)
	}
	genres, _ := vc.Get(flacvorbis.FIELD_GENRE)
	if !slices.Equal(genres, []string{"Rock"}) {
		t.Errorf("expected single genre, got %v", genres)
	}

	leftovers, _ := filepath.Glob(filepath.Join(dir, ".a.*"))
	if len(leftovers) != 0 {
		t.Errorf("expected temp files to be cleaned up, found %v", leftovers)
	}
}

func TestApplyFLACKeepsOtherComments(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.flac", minimalFLAC())

	f, err := goflac.ParseFile(path)
	if err != nil {
		t.Fatal(err)
	}
	vc := flacvorbis.New()
	vc.Add(flacvorbis.FIELD_TITLE, "Keep me")
	vc.Add("album", "lower case album")
	block := vc.Marshal()
	f.Meta = append(f.Meta, &block)
	if err := replaceFile(path, f.Save); err != nil {
		t.Fatal(err)
	}

	if err := NewTagWriter(nil).Apply(context.Background(), path, music.MetadataPatch{Album: "New"}); err != nil {
		t.Fatal(err)
	}

	f, err = goflac.ParseFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, meta := range f.Meta {
		if meta.Type != goflac.VorbisComment {
			continue
		}
		vc, _ := flacvorbis.ParseFromMetaDataBlock(*meta)
		if !slices.Contains(vc.Comments, "TITLE=Keep me") {
			t.Errorf("expected title to survive, got %v", vc.Comments)
		}
		if slices.Contains(vc.Comments, "album=lower case album") || !slices.Contains(vc.Comments, "ALBUM=New") {
			t.Errorf("expected album replaced case-insensitively, got %v", vc.Comments)
		}
	}
}

func TestApplyCorruptFLAC(t *testing.T) {
	dir := t.TempDir()
	original := []byte("this is not a flac file")
	path := writeFile(t, dir, "a.flac", original)

	err := NewTagWriter(nil).Apply(context.Background(), path, music.MetadataPatch{Genre: "Rock"})
	if err == nil {
		t.Fatal("expected an error for a corrupt container")
	}
	got, _ := os.ReadFile(path)
	if !bytes.Equal(got, original) {
		t.Error("expected corrupt file to be left untouched")
	}
}

func TestApplyMP3(t *testing.T) {
	dir := t.TempDir()
	audio := bytes.Repeat([]byte{0xFF, 0xFB, 0x90, 0x00}, 64)
	path := writeFile(t, dir, "a.mp3", audio)
	cover := writeFile(t, dir, "cover.jpg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 1, 2, 3})
	writer := NewTagWriter(nil)

	for _, album := range []string{"First", "Second"} {
		patch := music.MetadataPatch{Album: album, Genre: "Jazz", CoverPath: cover}
		if err := writer.Apply(context.Background(), path, patch); err != nil {
			t.Fatalf("apply failed: %v", err)
		}
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatal(err)
	}
	defer tag.Close()
	if tag.Album() != "Second" || tag.Genre() != "Jazz" {
		t.Errorf("unexpected tags album=%q genre=%q", tag.Album(), tag.Genre())
	}
	pictures := tag.GetFrames(tag.CommonID("Attached picture"))
	if len(pictures) != 1 {
		t.Fatalf("expected one attached picture, got %d", len(pictures))
	}
	pic, ok := pictures[0].(id3v2.PictureFrame)
	if !ok || pic.MimeType != "image/jpeg" || pic.PictureType != id3v2.PTFrontCover {
		t.Errorf("unexpected picture frame %+v", pictures[0])
	}
}

func TestApplyOggVorbis(t *testing.T) {
	dir := t.TempDir()
	identification := append([]byte("\x01vorbis"), make([]byte, 23)...)
	comment := append(append([]byte(vorbisCommentPrefix), commentBody(t, "TITLE=Keep", "ALBUM=Old", "GENRE=Pop")...), 0x01)
	setup := append([]byte("\x05vorbis"), bytes.Repeat([]byte{0xAA}, 600)...)
	audio := bytes.Repeat([]byte{0x55}, 300)
	path := writeFile(t, dir, "a.ogg", oggStream(identification, [][]byte{comment, setup}, audio))
	cover := writeFile(t, dir, "cover.png", pngImage(t, 4, 4))

	patch := music.MetadataPatch{Album: "New", Genre: "Rock", CoverPath: cover}
	if err := NewTagWriter(nil).Apply(context.Background(), path, patch); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	fields := readOggComments(t, path, formatVorbis)
	if !slices.Equal(fields["ALBUM"], []string{"New"}) || !slices.Equal(fields["GENRE"], []string{"Rock"}) {
		t.Errorf("unexpected album/genre %v %v", fields["ALBUM"], fields["GENRE"])
	}
	if !slices.Equal(fields["TITLE"], []string{"Keep"}) {
		t.Errorf("expected title to survive, got %v", fields["TITLE"])
	}
	assertOggPicture(t, fields, "image/png")

	data, _ := os.ReadFile(path)
	pages, err := parseOggPages(data)
	if err != nil {
		t.Fatal(err)
	}
	for i, page := range pages {
		if page.sequence != uint32(i) {
			t.Errorf("page %d has sequence %d", i, page.sequence)
		}
	}
	packets, last, err := oggHeaders(pages, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(packets[1], setup) {
		t.Error("setup packet changed")
	}
	if tail := pages[last+1]; !bytes.Equal(tail.payload, audio) || tail.granule != 44100 || tail.headerType != 0x04 {
		t.Errorf("audio page changed: granule=%d flags=%x", tail.granule, tail.headerType)
	}
}

func TestApplyOggLargeCover(t *testing.T) {
	dir := t.TempDir()
	identification := append([]byte("\x01vorbis"), make([]byte, 23)...)
	comment := append(append([]byte(vorbisCommentPrefix), commentBody(t, "TITLE=Big")...), 0x01)
	setup := append([]byte("\x05vorbis"), 1, 2, 3)
	path := writeFile(t, dir, "a.oga", oggStream(identification, [][]byte{comment, setup}, []byte{9, 9, 9}))

	big := make([]byte, 100*1024)
	rand.Read(big)
	cover := writeFile(t, dir, "cover.jpg", big)

	if err := NewTagWriter(nil).Apply(context.Background(), path, music.MetadataPatch{CoverPath: cover}); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	pages, err := parseOggPages(data)
	if err != nil {
		t.Fatal(err)
	}
	_, last, err := oggHeaders(pages, 2)
	if err != nil {
		t.Fatal(err)
	}
	if last < 2 {
		t.Fatalf("expected the comment header to span several pages, header ends on page %d", last)
	}
	for i := 2; i <= last; i++ {
		if pages[i].headerType&oggContinued == 0 {
			t.Errorf("page %d should be flagged as a continuation", i)
		}
	}
	if pages[1].granule != oggNoGranule {
		t.Errorf("page 1 completes no packet, expected granule -1, got %d", pages[1].granule)
	}

	fields := readOggComments(t, path, formatVorbis)
	raw, err := base64.StdEncoding.DecodeString(fields[pictureField][0])
	if err != nil {
		t.Fatal(err)
	}
	pic, err := flacpicture.ParseFromMetaDataBlock(goflac.MetaDataBlock{Type: goflac.Picture, Data: raw})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(pic.ImageData, big) {
		t.Error("cover bytes do not round-trip")
	}
}

func TestApplyOpus(t *testing.T) {
	dir := t.TempDir()
	head := append([]byte("OpusHead"), 1, 2, 0x38, 0x01, 0x80, 0xBB, 0, 0, 0, 0, 0)
	tags := append([]byte(opusTagsPrefix), commentBody(t, "ALBUM=Old", "METADATA_BLOCK_PICTURE=stale")...)
	path := writeFile(t, dir, "a.opus", oggStream(head, [][]byte{tags}, []byte{1, 2, 3, 4}))
	cover := writeFile(t, dir, "cover.bmp", []byte("BMnot-really-a-bitmap"))

	patch := music.MetadataPatch{Album: "New", CoverPath: cover}
	if err := NewTagWriter(nil).Apply(context.Background(), path, patch); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	fields := readOggComments(t, path, formatOpus)
	if !slices.Equal(fields["ALBUM"], []string{"New"}) {
		t.Errorf("unexpected album %v", fields["ALBUM"])
	}
	assertOggPicture(t, fields, "image/bmp")
}

func TestApplyOggHeaderNotOnPageBoundary(t *testing.T) {
	dir := t.TempDir()
	identification := append([]byte("\x01vorbis"), make([]byte, 23)...)
	comment := append(append([]byte(vorbisCommentPrefix), commentBody(t)...), 0x01)
	setup := []byte("\x05vorbis")

	first := oggPage{headerType: 0x02, serial: 7}
	first.segments, first.payload = lace(identification)
	mixed := oggPage{serial: 7, sequence: 1}
	mixed.segments, mixed.payload = lace(comment, setup, []byte{1, 2, 3})
	var stream bytes.Buffer
	stream.Write(first.marshal())
	stream.Write(mixed.marshal())
	original := stream.Bytes()
	path := writeFile(t, dir, "a.ogg", original)

	err := NewTagWriter(nil).Apply(context.Background(), path, music.MetadataPatch{Genre: "Rock"})
	if !errors.Is(err, errOggHeaderBoundary) {
		t.Fatalf("expected boundary error, got %v", err)
	}
	got, _ := os.ReadFile(path)
	if !bytes.Equal(got, original) {
		t.Error("file must not change on failure")
	}
}

func TestOggBadChecksum(t *testing.T) {
	identification := append([]byte("\x01vorbis"), make([]byte, 23)...)
	comment := append(append([]byte(vorbisCommentPrefix), commentBody(t)...), 0x01)
	data := oggStream(identification, [][]byte{comment, []byte("\x05vorbis")}, []byte{1})
	data[len(data)-1] ^= 0xFF
	if _, err := parseOggPages(data); err == nil {
		t.Error("expected checksum error")
	}
}

func TestApplyUnsupported(t *testing.T) {
	dir := t.TempDir()
	files := map[string][]byte{
		"a.wav": []byte("RIFF\x24\x00\x00\x00WAVEfmt "),
		"a.wma": append([]byte{0x30, 0x26, 0xB2, 0x75, 0x8E, 0x66, 0xCF, 0x11}, make([]byte, 200)...),
	}
	for name, data := range files {
		path := writeFile(t, dir, name, data)
		err := NewTagWriter(nil).Apply(context.Background(), path, music.MetadataPatch{Album: "x"})
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("%s: expected ErrUnsupportedFormat, got %v", name, err)
		}
	}
}

func TestApplyAACWritesID3(t *testing.T) {
	dir := t.TempDir()
	frames := append([]byte{0xFF, 0xF1, 0x50, 0x80, 0x02, 0x1F, 0xFC}, "adts payload"...)
	path := writeFile(t, dir, "a.aac", frames)
	writer := NewTagWriter(nil)

	if err := writer.Apply(context.Background(), path, music.MetadataPatch{Album: "Road Trip"}); err != nil {
		t.Fatalf("first apply failed: %v", err)
	}
	// Now the file starts with ID3, it must still be treated as ADTS.
	if err := writer.Apply(context.Background(), path, music.MetadataPatch{Genre: "Rock"}); err != nil {
		t.Fatalf("second apply failed: %v", err)
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatal(err)
	}
	defer tag.Close()
	if tag.Album() != "Road Trip" || tag.Genre() != "Rock" {
		t.Errorf("unexpected tags album=%q genre=%q", tag.Album(), tag.Genre())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasSuffix(data, frames) {
		t.Error("ADTS frames must follow the tag untouched")
	}
}

func TestApplyAACHoldingMP4(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.aac", minimalMP4(true))

	if err := NewTagWriter(nil).Apply(context.Background(), path, music.MetadataPatch{Album: "Road Trip"}); err != nil {
		t.Fatal(err)
	}
	m, err := mp4tag.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()
	tags, err := m.Read()
	if err != nil {
		t.Fatal(err)
	}
	if tags.Album != "Road Trip" {
		t.Errorf("expected the MP4 strategy, album=%q", tags.Album)
	}
}

func TestApplySniffsUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "track.bin", minimalFLAC())

	if err := NewTagWriter(nil).Apply(context.Background(), path, music.MetadataPatch{Genre: "Ambient"}); err != nil {
		t.Fatalf("expected sniffed FLAC to be tagged, got %v", err)
	}
	f, err := goflac.ParseFile(path)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, meta := range f.Meta {
		if meta.Type == goflac.VorbisComment {
			vc, _ := flacvorbis.ParseFromMetaDataBlock(*meta)
			found = slices.Contains(vc.Comments, "GENRE=Ambient")
		}
	}
	if !found {
		t.Error("expected genre to be written")
	}
}

func TestApplyCommentOnlyIsNoOp(t *testing.T) {
	dir := t.TempDir()
	original := []byte("garbage that no strategy could parse")
	path := writeFile(t, dir, "a.flac", original)

	patch := music.MetadataPatch{Comment: "hello", CoverPath: filepath.Join(dir, "missing.jpg")}
	if err := NewTagWriter(nil).Apply(context.Background(), path, patch); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
	got, _ := os.ReadFile(path)
	if !bytes.Equal(got, original) {
		t.Error("expected file to stay untouched")
	}
}

func TestCoverMIME(t *testing.T) {
	cases := map[string]string{
		"a.png":  "image/png",
		"A.PNG":  "image/png",
		"a.bmp":  "image/bmp",
		"a.jpg":  "image/jpeg",
		"a.webp": "image/jpeg",
		"a":      "image/jpeg",
	}
	for path, want := range cases {
		if got := coverMIME(path); got != want {
			t.Errorf("coverMIME(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestLoadCoverResizes(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cover.png", pngImage(t, 400, 200))
	writer := NewTagWriter(config.NewManager(&config.Config{Cover: config.Cover{MaxSize: 100, Quality: 90}}))

	cov, err := writer.loadCover(path)
	if err != nil {
		t.Fatal(err)
	}
	img, format, err := image.Decode(bytes.NewReader(cov.data))
	if err != nil {
		t.Fatal(err)
	}
	if format != "png" || img.Bounds().Dx() != 100 || img.Bounds().Dy() != 50 {
		t.Errorf("expected 100x50 png, got %s %v", format, img.Bounds())
	}
}

func TestApplyMP4(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.m4a", minimalMP4(true))
	art := pngImage(t, 8, 8)
	cover := writeFile(t, dir, "cover.png", art)
	writer := NewTagWriter(config.NewManager(&config.Config{Tools: config.Tools{FFmpeg: filepath.Join(dir, "no-ffmpeg")}}))

	patch := music.MetadataPatch{Album: "Road Trip", Genre: "Rock", CoverPath: cover}
	if err := writer.Apply(context.Background(), path, patch); err != nil {
		t.Fatalf("first apply failed: %v", err)
	}
	patch.Album = "Road Trip 2"
	if err := writer.Apply(context.Background(), path, patch); err != nil {
		t.Fatalf("second apply failed: %v", err)
	}

	m, err := mp4tag.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()
	tags, err := m.Read()
	if err != nil {
		t.Fatal(err)
	}
	if tags.Album != "Road Trip 2" || tags.CustomGenre != "Rock" {
		t.Errorf("unexpected tags album=%q genre=%q", tags.Album, tags.CustomGenre)
	}
	if len(tags.Pictures) != 1 {
		t.Fatalf("expected the cover to replace older pictures, got %d", len(tags.Pictures))
	}
	if tags.Pictures[0].Format != mp4tag.ImageTypePNG || !bytes.Equal(tags.Pictures[0].Data, art) {
		t.Errorf("unexpected picture format %d, %d bytes", tags.Pictures[0].Format, len(tags.Pictures[0].Data))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte("fake aac frames")) {
		t.Error("audio payload was lost")
	}
}

func TestApplyMP4WithoutIlstFallsBackToFFmpeg(t *testing.T) {
	dir := t.TempDir()
	original := minimalMP4(false)
	path := writeFile(t, dir, "a.m4a", original)
	writer := NewTagWriter(config.NewManager(&config.Config{Tools: config.Tools{FFmpeg: filepath.Join(dir, "no-ffmpeg")}}))

	err := writer.Apply(context.Background(), path, music.MetadataPatch{Album: "Road Trip"})
	if err == nil || !strings.Contains(err.Error(), "ffmpeg") || !strings.Contains(err.Error(), "ilst") {
		t.Fatalf("expected both strategies to be reported, got %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, original) {
		t.Error("file must be left untouched when no strategy could tag it")
	}
}

func TestMP4PictureReencodesBMP(t *testing.T) {
	pic, err := mp4Picture(&cover{data: bmpImage(t, 4, 4), mime: "image/bmp"})
	if err != nil {
		t.Fatal(err)
	}
	if pic.Format != mp4tag.ImageTypePNG || !bytes.HasPrefix(pic.Data, []byte("\x89PNG")) {
		t.Errorf("expected a PNG covr entry, got format %d", pic.Format)
	}
}

func TestMP4Args(t *testing.T) {
	withCover := mp4Args("in.m4a", "out.m4a", "/tmp/c.jpg", &cover{mime: "image/jpeg"}, "Album", "")
	for _, want := range []string{"0:a", "attached_pic", "album=Album", "ipod"} {
		if !slices.Contains(withCover, want) {
			t.Errorf("expected %q in %v", want, withCover)
		}
	}
	if slices.Contains(withCover, "genre=") {
		t.Error("empty genre must not be written")
	}

	plain := mp4Args("in.mp4", "out.mp4", "", nil, "", "Rock")
	if !slices.Contains(plain, "genre=Rock") || !slices.Contains(plain, "mp4") || slices.Contains(plain, "attached_pic") {
		t.Errorf("unexpected args %v", plain)
	}
}

func assertOggPicture(t *testing.T, fields map[string][]string, mime string) {
	t.Helper()
	pictures := fields[pictureField]
	if len(pictures) != 1 {
		t.Fatalf("expected one picture comment, got %d", len(pictures))
	}
	raw, err := base64.StdEncoding.DecodeString(pictures[0])
	if err != nil {
		t.Fatal(err)
	}
	pic, err := flacpicture.ParseFromMetaDataBlock(goflac.MetaDataBlock{Type: goflac.Picture, Data: raw})
	if err != nil {
		t.Fatal(err)
	}
	if pic.MIME != mime || pic.PictureType != flacpicture.PictureTypeFrontCover {
		t.Errorf("unexpected picture %s type %d", pic.MIME, pic.PictureType)
	}
}
