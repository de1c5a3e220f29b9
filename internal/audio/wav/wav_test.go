package wav

import (
	"encoding/binary"
	"go/parser"
	"go/token"
	"io/fs"
	"strconv"
	"strings"
	"testing"
)

func TestFloat32ToPCM16(t *testing.T) {
	out := Float32ToPCM16([]float32{0, 1, -1, 2, -2, 0.5})
	want := []int16{0, 32767, -32767, 32767, -32767, 16383}

	if len(out) != len(want)*2 {
		t.Fatalf("len = %d, want %d", len(out), len(want)*2)
	}
	for i, w := range want {
		if got := int16(binary.LittleEndian.Uint16(out[i*2:])); got != w {
			t.Errorf("sample %d = %d, want %d", i, got, w)
		}
	}
}

func TestHeader(t *testing.T) {
	h := Header(32000, 16000, 1, 16)

	if len(h) != HeaderSize {
		t.Fatalf("header length = %d, want %d", len(h), HeaderSize)
	}
	checks := []struct {
		name string
		got  uint32
		want uint32
	}{
		{"riff size", binary.LittleEndian.Uint32(h[4:8]), 36 + 32000},
		{"fmt size", binary.LittleEndian.Uint32(h[16:20]), 16},
		{"format", uint32(binary.LittleEndian.Uint16(h[20:22])), 1},
		{"channels", uint32(binary.LittleEndian.Uint16(h[22:24])), 1},
		{"sample rate", binary.LittleEndian.Uint32(h[24:28]), 16000},
		{"byte rate", binary.LittleEndian.Uint32(h[28:32]), 32000},
		{"block align", uint32(binary.LittleEndian.Uint16(h[32:34])), 2},
		{"bits", uint32(binary.LittleEndian.Uint16(h[34:36])), 16},
		{"data size", binary.LittleEndian.Uint32(h[40:44]), 32000},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %d, want %d", c.name, c.got, c.want)
		}
	}
	for _, tag := range []struct {
		at   int
		want string
	}{{0, "RIFF"}, {8, "WAVE"}, {12, "fmt "}, {36, "data"}} {
		if got := string(h[tag.at : tag.at+4]); got != tag.want {
			t.Errorf("tag at %d = %q, want %q", tag.at, got, tag.want)
		}
	}
}

func TestEncode(t *testing.T) {
	out := Encode([][]byte{{1, 2}, {3, 4, 5, 6}}, 16000, 1)

	if len(out) != HeaderSize+6 {
		t.Fatalf("len = %d, want %d", len(out), HeaderSize+6)
	}
	if got := binary.LittleEndian.Uint32(out[40:44]); got != 6 {
		t.Errorf("data size = %d, want 6", got)
	}
	if string(out[HeaderSize:]) != string([]byte{1, 2, 3, 4, 5, 6}) {
		t.Error("payload should be the chunks in order")
	}

	empty := Encode(nil, 16000, 1)
	if len(empty) != HeaderSize {
		t.Errorf("empty wav length = %d, want %d", len(empty), HeaderSize)
	}
}

func TestNoCgoImports(t *testing.T) {
	pkgs, err := parser.ParseDir(token.NewFileSet(), ".", func(fi fs.FileInfo) bool {
		return !strings.HasSuffix(fi.Name(), "_test.go")
	}, parser.ImportsOnly)
	if err != nil {
		t.Fatalf("ParseDir: %v", err)
	}
	for _, pkg := range pkgs {
		for name, f := range pkg.Files {
			for _, imp := range f.Imports {
				path, _ := strconv.Unquote(imp.Path.Value)
				if path == "C" || strings.Contains(path, "portaudio") {
					t.Errorf("%s imports %q", name, path)
				}
			}
		}
	}
}
