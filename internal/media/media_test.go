package media_test

import (
	"os"
	"path/filepath"
	"testing"

	"mediacompress/internal/media"
)

func TestClassify(t *testing.T) {
	jpg := media.Classifier{ImageFormat: "jpg"}
	avif := media.Classifier{ImageFormat: "avif", IncludeHEIC: true}

	tests := []struct {
		name       string
		classifier media.Classifier
		input      string
		wantKind   media.Kind
		wantOutput string
	}{
		{name: "jpg to jpg", classifier: jpg, input: "photo.jpg", wantKind: media.KindImage, wantOutput: "photo.jpg"},
		{name: "jpeg normalized", classifier: jpg, input: "IMG_001.JPEG", wantKind: media.KindImage, wantOutput: "IMG_001.jpg"},
		{name: "jpg to avif", classifier: avif, input: "photo.jpg", wantKind: media.KindImage, wantOutput: "photo.avif"},
		{name: "video keeps name", classifier: avif, input: "Clip.MP4", wantKind: media.KindVideo, wantOutput: "Clip.MP4"},
		{name: "heic disabled", classifier: jpg, input: "live.heic", wantKind: media.KindUnsupported, wantOutput: "live.heic"},
		{name: "heic enabled", classifier: avif, input: "live.HEIC", wantKind: media.KindImage, wantOutput: "live.avif"},
		{name: "unsupported", classifier: jpg, input: "notes.txt", wantKind: media.KindUnsupported, wantOutput: "notes.txt"},
		{name: "no extension", classifier: jpg, input: "README", wantKind: media.KindUnsupported, wantOutput: "README"},
		{name: "mov unsupported", classifier: jpg, input: "clip.mov", wantKind: media.KindUnsupported, wantOutput: "clip.mov"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, output := tt.classifier.Classify(tt.input)
			if kind != tt.wantKind || output != tt.wantOutput {
				t.Fatalf("Classify(%q) = (%s, %q), want (%s, %q)", tt.input, kind, output, tt.wantKind, tt.wantOutput)
			}
		})
	}
}

func TestNewTaskDerivesOutputPath(t *testing.T) {
	task := media.NewTask("/data/in/photo.jpeg", "/data/out", media.Classifier{ImageFormat: "avif"})
	if task.Name != "photo.jpeg" || task.Kind != media.KindImage {
		t.Fatalf("unexpected task %+v", task)
	}
	if task.OutputPath != "/data/out/photo.avif" || task.TargetExt != ".avif" {
		t.Fatalf("unexpected output %q ext %q", task.OutputPath, task.TargetExt)
	}
	if media.KindVideo.String() != "video" || media.Kind(42).String() != "unsupported" {
		t.Fatal("unexpected kind strings")
	}
}

// exifJPEG is a minimal JPEG carrying only an APP1 EXIF block with
// Orientation=6.
var exifJPEG = []byte{
	0xFF, 0xD8, // SOI
	0xFF, 0xE1, 0x00, 0x22, // APP1, length 34
	'E', 'x', 'i', 'f', 0x00, 0x00,
	'M', 'M', 0x00, 0x2A, 0x00, 0x00, 0x00, 0x08, // TIFF header, IFD0 at 8
	0x00, 0x01, // one entry
	0x01, 0x12, 0x00, 0x03, 0x00, 0x00, 0x00, 0x01, 0x00, 0x06, 0x00, 0x00, // Orientation SHORT 6
	0x00, 0x00, 0x00, 0x00, // no next IFD
	0xFF, 0xD9, // EOI
}

func TestReadImageInfo(t *testing.T) {
	dir := t.TempDir()
	withExif := filepath.Join(dir, "rotated.jpg")
	if err := os.WriteFile(withExif, exifJPEG, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	info, err := media.ReadImageInfo(withExif)
	if err != nil {
		t.Fatalf("ReadImageInfo: %v", err)
	}
	if info.Orientation != 6 || !info.Rotated() {
		t.Fatalf("unexpected info %+v", info)
	}
	if !info.Taken.IsZero() {
		t.Fatalf("expected no capture time, got %s", info.Taken)
	}

	plain := filepath.Join(dir, "plain.jpg")
	if err := os.WriteFile(plain, []byte{0xFF, 0xD8, 0xFF, 0xD9}, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := media.ReadImageInfo(plain); err == nil {
		t.Fatal("expected error for JPEG without EXIF")
	}
	if _, err := media.ReadImageInfo(filepath.Join(dir, "missing.jpg")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
