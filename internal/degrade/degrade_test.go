package degrade

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/perceptionbench/kneepoint/internal/pipeline"
	"github.com/perceptionbench/kneepoint/internal/resolution"
)

func testContext(t *testing.T) (*pipeline.Context, string) {
	t.Helper()
	root := t.TempDir()
	cfg := &pipeline.Config{
		Preprocess: pipeline.PreprocessConfig{
			Method:            "padding",
			ImageSize:         32,
			Dir:               root,
			ValBaselineSubdir: "baseline",
			ValDegradedSubdir: "degraded_{effwidth}x{effheight}",
		},
	}
	ctx := pipeline.NewContext(cfg, nil)
	if err := os.MkdirAll(ctx.BaselineDir(), 0o755); err != nil {
		t.Fatal(err)
	}
	return ctx, ctx.BaselineDir()
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 8), uint8(y * 8), 100, 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func writeLabel(t *testing.T, imgPath string) {
	t.Helper()
	if err := os.WriteFile(LabelPath(imgPath), []byte("0 0.5 0.5 0.2 0.2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLabelPath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"val/img001.png", "val/img001.txt"},
		{"val/img001.JPG", "val/img001.txt"},
		{"val/img001.tiff", "val/img001.txt"},
		{"val/notes.md", "val/notes.md"},
	}
	for _, tt := range tests {
		if got := LabelPath(tt.in); got != tt.want {
			t.Errorf("LabelPath(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestDegrade_Resamples(t *testing.T) {
	ctx, baseline := testContext(t)
	for _, name := range []string{"a.png", "b.png"} {
		writePNG(t, filepath.Join(baseline, name), 32, 32)
		writeLabel(t, filepath.Join(baseline, name))
	}

	orig := resolution.Pair{Width: 32, Height: 32}
	eff := resolution.Pair{Width: 8, Height: 8}
	dir := ctx.DegradedDir(orig, eff)

	d := New(ctx)
	n, corrupted, err := d.Degrade(orig, eff, dir)
	if err != nil {
		t.Fatalf("Degrade failed: %v", err)
	}
	if n != 2 || corrupted != 0 {
		t.Errorf("got n=%d corrupted=%d, want 2, 0", n, corrupted)
	}

	for _, name := range []string{"a.png", "b.png", "a.txt", "b.txt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing degraded output %s: %v", name, err)
		}
	}

	// degraded image keeps the original tensor shape
	f, err := os.Open(filepath.Join(dir, "a.png"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 32 || img.Bounds().Dy() != 32 {
		t.Errorf("degraded size: got %v, want 32x32", img.Bounds())
	}
}

func TestDegrade_SameSizeCopiesVerbatim(t *testing.T) {
	ctx, baseline := testContext(t)
	src := filepath.Join(baseline, "a.png")
	writePNG(t, src, 32, 32)
	writeLabel(t, src)

	orig := resolution.Pair{Width: 32, Height: 32}
	dir := ctx.DegradedDir(orig, orig)

	d := New(ctx)
	if _, _, err := d.Degrade(orig, orig, dir); err != nil {
		t.Fatalf("Degrade failed: %v", err)
	}

	want, _ := os.ReadFile(src)
	got, err := os.ReadFile(filepath.Join(dir, "a.png"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(want) {
		t.Error("same-size degradation must be a byte-for-byte copy")
	}
}

func TestDegrade_Idempotent(t *testing.T) {
	ctx, baseline := testContext(t)
	src := filepath.Join(baseline, "a.png")
	writePNG(t, src, 32, 32)
	writeLabel(t, src)

	orig := resolution.Pair{Width: 32, Height: 32}
	eff := resolution.Pair{Width: 16, Height: 16}
	dir := ctx.DegradedDir(orig, eff)

	d := New(ctx)
	if _, _, err := d.Degrade(orig, eff, dir); err != nil {
		t.Fatal(err)
	}

	// overwrite the output; a second pass must not regenerate it
	marker := filepath.Join(dir, "a.png")
	if err := os.WriteFile(marker, []byte("sentinel"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := d.Degrade(orig, eff, dir); err != nil {
		t.Fatal(err)
	}
	got, _ := os.ReadFile(marker)
	if string(got) != "sentinel" {
		t.Error("existing degraded file was regenerated")
	}
}

func TestDegrade_CorruptImageExcludedForRun(t *testing.T) {
	ctx, baseline := testContext(t)
	good := filepath.Join(baseline, "good.png")
	writePNG(t, good, 32, 32)
	writeLabel(t, good)

	bad := filepath.Join(baseline, "bad.png")
	if err := os.WriteFile(bad, []byte("not a png"), 0o644); err != nil {
		t.Fatal(err)
	}
	writeLabel(t, bad)

	orig := resolution.Pair{Width: 32, Height: 32}
	d := New(ctx)

	eff1 := resolution.Pair{Width: 16, Height: 16}
	n, corrupted, err := d.Degrade(orig, eff1, ctx.DegradedDir(orig, eff1))
	if err != nil {
		t.Fatalf("Degrade failed: %v", err)
	}
	if n != 2 || corrupted != 1 {
		t.Errorf("first pass: got n=%d corrupted=%d, want 2, 1", n, corrupted)
	}

	// the corrupt image is gone from the working set on later resolutions
	eff2 := resolution.Pair{Width: 8, Height: 8}
	n, corrupted, err = d.Degrade(orig, eff2, ctx.DegradedDir(orig, eff2))
	if err != nil {
		t.Fatalf("Degrade failed: %v", err)
	}
	if n != 1 || corrupted != 1 {
		t.Errorf("second pass: got n=%d corrupted=%d, want 1, 1", n, corrupted)
	}
	if _, err := os.Stat(filepath.Join(ctx.DegradedDir(orig, eff2), "bad.png")); err == nil {
		t.Error("corrupt image produced a degraded output")
	}
}

func TestDegrade_MissingLabelDropsImage(t *testing.T) {
	ctx, baseline := testContext(t)
	src := filepath.Join(baseline, "a.png")
	writePNG(t, src, 32, 32)
	// no label written

	orig := resolution.Pair{Width: 32, Height: 32}
	eff := resolution.Pair{Width: 16, Height: 16}
	dir := ctx.DegradedDir(orig, eff)

	d := New(ctx)
	_, corrupted, err := d.Degrade(orig, eff, dir)
	if err != nil {
		t.Fatal(err)
	}
	if corrupted != 0 {
		t.Errorf("missing label is not a corruption: corrupted=%d", corrupted)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.png")); err == nil {
		t.Error("unlabeled image was degraded")
	}

	n, _, err := d.Degrade(orig, resolution.Pair{Width: 8, Height: 8}, ctx.DegradedDir(orig, resolution.Pair{Width: 8, Height: 8}))
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("unlabeled image still in working set: n=%d", n)
	}
}
