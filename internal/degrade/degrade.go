// Package degrade produces resolution-degraded copies of a validation image
// set. Degradation downsamples an image to a target size and back up to the
// original size, losing detail while keeping the tensor shape the evaluation
// model expects. Labels ride along unchanged.
package degrade

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/perceptionbench/kneepoint/internal/pipeline"
	"github.com/perceptionbench/kneepoint/internal/resolution"
)

// Image extensions recognized when scanning the baseline set.
var imageExts = map[string]bool{
	".tif": true, ".jpg": true, ".jpeg": true, ".png": true,
	".gif": true, ".bmp": true, ".tiff": true,
}

const labelExt = ".txt"

// LabelPath returns the label file path for an image path: the same name
// with the label extension. Paths without a recognized image extension are
// returned unchanged.
func LabelPath(imagePath string) string {
	ext := strings.ToLower(filepath.Ext(imagePath))
	if !imageExts[ext] {
		return imagePath
	}
	return strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + labelExt
}

// Degrader writes degraded validation sets, one directory per target
// resolution. The baseline image list is scanned once and cached; an image
// that fails to decode is dropped from the cached set for the rest of the
// run and counted, never retried and never fatal.
type Degrader struct {
	ctx         *pipeline.Context
	baselineDir string

	images    map[string]bool // surviving baseline image paths
	corrupted int
}

// New returns a degrader over the context's baseline directory.
func New(ctx *pipeline.Context) *Degrader {
	return &Degrader{ctx: ctx, baselineDir: ctx.BaselineDir()}
}

// Corrupted returns the running count of images dropped for decode or
// write failures.
func (d *Degrader) Corrupted() int {
	return d.corrupted
}

// Degrade ensures a degraded copy of every surviving baseline image and its
// label exists in degradedDir at the effective resolution. Files already
// present are left alone, so repeated calls for the same resolution are
// cheap. When orig equals eff the images are copied verbatim.
//
// Returns the number of images in the working set at the start of this pass
// and the updated running corrupted count.
func (d *Degrader) Degrade(orig, eff resolution.Pair, degradedDir string) (int, int, error) {
	log := d.ctx.Log
	log.Debugw("degrading images", "from", orig, "to", eff, "dir", degradedDir)

	if err := os.MkdirAll(degradedDir, 0o755); err != nil {
		return 0, d.corrupted, fmt.Errorf("create degraded dir: %w", err)
	}
	if d.images == nil {
		if err := d.scanBaseline(); err != nil {
			return 0, d.corrupted, err
		}
	}

	paths := make([]string, 0, len(d.images))
	for p := range d.images {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	numImages := len(paths)

	for _, imgPath := range paths {
		labelPath := LabelPath(imgPath)
		if !exists(imgPath) || !exists(labelPath) {
			delete(d.images, imgPath)
			continue
		}

		outImg := filepath.Join(degradedDir, filepath.Base(imgPath))
		outLabel := filepath.Join(degradedDir, filepath.Base(labelPath))

		if !exists(outImg) {
			if orig == eff {
				if err := copyFile(imgPath, outImg); err != nil {
					return numImages, d.corrupted, fmt.Errorf("copy %s: %w", imgPath, err)
				}
			} else if err := d.resample(imgPath, outImg, orig, eff); err != nil {
				log.Debugw("dropping corrupt image", "path", imgPath, "error", err)
				delete(d.images, imgPath)
				d.corrupted++
				continue
			}
		}
		if !exists(outLabel) {
			if err := copyFile(labelPath, outLabel); err != nil {
				return numImages, d.corrupted, fmt.Errorf("copy %s: %w", labelPath, err)
			}
		}
	}

	return numImages, d.corrupted, nil
}

// resample performs the lossy round trip: down to eff, back up to orig.
func (d *Degrader) resample(src, dst string, orig, eff resolution.Pair) error {
	img, err := imaging.Open(src)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	shrunk := imaging.Resize(img, eff.Width, eff.Height, imaging.Lanczos)
	restored := imaging.Resize(shrunk, orig.Width, orig.Height, imaging.Lanczos)
	if err := imaging.Save(restored, dst); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

func (d *Degrader) scanBaseline() error {
	entries, err := os.ReadDir(d.baselineDir)
	if err != nil {
		return fmt.Errorf("scan baseline dir: %w", err)
	}
	d.images = make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			d.images[filepath.Join(d.baselineDir, e.Name())] = true
		}
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
