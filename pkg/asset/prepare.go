package asset

import (
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	xdraw "golang.org/x/image/draw"
)

// PrepareResult summarizes a Prepare run.
type PrepareResult struct {
	Scaled     int
	Rasterized int
	Skipped    int
}

// Prepare writes a copy of every image in srcDir into dstDir, enlarged by
// scale. PNGs are scaled with nearest-neighbour sampling so pixel art stays
// crisp. SVGs without a PNG of the same base name are rasterized at their
// view box size times scale. Existing files in dstDir are overwritten.
func Prepare(srcDir, dstDir string, scale int, logger *slog.Logger) (PrepareResult, error) {
	var res PrepareResult
	if scale < 1 {
		return res, fmt.Errorf("asset scale must be >= 1, got %d", scale)
	}
	if logger == nil {
		logger = slog.Default()
	}

	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return res, fmt.Errorf("read asset dir: %w", err)
	}
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return res, fmt.Errorf("create prepared dir: %w", err)
	}

	pngs := make(map[string]bool)
	for _, e := range entries {
		if strings.EqualFold(filepath.Ext(e.Name()), ".png") {
			pngs[strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))] = true
		}
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		base := strings.TrimSuffix(name, filepath.Ext(name))
		src := filepath.Join(srcDir, name)

		switch ext {
		case ".png":
			dst := filepath.Join(dstDir, name)
			if err := scalePNG(src, dst, scale); err != nil {
				return res, err
			}
			res.Scaled++
		case ".svg":
			if pngs[base] {
				res.Skipped++
				continue
			}
			dst := filepath.Join(dstDir, base+".png")
			if err := rasterizeSVG(src, dst, scale); err != nil {
				return res, err
			}
			res.Rasterized++
		default:
			res.Skipped++
		}
	}

	logger.Info("prepared assets", "src", srcDir, "dst", dstDir, "scale", scale,
		"scaled", res.Scaled, "rasterized", res.Rasterized)
	return res, nil
}

func scalePNG(src, dst string, scale int) error {
	img, err := imaging.Open(src)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", src, ErrMalformed, err)
	}
	if scale == 1 {
		return save(img, dst)
	}
	return save(Scale(img, scale), dst)
}

// Scale enlarges img by an integer factor with nearest-neighbour sampling.
func Scale(img image.Image, scale int) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
	xdraw.NearestNeighbor.Scale(out, out.Bounds(), img, b, xdraw.Src, nil)
	return out
}

func rasterizeSVG(src, dst string, scale int) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open svg: %w", err)
	}
	defer f.Close()

	icon, err := oksvg.ReadIconStream(f)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", src, ErrMalformed, err)
	}
	w := int(math.Ceil(icon.ViewBox.W)) * scale
	h := int(math.Ceil(icon.ViewBox.H)) * scale
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%s: %w: empty view box", src, ErrMalformed)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	icon.SetTarget(0, 0, float64(w), float64(h))
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	raster := rasterx.NewDasher(w, h, scanner)
	icon.Draw(raster, 1.0)

	return save(img, dst)
}

// save writes img as PNG through a temp file and rename.
func save(img image.Image, dst string) error {
	tmp := dst + ".tmp.png"
	if err := imaging.Save(img, tmp); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", dst, err)
	}
	return nil
}
