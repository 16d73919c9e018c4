// Package mosaic implements the MosaicCompositor (C6): drawing thumbnails
// onto an RGBA canvas, stamping per-thumbnail timestamps and a metadata
// footer, and encoding/writing the result atomically.
//
// Grounded on the teacher's temp-file-then-rename write discipline in
// main.go's processJob workDir handling, and on
// other_examples/kthornbloom-photog's use of disintegration/imaging for
// resize/compose/encode. Text rendering has no direct pack precedent; it
// is built on the standard golang.org/x/image/font + basicfont + math/fixed
// stack that ships alongside golang.org/x/image (already a pack dependency
// via kthornbloom-photog and djryanj-media-viewer's go.mod).
package mosaic

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"mosaicgen/internal/ffmpeg"
	"mosaicgen/internal/mosaicerr"
	"mosaicgen/internal/model"
)

var (
	backgroundColor = color.NRGBA{R: 26, G: 26, B: 26, A: 255} // ~(0.1,0.1,0.1,1.0)
	timestampStrip  = color.NRGBA{R: 0, G: 0, B: 0, A: 160}
	timestampText   = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	footerStrip     = color.NRGBA{R: 20, G: 40, B: 120, A: 170}
	footerText      = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

// Style groups the drawing options the caller controls (subset of
// model.ProcessingConfig relevant to drawing).
type Style struct {
	DrawTimestamps bool
	AddBorder      bool
	AddShadow      bool
	BorderColor    color.Color
	BorderWidth    int
}

// Composer draws and encodes a mosaic canvas.
type Composer struct {
	FFmpegPath string // used only to encode HEIC, which no in-tree codec supports
}

func New(ffmpegPath string) *Composer {
	return &Composer{FFmpegPath: ffmpegPath}
}

// Compose draws thumbnails (already in index order) onto a canvas per
// layout, stamps timestamps and a metadata footer, and returns the
// resulting image. It never touches disk; Write handles encoding and the
// atomic file write separately so callers can inspect the canvas in tests.
func (c *Composer) Compose(thumbnails []model.TimedThumbnail, layout model.MosaicLayout, meta model.VideoMetadata, style Style) (*image.NRGBA, error) {
	canvas := imaging.New(layout.CanvasWidth, layout.CanvasHeight, backgroundColor)

	for _, th := range thumbnails {
		if th.Index < 0 || th.Index >= len(layout.Positions) {
			continue
		}
		pos := layout.Positions[th.Index]
		img, _, err := image.Decode(bytes.NewReader(th.Image))
		if err != nil {
			return nil, &mosaicerr.CompositionFailure{Reason: "decode thumbnail", Err: err}
		}
		resized := imaging.Fill(img, layout.ThumbWidth, layout.ThumbHeight, imaging.Center, imaging.Lanczos)

		x := pos.Col * layout.ThumbWidth
		y := layout.CanvasHeight - (pos.Row+1)*layout.ThumbHeight

		if style.DrawTimestamps {
			drawTimestampStrip(resized, th.TimestampSeconds, layout.ThumbHeight)
		}
		if style.AddBorder {
			drawBorder(resized, style.BorderColor, style.BorderWidth)
		}

		canvas = imaging.Paste(canvas, resized, image.Pt(x, y))
	}

	drawMetadataFooter(canvas, meta)

	return canvas, nil
}

// drawTimestampStrip draws a translucent strip across the bottom sixth of
// thumb and right-aligns the HH:MM:SS rendering of seconds within it.
func drawTimestampStrip(thumb *image.NRGBA, seconds float64, thumbH int) {
	bounds := thumb.Bounds()
	stripH := thumbH / 6
	if stripH < 1 {
		stripH = 1
	}
	stripTop := bounds.Max.Y - stripH
	fillRect(thumb, image.Rect(bounds.Min.X, stripTop, bounds.Max.X, bounds.Max.Y), timestampStrip)

	label := formatHHMMSS(seconds)
	fontSize := float64(thumbH) / 6.0 / 1.618
	drawRightAlignedText(thumb, label, bounds.Max.X-5, stripTop+stripH-2, fontSize, timestampText)
}

// drawBorder inset-strokes thumb with width-px lines of borderColor.
func drawBorder(thumb *image.NRGBA, borderColor color.Color, width int) {
	if width <= 0 {
		return
	}
	b := thumb.Bounds()
	for i := 0; i < width; i++ {
		fillRect(thumb, image.Rect(b.Min.X+i, b.Min.Y+i, b.Max.X-i, b.Min.Y+i+1), borderColor)
		fillRect(thumb, image.Rect(b.Min.X+i, b.Max.Y-i-1, b.Max.X-i, b.Max.Y-i), borderColor)
		fillRect(thumb, image.Rect(b.Min.X+i, b.Min.Y+i, b.Min.X+i+1, b.Max.Y-i), borderColor)
		fillRect(thumb, image.Rect(b.Max.X-i-1, b.Min.Y+i, b.Max.X-i, b.Max.Y-i), borderColor)
	}
}

// drawMetadataFooter draws a translucent strip across the bottom 10% of
// canvas with four lines of metadata: path, codec, resolution, duration.
func drawMetadataFooter(canvas *image.NRGBA, meta model.VideoMetadata) {
	bounds := canvas.Bounds()
	stripH := bounds.Dy() / 10
	if stripH < 4 {
		return
	}
	stripTop := bounds.Max.Y - stripH
	fillRect(canvas, image.Rect(bounds.Min.X, stripTop, bounds.Max.X, bounds.Max.Y), footerStrip)

	lineH := stripH / 4
	fontSize := float64(lineH) / 1.618
	lines := []string{
		meta.FilePath,
		"codec: " + meta.Codec,
		fmt.Sprintf("resolution: %dx%d", meta.Width, meta.Height),
		"duration: " + formatHHMMSS(meta.DurationSeconds),
	}
	for i, line := range lines {
		baseline := stripTop + (i+1)*lineH - lineH/4
		drawLeftAlignedText(canvas, line, bounds.Min.X+5, baseline, fontSize, footerText)
	}
}

func fillRect(img *image.NRGBA, rect image.Rectangle, c color.Color) {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return
	}
	draw.Draw(img, rect, &image.Uniform{C: c}, image.Point{}, draw.Over)
}

// scaleFactor returns the whole-number basicfont.Face7x13 scaling that
// approximates the requested pixel size (at least 1); basicfont has a
// single fixed glyph size (7x13) and the pack carries no scalable
// rasterizer, so drawText renders at 1x and nearest-neighbor upscales by
// this factor.
func scaleFactor(fontSize float64) int {
	s := int(fontSize / 13.0)
	if s < 1 {
		s = 1
	}
	return s
}

func drawRightAlignedText(img *image.NRGBA, text string, rightX, baselineY int, fontSize float64, c color.Color) {
	scale := scaleFactor(fontSize)
	width := len(text) * 7 * scale
	drawText(img, text, rightX-width, baselineY, scale, c)
}

func drawLeftAlignedText(img *image.NRGBA, text string, leftX, baselineY int, fontSize float64, c color.Color) {
	scale := scaleFactor(fontSize)
	drawText(img, text, leftX, baselineY, scale, c)
}

func drawText(img *image.NRGBA, text string, x, y, scale int, c color.Color) {
	if scale <= 1 {
		d := &font.Drawer{
			Dst:  img,
			Src:  &image.Uniform{C: c},
			Face: basicfont.Face7x13,
			Dot:  fixed.P(x, y),
		}
		d.DrawString(text)
		return
	}
	// Render at 1x onto a scratch canvas, then nearest-neighbor upscale
	// onto img at the requested position.
	scratch := image.NewNRGBA(image.Rect(0, 0, len(text)*7+4, 13))
	d := &font.Drawer{
		Dst:  scratch,
		Src:  &image.Uniform{C: c},
		Face: basicfont.Face7x13,
		Dot:  fixed.P(2, 11),
	}
	d.DrawString(text)
	upscaled := imaging.Resize(scratch, scratch.Bounds().Dx()*scale, scratch.Bounds().Dy()*scale, imaging.NearestNeighbor)
	draw.Draw(img, image.Rect(x, y-upscaled.Bounds().Dy()+2, x+upscaled.Bounds().Dx(), y+2), upscaled, image.Point{}, draw.Over)
}

func formatHHMMSS(seconds float64) string {
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// OutputPath computes the mosaic's destination path per §4.4 step 7:
// "<bucket>-<source_stem>-<density>.<ext>", versioned with _v2, _v3, ... if
// overwrite is false and the name is taken, nested under
// "<output_dir>/<bucket>/" if separateFolders.
func OutputPath(outputDir string, bucket model.DurationBucket, sourceStem string, density model.Density, format model.OutputFormat, overwrite, separateFolders bool) (string, error) {
	dir := outputDir
	if separateFolders {
		dir = filepath.Join(outputDir, string(bucket))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", &mosaicerr.IOError{Path: dir, Err: err}
		}
	}

	base := fmt.Sprintf("%s-%s-%s", bucket, sourceStem, density)
	ext := format.Ext()

	candidate := filepath.Join(dir, base+"."+ext)
	if overwrite {
		return candidate, nil
	}
	for v := 2; ; v++ {
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s_v%d.%s", base, v, ext))
	}
}

// Write encodes canvas per format at the given compression quality and
// writes it atomically (temp file in the same directory, then rename) to
// path.
func (c *Composer) Write(canvas *image.NRGBA, path string, format model.OutputFormat, compressionQuality float64) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".mosaic-*.tmp")
	if err != nil {
		return &mosaicerr.UnableToSaveMosaic{Path: path, Err: err}
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	switch format {
	case model.FormatPNG:
		err = png.Encode(tmp, canvas)
		if cerr := tmp.Close(); err == nil {
			err = cerr
		}
	case model.FormatJPEG:
		q := int(compressionQuality * 100)
		if q <= 0 {
			q = 1
		}
		if q > 100 {
			q = 100
		}
		err = jpeg.Encode(tmp, canvas, &jpeg.Options{Quality: q})
		if cerr := tmp.Close(); err == nil {
			err = cerr
		}
	case model.FormatHEIC:
		if cerr := tmp.Close(); cerr != nil {
			err = cerr
			break
		}
		err = c.encodeHEICViaFFmpeg(tmpPath, canvas, compressionQuality)
	default:
		tmp.Close()
		err = fmt.Errorf("%w: %s", mosaicerr.ErrUnsupportedFmt, format)
	}
	if err != nil {
		return &mosaicerr.UnableToSaveMosaic{Path: path, Err: err}
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return &mosaicerr.UnableToSaveMosaic{Path: path, Err: err}
	}
	return nil
}

// encodeHEICViaFFmpeg shells out to ffmpeg to transcode a PNG-encoded
// canvas into HEIC: no image library in the corpus carries a native HEIC
// encoder, so ffmpeg (already a wired dependency) encodes it with libx265.
func (c *Composer) encodeHEICViaFFmpeg(outPath string, canvas *image.NRGBA, compressionQuality float64) error {
	dir := filepath.Dir(outPath)
	pngTmp, err := os.CreateTemp(dir, ".mosaic-src-*.png")
	if err != nil {
		return err
	}
	pngPath := pngTmp.Name()
	defer os.Remove(pngPath)
	if err := png.Encode(pngTmp, canvas); err != nil {
		pngTmp.Close()
		return err
	}
	if err := pngTmp.Close(); err != nil {
		return err
	}

	crf := int((1 - compressionQuality) * 51)
	if crf < 0 {
		crf = 0
	}
	if crf > 51 {
		crf = 51
	}
	cmd := ffmpeg.New(c.FFmpegPath).Overwrite(true).Input(pngPath).
		Arg("-c:v", "libx265").Arg("-crf", fmt.Sprintf("%d", crf)).Output(outPath)
	return cmd.Run(context.Background())
}
