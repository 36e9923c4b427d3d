package image

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	img "image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"strings"
)

// LocalGenerator renders deterministic placeholder images in-process. It is
// the backend the queue worker runs when no GPU pipeline is attached, which
// keeps the whole submission and reconciliation path operational in local
// and CI environments. The same seed and prompt always produce identical
// bytes, so seed-locked regenerations are reproducible.
type LocalGenerator struct{}

// NewLocalGenerator constructs the in-process renderer.
func NewLocalGenerator() *LocalGenerator {
	return &LocalGenerator{}
}

// Generate fulfils the Generator interface.
func (g *LocalGenerator) Generate(ctx context.Context, req GenerateRequest) ([]Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	quantity := req.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	width, height := localDimensions(req.AspectRatio)
	assets := make([]Asset, quantity)
	for i := 0; i < quantity; i++ {
		seed := derivedSeed(req.Seed, i)
		digest := renderDigest(req.Prompt, req.RequestID, seed, i)
		data := renderImage(width, height, digest)
		assets[i] = Asset{
			Format: "image/png",
			Width:  width,
			Height: height,
			Data:   data,
			Seed:   seed,
		}
	}
	return assets, nil
}

var _ Generator = (*LocalGenerator)(nil)

// renderDigest collapses the generation inputs into a hex digest that drives
// the synthetic palette. Unseeded requests still vary by batch index.
func renderDigest(prompt, requestID string, seed *int64, index int) string {
	hasher := sha256.New()
	hasher.Write([]byte(strings.TrimSpace(prompt)))
	hasher.Write([]byte{'|'})
	if seed != nil {
		fmt.Fprintf(hasher, "%d", *seed)
	} else {
		hasher.Write([]byte(requestID))
		fmt.Fprintf(hasher, "#%d", index)
	}
	return hex.EncodeToString(hasher.Sum(nil))[:18]
}

func renderImage(width, height int, digest string) []byte {
	if width <= 0 {
		width = 1024
	}
	if height <= 0 {
		height = 1024
	}
	canvas := img.NewRGBA(img.Rect(0, 0, width, height))
	base := colorFromDigest(digest, 0)
	accent := colorFromDigest(digest, 1)
	draw.Draw(canvas, canvas.Bounds(), &img.Uniform{base}, img.Point{}, draw.Src)

	stripe := height / 12
	if stripe < 32 {
		stripe = 32
	}
	for y := 0; y < height; y += stripe * 2 {
		end := y + stripe
		if end > height {
			end = height
		}
		draw.Draw(canvas, img.Rect(0, y, width, end), &img.Uniform{accent}, img.Point{}, draw.Over)
	}

	diagonal := colorFromDigest(digest, 2)
	step := width / 32
	if step < 16 {
		step = 16
	}
	for x := 0; x < width+height; x += step {
		for y := 0; y < height; y++ {
			xx := x + y
			if xx >= width {
				break
			}
			canvas.Set(xx, y, diagonal)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil
	}
	return buf.Bytes()
}

func colorFromDigest(digest string, shift int) color.RGBA {
	if len(digest) < 6 {
		digest = digest + "000000"
	}
	doubled := digest + digest
	start := (shift * 6) % len(digest)
	segment := doubled[start : start+6]
	return color.RGBA{
		R: parseHexByte(segment[0:2]),
		G: parseHexByte(segment[2:4]),
		B: parseHexByte(segment[4:6]),
		A: 255,
	}
}

func parseHexByte(s string) uint8 {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0
	}
	return uint8(v)
}

func localDimensions(aspect string) (int, int) {
	switch strings.TrimSpace(aspect) {
	case "16:9":
		return 1280, 720
	case "9:16":
		return 720, 1280
	case "4:3":
		return 1024, 768
	case "3:4":
		return 768, 1024
	default:
		return 1024, 1024
	}
}
