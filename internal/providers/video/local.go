package video

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"
)

// LocalGenerator produces deterministic placeholder clips in-process, for
// the same reason the image counterpart exists: the queue worker stays fully
// operational without a rendering backend. It always emits a final frame so
// clip chaining can be exercised end to end.
type LocalGenerator struct{}

// NewLocalGenerator constructs the in-process renderer.
func NewLocalGenerator() *LocalGenerator {
	return &LocalGenerator{}
}

// Generate fulfils the Generator interface.
func (g *LocalGenerator) Generate(ctx context.Context, req GenerateRequest) (*Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	length := req.DurationSeconds
	if length <= 0 {
		length = 5
	}
	digest := clipDigest(req)
	return &Asset{
		Format:    "video/mp4",
		Length:    length,
		Data:      renderClip(digest, req.Prompt, length),
		LastFrame: renderFinalFrame(digest),
	}, nil
}

var _ Generator = (*LocalGenerator)(nil)

func clipDigest(req GenerateRequest) string {
	hasher := sha256.New()
	hasher.Write([]byte(strings.TrimSpace(req.Prompt)))
	hasher.Write([]byte{'|'})
	hasher.Write([]byte(req.StartFrameURL))
	hasher.Write([]byte{'|'})
	if req.Seed != nil {
		fmt.Fprintf(hasher, "%d", *req.Seed)
	} else {
		hasher.Write([]byte(req.RequestID))
	}
	return hex.EncodeToString(hasher.Sum(nil))[:18]
}

func renderClip(digest, prompt string, length int) []byte {
	lines := []string{
		"placeholder clip " + digest,
		fmt.Sprintf("length: %ds", length),
		"prompt: " + strings.TrimSpace(prompt),
	}
	return []byte(strings.Join(lines, "\n"))
}

// renderFinalFrame paints a small PNG keyed to the clip digest. Chained
// clips starting from this frame inherit its palette, which makes the
// continuity visible even in placeholder output.
func renderFinalFrame(digest string) []byte {
	const w, h = 512, 288
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{shadeFromDigest(digest, 0)}, image.Point{}, draw.Src)
	band := image.Rect(0, h*2/3, w, h)
	draw.Draw(canvas, band, &image.Uniform{shadeFromDigest(digest, 1)}, image.Point{}, draw.Over)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil
	}
	return buf.Bytes()
}

func shadeFromDigest(digest string, shift int) color.RGBA {
	if len(digest) < 6 {
		digest = digest + "000000"
	}
	doubled := digest + digest
	start := (shift * 6) % len(digest)
	segment := doubled[start : start+6]
	var rgb [3]uint8
	for i := 0; i < 3; i++ {
		var v uint8
		fmt.Sscanf(segment[i*2:i*2+2], "%02x", &v)
		rgb[i] = v
	}
	return color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255}
}
