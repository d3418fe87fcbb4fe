package img

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

type SaveResult struct {
	Path          string
	Hash          string
	Width, Height int
}

// SaveAvatarJPEG normalizes an uploaded avatar: square center crop, downscale
// to maxW when larger, re-encode as JPEG. The output file is named by content
// hash so re-uploads of the same image are stable.
func SaveAvatarJPEG(srcPath, dstDir string, maxW int) (SaveResult, error) {
	im, err := imaging.Open(srcPath)
	if err != nil {
		return SaveResult{}, err
	}

	side := im.Bounds().Dx()
	if h := im.Bounds().Dy(); h < side {
		side = h
	}
	if side > maxW {
		side = maxW
	}
	out := imaging.Fill(im, side, side, imaging.Center, imaging.Lanczos)

	if err := os.MkdirAll(dstDir, 0755); err != nil {
		return SaveResult{}, err
	}
	tmp := filepath.Join(dstDir, filepath.Base(srcPath)+".jpg")
	if err := imaging.Save(out, tmp, imaging.JPEGQuality(85)); err != nil {
		return SaveResult{}, err
	}

	b, err := os.ReadFile(tmp)
	if err != nil {
		return SaveResult{}, err
	}
	h := sha256.Sum256(b)
	sum := hex.EncodeToString(h[:])

	final := filepath.Join(dstDir, sum+".jpg")
	if err := os.Rename(tmp, final); err != nil {
		return SaveResult{}, err
	}
	return SaveResult{Path: final, Hash: sum, Width: out.Bounds().Dx(), Height: out.Bounds().Dy()}, nil
}
