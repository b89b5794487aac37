package images

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Variants 是一张上传图片派生出的全部版本。
type Variants struct {
	Width  int
	Height int

	// 均为 JPEG 编码。
	Thumbnail []byte
	Preview   []byte
	Download  []byte
}

const (
	thumbnailWidth    = 480
	previewWidthPhone = 720
	previewWidth      = 1280
	downloadMaxWidth  = 5120

	thumbnailQuality = 70
	previewQuality   = 78
	downloadQuality  = 92
)

// Build 解码上传图片并生成缩略图、网格预览与优化下载版本。
// deviceType 只影响预览宽度（mobile 竖屏更窄）。
func Build(data []byte, deviceType string) (*Variants, error) {
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	v := &Variants{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}

	thumb := imaging.Fit(src, thumbnailWidth, thumbnailWidth*2, imaging.Lanczos)
	if v.Thumbnail, err = encodeJPEG(thumb, thumbnailQuality); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}

	pw := previewWidth
	if deviceType == "mobile" {
		pw = previewWidthPhone
	}
	preview := imaging.Fit(src, pw, pw*2, imaging.Lanczos)
	if v.Preview, err = encodeJPEG(preview, previewQuality); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}

	download := src
	if bounds.Dx() > downloadMaxWidth {
		download = imaging.Resize(src, downloadMaxWidth, 0, imaging.Lanczos)
	}
	if v.Download, err = encodeJPEG(download, downloadQuality); err != nil {
		return nil, fmt.Errorf("encode download: %w", err)
	}

	return v, nil
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
