package capture

import "image"

// ScaleImageFast performs nearest-neighbor downscale using direct Pix slice
// manipulation. Returns the input unchanged for factors >= 1.0.
func ScaleImageFast(img *image.RGBA, factor float64) *image.RGBA {
	if factor >= 1.0 {
		return img
	}
	if factor <= 0 {
		factor = 0.1
	}

	srcBounds := img.Bounds()
	srcW := srcBounds.Dx()
	srcH := srcBounds.Dy()
	dstW := int(float64(srcW) * factor)
	dstH := int(float64(srcH) * factor)
	if dstW < 1 {
		dstW = 1
	}
	if dstH < 1 {
		dstH = 1
	}

	scaled := scaledImagePool.Get(dstW, dstH)

	// Pre-compute source X byte offsets for each dst column
	srcXOffsets := make([]int, dstW)
	for x := 0; x < dstW; x++ {
		srcXOffsets[x] = (x * srcW / dstW) * 4
	}

	srcPix := img.Pix
	dstPix := scaled.Pix
	srcStride := img.Stride
	dstStride := scaled.Stride

	for y := 0; y < dstH; y++ {
		srcY := y * srcH / dstH
		srcRowBase := srcY * srcStride
		dstRowBase := y * dstStride

		for x := 0; x < dstW; x++ {
			si := srcRowBase + srcXOffsets[x]
			di := dstRowBase + x*4

			dstPix[di+0] = srcPix[si+0]
			dstPix[di+1] = srcPix[si+1]
			dstPix[di+2] = srcPix[si+2]
			dstPix[di+3] = srcPix[si+3]
		}
	}

	return scaled
}
