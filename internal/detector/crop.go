package detector

import (
	"image"

	"gocv.io/x/gocv"
)

// Largest returns the box with the biggest area.
func Largest(boxes []image.Rectangle) (image.Rectangle, bool) {
	if len(boxes) == 0 {
		return image.Rectangle{}, false
	}
	best := boxes[0]
	for _, b := range boxes[1:] {
		if b.Dx()*b.Dy() > best.Dx()*best.Dy() {
			best = b
		}
	}
	return best, true
}

// CropFace cuts box out of gray and resizes it to a size x size square.
// The box is clipped to the image bounds. The caller owns the returned Mat.
func CropFace(gray gocv.Mat, box image.Rectangle, size int) (gocv.Mat, bool) {
	box = box.Intersect(image.Rect(0, 0, gray.Cols(), gray.Rows()))
	if box.Empty() {
		return gocv.NewMat(), false
	}

	region := gray.Region(box)
	defer region.Close()

	face := gocv.NewMat()
	gocv.Resize(region, &face, image.Pt(size, size), 0, 0, gocv.InterpolationLinear)
	return face, true
}
