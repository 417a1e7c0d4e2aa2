package app

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/hajira/internal/liveness"
)

var (
	colorYellow = color.RGBA{R: 255, G: 255, B: 0, A: 0}
	colorOrange = color.RGBA{R: 255, G: 165, B: 0, A: 0}
	colorAmber  = color.RGBA{R: 255, G: 200, B: 0, A: 0}
	colorGreen  = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	colorRed    = color.RGBA{R: 255, G: 0, B: 0, A: 0}
)

// statusColor picks the annotation color for a detection.
func statusColor(det Detection) color.RGBA {
	if !det.Known {
		if det.Message == MsgLookAtCamera {
			return colorYellow
		}
		return colorRed
	}
	if det.Status.Marked {
		return colorGreen
	}
	switch det.Message {
	case liveness.MsgFaceNotClear, liveness.MsgRecordingFailed:
		return colorYellow
	}
	switch det.Status.Stage {
	case liveness.AwaitingBlink:
		return colorOrange
	case liveness.AwaitingHeadTurn:
		return colorAmber
	default:
		return colorGreen
	}
}

// annotate draws the box, the name above it and the status below it.
func annotate(frame *gocv.Mat, det Detection) {
	c := statusColor(det)
	gocv.Rectangle(frame, det.Box, c, 2)
	gocv.PutText(frame, det.Label(), image.Pt(det.Box.Min.X, det.Box.Min.Y-10), gocv.FontHersheySimplex, 0.8, c, 2)
	gocv.PutText(frame, det.Message, image.Pt(det.Box.Min.X, det.Box.Max.Y+25), gocv.FontHersheySimplex, 0.6, c, 2)
}
