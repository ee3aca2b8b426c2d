package inference

import (
	"github.com/chewxy/math32"

	"github.com/nvr-ai/yolodrop/common"
	"github.com/nvr-ai/yolodrop/models"
)

// DecodeArgs describe how raw network output maps onto the image that was detected.
type DecodeArgs struct {
	// Names are the class names in index order.
	Names []string
	// Confidence is the minimum class score kept.
	Confidence float32
	// ScaleX and ScaleY map output coordinates to image pixels.
	ScaleX, ScaleY float32
	// ImageWidth and ImageHeight clip the boxes.
	ImageWidth, ImageHeight int
}

// DecodeYOLOv8 decodes a [1, 4+classes, anchors] tensor (cx, cy, w, h in network
// input pixels followed by one score per class) into detections above the threshold.
//
// Arguments:
//   - output: The flat output tensor data.
//   - numClasses: The number of class rows.
//   - anchors: The number of predictions.
//   - args: The decode arguments.
//
// Returns:
//   - []common.Detection: Detections before NMS.
func DecodeYOLOv8(output []float32, numClasses, anchors int, args DecodeArgs) []common.Detection {
	if len(output) < (4+numClasses)*anchors {
		return nil
	}

	detections := make([]common.Detection, 0, 64)
	for idx := 0; idx < anchors; idx++ {
		classID := -1
		probability := float32(-1e9)
		for col := 0; col < numClasses; col++ {
			p := output[anchors*(col+4)+idx]
			if p > probability {
				probability = p
				classID = col
			}
		}
		if classID < 0 || probability < args.Confidence {
			continue
		}

		xc, yc := output[idx], output[anchors+idx]
		w, h := output[2*anchors+idx], output[3*anchors+idx]
		if d, ok := box(xc, yc, w, h, args); ok {
			d.ClassID = classID
			d.Label = models.ClassName(args.Names, classID)
			d.Confidence = probability
			detections = append(detections, d)
		}
	}
	return detections
}

// DecodeDarknet decodes OpenCV DNN darknet YOLO output rows: normalized cx, cy, w, h,
// objectness, then one score per class. OpenCV already multiplies the class scores by
// the objectness, so the best class score is the confidence.
//
// Arguments:
//   - data: Row-major output data.
//   - cols: The row length (5 + classes).
//   - args: The decode arguments; ScaleX/ScaleY are the image size in pixels.
//
// Returns:
//   - []common.Detection: Detections before NMS.
func DecodeDarknet(data []float32, cols int, args DecodeArgs) []common.Detection {
	if cols <= 5 {
		return nil
	}

	var detections []common.Detection
	for off := 0; off+cols <= len(data); off += cols {
		row := data[off : off+cols]
		if row[4] <= 0 {
			continue
		}

		classID := 0
		best := row[5]
		for j := 6; j < cols; j++ {
			if row[j] > best {
				best = row[j]
				classID = j - 5
			}
		}
		if best < args.Confidence || best <= 0 {
			continue
		}

		if d, ok := box(row[0], row[1], row[2], row[3], args); ok {
			d.ClassID = classID
			d.Label = models.ClassName(args.Names, classID)
			d.Confidence = best
			detections = append(detections, d)
		}
	}
	return detections
}

// box converts a center/size box to a clipped pixel detection.
func box(xc, yc, w, h float32, args DecodeArgs) (common.Detection, bool) {
	x1 := math32.Round((xc - w/2) * args.ScaleX)
	y1 := math32.Round((yc - h/2) * args.ScaleY)
	x2 := math32.Round((xc + w/2) * args.ScaleX)
	y2 := math32.Round((yc + h/2) * args.ScaleY)

	x1 = math32.Max(0, x1)
	y1 = math32.Max(0, y1)
	x2 = math32.Min(float32(args.ImageWidth), x2)
	y2 = math32.Min(float32(args.ImageHeight), y2)
	if x2 <= x1 || y2 <= y1 {
		return common.Detection{}, false
	}

	return common.Detection{
		X:      int(x1),
		Y:      int(y1),
		Width:  int(x2 - x1),
		Height: int(y2 - y1),
	}, true
}
