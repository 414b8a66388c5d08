package l5neural

import (
	"image"
	"sort"

	"github.com/banshee-data/sonar.report/internal/sonar/l4detect"
)

// IoU is the intersection over union of two boxes; 0 when either is empty.
func IoU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	ia := float64(inter.Dx() * inter.Dy())
	union := float64(a.Dx()*a.Dy()+b.Dx()*b.Dy()) - ia
	if union <= 0 {
		return 0
	}
	return ia / union
}

// NMS keeps the highest-confidence box of every group overlapping by more
// than iou. With classAware set, boxes of different classes never suppress
// each other. The result is ordered by confidence and cut to topN when topN
// is positive. cands is reordered in place.
func NMS(cands []l4detect.Candidate, iou float64, classAware bool, topN int) []l4detect.Candidate {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].Confidence > cands[j].Confidence
	})
	kept := make([]l4detect.Candidate, 0, len(cands))
	suppressed := make([]bool, len(cands))
	for i := range cands {
		if suppressed[i] {
			continue
		}
		kept = append(kept, cands[i])
		if topN > 0 && len(kept) == topN {
			break
		}
		for j := i + 1; j < len(cands); j++ {
			if suppressed[j] || (classAware && cands[j].ClassID != cands[i].ClassID) {
				continue
			}
			if IoU(cands[i].Box, cands[j].Box) > iou {
				suppressed[j] = true
			}
		}
	}
	return kept
}
