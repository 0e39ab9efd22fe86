// Package export renders cluster snapshots as SVG.
package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/clustersim/internal/nbody"
	"github.com/san-kum/clustersim/internal/viz"
)

const svgHeader = `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`

// CanvasToSVG draws every lit dot of a braille canvas as a circle, scale
// pixels per dot.
func CanvasToSVG(canvas *viz.Canvas, scale float64) string {
	if canvas == nil {
		return ""
	}
	w, h := canvas.Dots()
	width, height := int(float64(w)*scale), int(float64(h)*scale)

	var sb strings.Builder
	fmt.Fprintf(&sb, svgHeader, width, height, width, height)
	sb.WriteString(`<g fill="#00ff88">` + "\n")

	r := scale * 0.4
	for y := range h {
		for x := range w {
			if !canvas.IsSet(x, y) {
				continue
			}
			fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"%.1f\"/>\n",
				float64(x)*scale+scale/2, float64(y)*scale+scale/2, r)
		}
	}

	sb.WriteString("</g>\n</svg>\n")
	return sb.String()
}

// EnsembleSVG projects the particles of ens through cam onto a size x size
// image. Dot area is proportional to mass; particles outside the view are
// dropped.
func EnsembleSVG(ens *nbody.Ensemble, cam *viz.Camera, size int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, svgHeader, size, size, size, size)
	sb.WriteString(`<g fill="#00ccff" fill-opacity="0.8">` + "\n")

	mean := ens.TotalMass() / float64(max(ens.N, 1))
	half := float64(size) / 2
	for i := range ens.N {
		u, v := cam.Project(ens.Pos.Vec(i))
		if !(math.Abs(u) <= 1 && math.Abs(v) <= 1) {
			continue
		}
		r := 1.5
		if mean > 0 {
			r *= math.Sqrt(ens.Mass[i] / mean)
		}
		fmt.Fprintf(&sb, "<circle cx=\"%.2f\" cy=\"%.2f\" r=\"%.2f\"/>\n", half+u*half, half-v*half, r)
	}

	sb.WriteString("</g>\n</svg>\n")
	return sb.String()
}
