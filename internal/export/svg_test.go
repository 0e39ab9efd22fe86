package export

import (
	"strings"
	"testing"

	"github.com/san-kum/clustersim/internal/nbody"
	"github.com/san-kum/clustersim/internal/plummer"
	"github.com/san-kum/clustersim/internal/viz"
)

func TestCanvasToSVG(t *testing.T) {
	if CanvasToSVG(nil, 2) != "" {
		t.Error("expected empty output for nil canvas")
	}

	c := viz.NewCanvas(2, 1)
	c.Set(0, 0)
	c.Set(3, 3)
	svg := CanvasToSVG(c, 10)

	if !strings.Contains(svg, `width="40" height="40"`) {
		t.Errorf("unexpected size:\n%s", svg)
	}
	if n := strings.Count(svg, "<circle"); n != 2 {
		t.Errorf("expected 2 dots, got %d", n)
	}
	if !strings.Contains(svg, `cx="5.0" cy="5.0"`) || !strings.Contains(svg, `cx="35.0" cy="35.0"`) {
		t.Errorf("dots at wrong positions:\n%s", svg)
	}
	if !strings.HasSuffix(svg, "</svg>\n") {
		t.Error("missing closing tag")
	}
}

func TestEnsembleSVG(t *testing.T) {
	ens, err := plummer.Binary(3)
	if err != nil {
		t.Fatal(err)
	}
	svg := EnsembleSVG(ens, viz.NewCamera(1), 100)

	if n := strings.Count(svg, "<circle"); n != 2 {
		t.Fatalf("expected 2 particles, got %d", n)
	}
	if !strings.Contains(svg, `cx="25.00" cy="50.00" r="1.50"`) {
		t.Errorf("left particle misplaced:\n%s", svg)
	}
	if !strings.Contains(svg, `cx="75.00" cy="50.00" r="1.50"`) {
		t.Errorf("right particle misplaced:\n%s", svg)
	}
}

func TestEnsembleSVGDropsOutside(t *testing.T) {
	ens, err := nbody.NewEnsemble(3, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i := range ens.Mass {
		ens.Mass[i] = 1
	}
	ens.Mass[2] = 4
	ens.Pos.Set(1, 0, 5)
	svg := EnsembleSVG(ens, viz.NewCamera(1), 10)

	if n := strings.Count(svg, "<circle"); n != 2 {
		t.Fatalf("expected 2 visible particles, got %d", n)
	}
	// mean mass 2: the heavy particle gets sqrt(2) times the radius.
	if !strings.Contains(svg, `r="2.12"`) || !strings.Contains(svg, `r="1.06"`) {
		t.Errorf("radii not scaled by mass:\n%s", svg)
	}
}
