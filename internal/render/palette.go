package render

import (
	"math"

	"github.com/sells-group/choropleth/internal/classify"
)

// Palette maps class indices to fill colours, light to dark.
type Palette struct {
	Colors []string
	NoData string
}

// DefaultPalette is the five-step sequential purple-red ramp.
func DefaultPalette() Palette {
	return Palette{
		Colors: []string{"#D4B9DA", "#C994C7", "#DF65B0", "#DD1C77", "#980043"},
		NoData: "#CCC",
	}
}

// Color returns the fill for class out of classes effective classes. When
// there are fewer classes than colours the classes are spread across the
// ramp so the top class always gets the darkest colour.
func (p Palette) Color(class, classes int) string {
	n := len(p.Colors)
	if class == classify.NoData || class < 0 || n == 0 {
		return p.NoData
	}
	if classes < 1 {
		classes = 1
	}
	if class >= classes {
		class = classes - 1
	}
	if classes >= n {
		return p.Colors[min(class, n-1)]
	}
	if classes == 1 {
		return p.Colors[n-1]
	}
	step := float64(n-1) / float64(classes-1)
	idx := n - 1 - int(math.Round(float64(classes-1-class)*step))
	return p.Colors[idx]
}
