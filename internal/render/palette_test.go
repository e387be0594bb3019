package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/choropleth/internal/classify"
)

func TestPalette_Color(t *testing.T) {
	p := DefaultPalette()
	c := p.Colors

	tests := []struct {
		name    string
		class   int
		classes int
		want    string
	}{
		{"full ramp first", 0, 5, c[0]},
		{"full ramp last", 4, 5, c[4]},
		{"three classes low", 0, 3, c[0]},
		{"three classes mid", 1, 3, c[2]},
		{"three classes top", 2, 3, c[4]},
		{"four classes", 2, 4, c[3]},
		{"two classes top", 1, 2, c[4]},
		{"single class is darkest", 0, 1, c[4]},
		{"class past range clamps", 7, 3, c[4]},
		{"more classes than colours", 6, 7, c[4]},
		{"no data", classify.NoData, 5, "#CCC"},
		{"zero classes", 0, 0, c[4]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Color(tt.class, tt.classes))
		})
	}
}

func TestPalette_TopClassAlwaysDarkest(t *testing.T) {
	p := DefaultPalette()
	for classes := 1; classes <= 8; classes++ {
		assert.Equal(t, "#980043", p.Color(classes-1, classes), "classes=%d", classes)
	}
}

func TestPalette_Empty(t *testing.T) {
	p := Palette{NoData: "#eee"}
	assert.Equal(t, "#eee", p.Color(0, 3))
}
