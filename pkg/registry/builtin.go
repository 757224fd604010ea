package registry

import "github.com/decksmith/decksmith/pkg/models"

func f64(v float64) *float64 { return &v }

// Builtin returns the compiled registry for the standard component set.
// Compilation cannot fail here; the definitions are static and covered by
// tests.
func Builtin() *Registry {
	r, err := Compile(builtinSchemas())
	if err != nil {
		panic("builtin component schemas: " + err.Error())
	}
	return r
}

func builtinSchemas() []Schema {
	// fontSize carries no bounds; the fit pass owns the final size.
	fontSize := func(def float64) Field {
		return Field{Name: "fontSize", Kind: KindNumber, Default: def}
	}
	return []Schema{
		{
			Type: models.ComponentBackground,
			Fields: []Field{
				{Name: "color", Kind: KindColor, Default: "#FFFFFF"},
				{Name: "gradient", Kind: KindObject},
				{Name: "imageUrl", Kind: KindString},
				{Name: "opacity", Kind: KindNumber, Default: 1.0, Min: f64(0), Max: f64(1)},
			},
		},
		{
			Type:        models.ComponentTitle,
			TextBearing: true,
			Fields: []Field{
				{Name: "text", Kind: KindString, Required: true},
				fontSize(96),
				{Name: "fontFamily", Kind: KindString},
				{Name: "color", Kind: KindColor},
				{Name: "align", Kind: KindString, Default: "left", Enum: []string{"left", "center", "right"}},
				{Name: "fontWeight", Kind: KindString, Default: "bold", Enum: []string{"normal", "bold"}},
			},
		},
		{
			Type:        models.ComponentHeading,
			TextBearing: true,
			Fields: []Field{
				{Name: "text", Kind: KindString, Required: true},
				fontSize(48),
				{Name: "fontFamily", Kind: KindString},
				{Name: "color", Kind: KindColor},
				{Name: "align", Kind: KindString, Default: "left", Enum: []string{"left", "center", "right"}},
				{Name: "level", Kind: KindNumber, Default: 2.0, Min: f64(1), Max: f64(6)},
			},
		},
		{
			Type:        models.ComponentTextBlock,
			TextBearing: true,
			Fields: []Field{
				{Name: "text", Kind: KindString, Required: true},
				fontSize(28),
				{Name: "fontFamily", Kind: KindString},
				{Name: "color", Kind: KindColor},
				{Name: "align", Kind: KindString, Default: "left", Enum: []string{"left", "center", "right", "justify"}},
				{Name: "lineHeight", Kind: KindNumber, Default: 1.4, Min: f64(0.8), Max: f64(3)},
			},
		},
		{
			Type:        models.ComponentTiptapTextBlock,
			TextBearing: true,
			Fields: []Field{
				// Rich text document; text is the plain rendition used for
				// sizing when the document itself is absent.
				{Name: "document", Kind: KindObject},
				{Name: "text", Kind: KindString},
				fontSize(28),
				{Name: "color", Kind: KindColor},
				{Name: "lineHeight", Kind: KindNumber, Default: 1.4, Min: f64(0.8), Max: f64(3)},
			},
		},
		{
			Type: models.ComponentImage,
			Fields: []Field{
				{Name: "src", Kind: KindString, Required: true},
				{Name: "alt", Kind: KindString, Default: ""},
				{Name: "fit", Kind: KindString, Default: "cover", Enum: []string{"cover", "contain", "fill"}},
				{Name: "borderRadius", Kind: KindNumber, Default: 0.0, Min: f64(0), Max: f64(200)},
				{Name: "opacity", Kind: KindNumber, Default: 1.0, Min: f64(0), Max: f64(1)},
			},
		},
		{
			Type: models.ComponentShape,
			Fields: []Field{
				{Name: "shape", Kind: KindString, Default: "rectangle", Enum: []string{"rectangle", "ellipse", "line", "arrow"}},
				{Name: "fill", Kind: KindColor},
				{Name: "stroke", Kind: KindColor},
				{Name: "strokeWidth", Kind: KindNumber, Default: 0.0, Min: f64(0), Max: f64(40)},
				{Name: "rotation", Kind: KindNumber, Default: 0.0, Min: f64(-360), Max: f64(360)},
			},
		},
		{
			Type: models.ComponentChart,
			Fields: []Field{
				{Name: "chartType", Kind: KindString, Required: true, Enum: []string{"bar", "line", "pie", "area", "scatter"}},
				{Name: "series", Kind: KindList, Required: true},
				{Name: "labels", Kind: KindList},
				{Name: "showLegend", Kind: KindBool, Default: true},
				{Name: "showGrid", Kind: KindBool, Default: true},
			},
		},
		{
			Type: models.ComponentTable,
			Fields: []Field{
				{Name: "headers", Kind: KindList, Required: true},
				{Name: "rows", Kind: KindList, Required: true},
				{Name: "striped", Kind: KindBool, Default: true},
				fontSize(22),
			},
		},
		{
			Type: models.ComponentIcon,
			Fields: []Field{
				{Name: "name", Kind: KindString, Required: true},
				{Name: "color", Kind: KindColor},
				{Name: "strokeWidth", Kind: KindNumber, Default: 2.0, Min: f64(0.5), Max: f64(6)},
			},
		},
	}
}
