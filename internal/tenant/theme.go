package tenant

// defaultTheme es el mapa base de tokens de presentación. Todo theme
// persistido se normaliza contra este mapa: un Get nunca retorna un
// theme con keys faltantes.
var defaultTheme = map[string]any{
	"primary_color":    "#3b82f6",
	"secondary_color":  "#64748b",
	"sidebar_color":    "#ffffff",
	"text_color":       "#1f2937",
	"background_color": "#f9fafb",
	"dark_mode":        false,
	"logo_url":         nil,
	"favicon_url":      nil,
}

// DefaultTheme retorna una copia del theme por defecto.
func DefaultTheme() map[string]any {
	out := make(map[string]any, len(defaultTheme))
	for k, v := range defaultTheme {
		out[k] = v
	}
	return out
}

// NormalizeTheme mergea el theme dado sobre los defaults.
// Keys desconocidas se conservan (el UI decide si las usa).
func NormalizeTheme(theme map[string]any) map[string]any {
	out := DefaultTheme()
	for k, v := range theme {
		if v == nil {
			continue
		}
		out[k] = v
	}
	return out
}
