package render

import (
	"fmt"
	"strconv"
	"strings"
)

// Palette.
const (
	ColorNeutral   = "#64748b"
	ColorMuted     = "#475569"
	ColorRemoved   = "#ef4444"
	ColorAdded     = "#22c55e"
	ColorModule    = "#14b8a6"
	ColorThirdPart = "#94a3b8"
	ColorInternal  = "#38bdf8"

	ColorHotCritical  = "#ef4444"
	ColorHotWarning   = "#f59e0b"
	ColorCircular     = "#a855f7"
	ColorHighCoupling = "#3b82f6"
)

// languageColors colours nodes by language tag.
var languageColors = map[string]string{
	"go":         "#00add8",
	"python":     "#3776ab",
	"typescript": "#3178c6",
	"javascript": "#f7df1e",
	"java":       "#b07219",
	"rust":       "#dea584",
	"ruby":       "#cc342d",
	"csharp":     "#178600",
}

// EdgeStyle is the resolved look of one edge.
type EdgeStyle struct {
	Tier    StyleTier `json:"tier"`
	Color   string    `json:"color"`
	Opacity float64   `json:"opacity"`
	Width   float64   `json:"width"`
}

// StyleTier names which rule decided an edge's style.
type StyleTier string

const (
	TierFiltered StyleTier = "filtered"
	TierRemoved  StyleTier = "removed"
	TierAdded    StyleTier = "added"
	TierOverride StyleTier = "override"
	TierModule   StyleTier = "module"
	TierDimmed   StyleTier = "dimmed"
	TierDefault  StyleTier = "default"
)

// weightWidth maps an edge weight to a line width for the weight-driven
// tiers.
func weightWidth(w float64) float64 {
	width := 1 + w*0.25
	if width < 1 {
		return 1
	}
	if width > 3 {
		return 3
	}
	return width
}

// darken scales an #rrggbb colour towards black by factor in [0, 1].
// Unparseable colours come back as ColorMuted.
func darken(hex string, factor float64) string {
	r, g, b, ok := parseHex(hex)
	if !ok {
		return ColorMuted
	}
	k := 1 - factor
	return fmt.Sprintf("#%02x%02x%02x",
		uint8(float64(r)*k), uint8(float64(g)*k), uint8(float64(b)*k))
}

func parseHex(hex string) (r, g, b uint8, ok bool) {
	s := strings.TrimPrefix(hex, "#")
	if len(s) != 6 {
		return 0, 0, 0, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return uint8(v >> 16), uint8(v >> 8), uint8(v), true
}
