package loader

import "strings"

// Tool names as they appear in every downstream artifact.
const (
	ToolEUI         = "EUI"
	ToolRUI         = "RUI"
	ToolCDE         = "CDE"
	ToolFTUExplorer = "FTU Explorer"
	ToolKGExplorer  = "KG Explorer"
)

// AllTools is the fixed tool universe, in pivot column order.
var AllTools = []string{ToolEUI, ToolRUI, ToolCDE, ToolFTUExplorer, ToolKGExplorer}

// appCodes resolves the explicit app identifier carried by tracked events.
var appCodes = map[string]string{
	"ccf-eui":         ToolEUI,
	"ccf-rui":         ToolRUI,
	"cde-ui":          ToolCDE,
	"ftu-ui":          ToolFTUExplorer,
	"ftu-ui-small-wc": ToolFTUExplorer,
	"kg-explorer":     ToolKGExplorer,
}

// pathHints are substring fallbacks for events without a recognized app code.
// Order matters: "kg" must win before the shorter stem hints.
var pathHints = []struct {
	substr string
	tool   string
}{
	{"kg", ToolKGExplorer},
	{"eui", ToolEUI},
	{"rui", ToolRUI},
	{"cde", ToolCDE},
	{"ftu", ToolFTUExplorer},
}

// MapTool attributes an event to a tool. The explicit app-code table wins;
// otherwise the path is scanned for known substrings. Returns "" when neither
// matches.
func MapTool(app, path string) string {
	if tool, ok := appCodes[strings.ToLower(strings.TrimSpace(app))]; ok {
		return tool
	}
	lower := strings.ToLower(strings.TrimSpace(path))
	if lower == "" {
		return ""
	}
	for _, hint := range pathHints {
		if strings.Contains(lower, hint.substr) {
			return hint.tool
		}
	}
	return ""
}
