package team

import (
	"fmt"
	"strings"
)

// AnalysisType selects which profile handles a request.
type AnalysisType string

const (
	VisualDesign   AnalysisType = "Visual Design"
	UserExperience AnalysisType = "User Experience"
	MarketAnalysis AnalysisType = "Market Analysis"
)

// AnalysisTypes lists every type in dispatch order.
var AnalysisTypes = []AnalysisType{VisualDesign, UserExperience, MarketAnalysis}

// FocusElements is the fixed set of design aspects a user can emphasise.
var FocusElements = []string{
	"Color Scheme",
	"Typography",
	"Layout",
	"Navigation",
	"Interactions",
	"Accessibility",
	"Branding",
	"Market Fit",
}

// Title is the heading a result is rendered under.
func (t AnalysisType) Title() string {
	switch t {
	case VisualDesign:
		return "🎨 Visual Design Analysis"
	case UserExperience:
		return "🔄 UX Analysis"
	case MarketAnalysis:
		return "📊 Market Analysis"
	default:
		return string(t)
	}
}

func (t AnalysisType) valid() bool {
	for _, known := range AnalysisTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseAnalysisTypes resolves user-supplied names case-insensitively,
// drops duplicates and returns them in dispatch order. Unknown names are
// rejected.
func ParseAnalysisTypes(names []string) ([]AnalysisType, error) {
	selected := make(map[AnalysisType]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		t, ok := lookupType(name)
		if !ok {
			return nil, fmt.Errorf("unknown analysis type %q", name)
		}
		selected[t] = true
	}

	out := make([]AnalysisType, 0, len(selected))
	for _, t := range AnalysisTypes {
		if selected[t] {
			out = append(out, t)
		}
	}
	return out, nil
}

func lookupType(name string) (AnalysisType, bool) {
	for _, t := range AnalysisTypes {
		if strings.EqualFold(string(t), name) {
			return t, true
		}
	}
	switch strings.ToLower(name) {
	case "visual", "vision":
		return VisualDesign, true
	case "ux":
		return UserExperience, true
	case "market":
		return MarketAnalysis, true
	}
	return "", false
}

// ParseFocusElements normalizes focus element names to their canonical
// spelling and rejects unknown ones. Input order is kept.
func ParseFocusElements(names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		canonical := ""
		for _, known := range FocusElements {
			if strings.EqualFold(known, name) {
				canonical = known
				break
			}
		}
		if canonical == "" {
			return nil, fmt.Errorf("unknown focus element %q", name)
		}
		if !seen[canonical] {
			seen[canonical] = true
			out = append(out, canonical)
		}
	}
	return out, nil
}
