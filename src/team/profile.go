package team

import (
	"context"
	"errors"
	"fmt"
	"strings"

	agent "github.com/Protocol-Lattice/design-team"
	"github.com/Protocol-Lattice/design-team/src/models"
)

const (
	visionRole = `You are a visual analysis expert that:
1. Identifies design elements, patterns, and visual hierarchy
2. Analyzes color schemes, typography, and layouts
3. Detects UI components and their relationships
4. Evaluates visual consistency and branding

Be specific and technical in your analysis.`

	uxRole = `You are a UX analysis expert that:
1. Evaluates user flows and interaction patterns
2. Identifies usability issues and opportunities
3. Suggests UX improvements based on best practices
4. Analyzes accessibility and inclusive design

Focus on user-centric insights and practical improvements.`

	marketRole = `You are a market research expert that:
1. Identifies market trends and competitor patterns
2. Analyzes similar products and features
3. Suggests market positioning and opportunities
4. Provides industry-specific insights

Focus on actionable market intelligence.`
)

// ProfileConfig parameterizes one reasoning agent of the team.
type ProfileConfig struct {
	Name string
	Type AnalysisType
	// Role is the expert description placed ahead of the reasoning format.
	Role  string
	Tools []agent.Tool

	MaxIterations       int
	HandleParsingErrors bool
}

// Profile is a reasoning agent bound to one analysis type.
type Profile struct {
	Name  string
	Type  AnalysisType
	agent *agent.Agent
}

// DefaultProfileConfigs returns the Vision, UX and Market profiles in
// dispatch order. Market may search the web before looking at the images.
func DefaultProfileConfigs(imageTool, searchTool agent.Tool) []ProfileConfig {
	return []ProfileConfig{
		{Name: "vision", Type: VisualDesign, Role: visionRole, Tools: []agent.Tool{imageTool}},
		{Name: "ux", Type: UserExperience, Role: uxRole, Tools: []agent.Tool{imageTool}},
		{Name: "market", Type: MarketAnalysis, Role: marketRole, Tools: []agent.Tool{searchTool, imageTool}},
	}
}

// NewProfile builds a profile on an existing model connection.
func NewProfile(conn models.Agent, cfg ProfileConfig) (*Profile, error) {
	if conn == nil {
		return nil, errors.New("profile requires a model connection")
	}
	if !cfg.Type.valid() {
		return nil, fmt.Errorf("profile %q: unknown analysis type %q", cfg.Name, cfg.Type)
	}
	if len(cfg.Tools) == 0 {
		return nil, fmt.Errorf("profile %q: no tools configured", cfg.Name)
	}
	for _, tool := range cfg.Tools {
		if tool == nil {
			return nil, fmt.Errorf("profile %q: nil tool", cfg.Name)
		}
	}

	ag, err := agent.New(agent.Options{
		Name:                cfg.Name,
		Model:               conn,
		Template:            profileTemplate(cfg.Role),
		Tools:               cfg.Tools,
		ToolCatalog:         agent.NewStaticToolCatalog(nil),
		MaxIterations:       cfg.MaxIterations,
		HandleParsingErrors: cfg.HandleParsingErrors,
	})
	if err != nil {
		return nil, fmt.Errorf("profile %q: %w", cfg.Name, err)
	}
	return &Profile{Name: cfg.Name, Type: cfg.Type, agent: ag}, nil
}

func profileTemplate(role string) string {
	role = strings.TrimSpace(role)
	if role == "" {
		return agent.DefaultTemplate
	}
	return role + "\n\n" + agent.ReActFormat
}

// Invoke runs the profile's reasoning loop.
func (p *Profile) Invoke(ctx context.Context, in agent.Input) (agent.Output, error) {
	return p.agent.Invoke(ctx, in)
}

// ToolNames lists the tools the profile may call, in prompt order.
func (p *Profile) ToolNames() []string {
	specs := p.agent.ToolSpecs()
	names := make([]string, len(specs))
	for i, spec := range specs {
		names[i] = spec.Name
	}
	return names
}
