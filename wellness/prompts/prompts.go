// Package prompts holds the LLM prompt catalog. Built-in prompts ship in
// defaults.properties and any key can be overridden from PROMPTS_FILE.
package prompts

import (
	_ "embed"
	"fmt"
	"strings"

	"wellness/wellness/utils/logging"

	"github.com/magiconair/properties"
	"go.uber.org/zap"
)

//go:embed defaults.properties
var defaults string

const (
	SystemBase      = "system.base"
	SystemProfile   = "system.profile"
	QueryEnhanced   = "query.enhanced"
	RAGAnswer       = "rag.answer"
	Title           = "title"
	RoadmapBase     = "roadmap.base"
	RoadmapGenerate = "roadmap.generate"
	RoadmapFormat   = "roadmap.format"
	extractPrefix   = "extract."
)

type Catalog struct {
	props *properties.Properties
}

// Load returns the built-in catalog merged with the overrides file, if any.
// An unreadable overrides file is logged and ignored.
func Load(path string) *Catalog {
	props := properties.MustLoadString(defaults)
	props.DisableExpansion = true

	if path != "" {
		override, err := properties.LoadFile(path, properties.UTF8)
		if err != nil {
			logging.AppLogger.Error("prompt overrides not loaded", zap.String("path", path), zap.Error(err))
		} else {
			props.Merge(override)
			logging.AppLogger.Info("prompt overrides loaded", zap.String("path", path), zap.Int("keys", override.Len()))
		}
	}
	return &Catalog{props: props}
}

// Default is the built-in catalog.
func Default() *Catalog {
	return Load("")
}

// Render fills {{name}} placeholders in the prompt stored under key.
func (c *Catalog) Render(key string, vars map[string]string) string {
	tmpl, ok := c.props.Get(key)
	if !ok {
		logging.ErrorLogger.Error("missing prompt", zap.String("key", key))
		return ""
	}
	if len(vars) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// Extraction returns the structured extraction prompt for a document type,
// falling back to the generic one.
func (c *Catalog) Extraction(documentType string) string {
	if v, ok := c.props.Get(extractPrefix + documentType); ok {
		return v
	}
	return c.Render(extractPrefix+"other", nil)
}

// System builds the answer system prompt, embedding the profile when present.
func (c *Catalog) System(profileJSON string) string {
	base := c.Render(SystemBase, nil)
	if profileJSON == "" {
		return base
	}
	return c.Render(SystemProfile, map[string]string{"base": base, "profile_json": profileJSON})
}

func (c *Catalog) String() string {
	return fmt.Sprintf("prompts(%d keys)", c.props.Len())
}
