package prompts

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//go:embed templates/*.md
var embeddedPrompts embed.FS

// Get returns the prompt content, preferring local .toil/prompts/ over embedded
func Get(name string) (string, error) {
	// Normalize name
	if !strings.HasSuffix(name, ".md") {
		name = name + ".md"
	}

	// Try embedded prompts
	content, err := embeddedPrompts.ReadFile("templates/" + name)
	if err != nil {
		return "", fmt.Errorf("prompt %s not found: %w", name, err)
	}
	return string(content), nil
}

// GetForWorkspace returns prompt content, checking workspace first then embedded
func GetForWorkspace(workDir, name string) (string, error) {
	if !strings.HasSuffix(name, ".md") {
		name = name + ".md"
	}

	// Try workspace prompts first
	localPath := filepath.Join(workDir, ".toil", "prompts", name)
	if content, err := os.ReadFile(localPath); err == nil {
		return string(content), nil
	}

	// Fall back to embedded
	return Get(name)
}

// Names lists the built-in prompt templates (for workspace scaffolding).
func Names() []string {
	entries, err := embeddedPrompts.ReadDir("templates")
	if err != nil {
		return nil
	}
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}
