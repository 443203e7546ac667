// Package prompt holds the process-wide registry of prompt templates.
// Templates live in the embedded prompts.yaml; each declares the
// variables it requires and rendering is pure text substitution.
package prompt

import (
	"embed"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var promptsFS embed.FS

// ErrMissingVariable reports a required template variable that was not
// supplied. This is a programmer error, not a user-facing condition.
var ErrMissingVariable = errors.New("missing template variable")

// ErrUnknownTemplate reports a template name absent from the registry.
var ErrUnknownTemplate = errors.New("unknown template")

type entry struct {
	Description string   `yaml:"description"`
	Variables   []string `yaml:"variables"`
	Template    string   `yaml:"template"`
}

// Registry is a read-only set of named templates, loaded once at
// process start and safe for unsynchronized concurrent reads.
type Registry struct {
	templates map[string]*template.Template
	variables map[string][]string
}

// Default is the registry built from the embedded prompt pack.
var Default = mustLoad()

func mustLoad() *Registry {
	raw, err := promptsFS.ReadFile("prompts.yaml")
	if err != nil {
		panic(fmt.Sprintf("prompt: reading embedded prompts: %v", err))
	}
	reg, err := Parse(raw)
	if err != nil {
		panic(fmt.Sprintf("prompt: %v", err))
	}
	return reg
}

// Parse builds a registry from YAML prompt definitions.
func Parse(raw []byte) (*Registry, error) {
	var data map[string]entry
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parsing prompt definitions: %w", err)
	}
	reg := &Registry{
		templates: make(map[string]*template.Template, len(data)),
		variables: make(map[string][]string, len(data)),
	}
	for name, e := range data {
		tmpl, err := template.New(name).Option("missingkey=error").Parse(e.Template)
		if err != nil {
			return nil, fmt.Errorf("compiling template %q: %w", name, err)
		}
		reg.templates[name] = tmpl
		reg.variables[name] = e.Variables
	}
	return reg, nil
}

// Names returns the registered template names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	return names
}

// Variables returns the declared required variables of a template.
func (r *Registry) Variables(name string) []string {
	return r.variables[name]
}

// Render substitutes vars into the named template. Every variable the
// template declares must be present in vars.
func (r *Registry) Render(name string, vars map[string]any) (string, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	for _, required := range r.variables[name] {
		if _, ok := vars[required]; !ok {
			return "", fmt.Errorf("%w: template %q requires %q", ErrMissingVariable, name, required)
		}
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, vars); err != nil {
		return "", fmt.Errorf("rendering template %q: %w", name, err)
	}
	return sb.String(), nil
}

// Render renders from the default registry.
func Render(name string, vars map[string]any) (string, error) {
	return Default.Render(name, vars)
}
