package report

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v2"

	"github.com/bsaid97/go-area-weighted-average/pipeline"
)

// Manifest describes one run and what it produced.
type Manifest struct {
	RunID     string             `yaml:"run_id"`
	CreatedAt time.Time          `yaml:"created_at"`
	Input     string             `yaml:"input"`
	Overlay   string             `yaml:"overlay"`
	Field     string             `yaml:"field"`
	AreaMode  string             `yaml:"area_mode"`
	Artifacts []string           `yaml:"artifacts"`
	Uploaded  []string           `yaml:"uploaded,omitempty"`
	Warnings  []pipeline.Warning `yaml:"warnings"`
	Stats     pipeline.Stats     `yaml:"stats"`
}

// NewManifest starts a manifest for req with a fresh run id.
func NewManifest(req pipeline.Request, areaMode string) *Manifest {
	m := &Manifest{
		RunID:     uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Field:     req.Field,
		AreaMode:  areaMode,
		Warnings:  []pipeline.Warning{},
	}
	if req.Input != nil {
		m.Input = req.Input.Name
	}
	if req.Overlay != nil {
		m.Overlay = req.Overlay.Name
	}
	return m
}

// Record copies the warnings and counts of a finished run.
func (m *Manifest) Record(art *pipeline.Artifacts) {
	if art == nil {
		return
	}
	m.Warnings = append(m.Warnings, art.Warnings...)
	m.Stats = art.Stats
}

// Marshal encodes the manifest as YAML.
func (m *Manifest) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	return data, nil
}

// Save writes the manifest to path.
func (m *Manifest) Save(path string) error {
	data, err := m.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error saving manifest %s: %w", path, err)
	}
	return nil
}

// LoadManifest reads a manifest written by Save.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return &m, nil
}
