package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ridoystarlord/casemigrate/diff"
)

// DefaultPipelineFile is read when no other file is named.
const DefaultPipelineFile = "pipeline.yaml"

// PipelineConfig holds the settings of pipeline.yaml.
type PipelineConfig struct {
	BatchSize  int
	FilePrefix string
	// Overrides are query parameters keyed by query name, merged over the
	// descriptor's defaults.
	Overrides map[string]map[string]any
	Checks    []diff.CountCheck
}

type yamlFile struct {
	BatchSize  int                       `yaml:"batch_size"`
	FilePrefix string                    `yaml:"file_prefix"`
	Queries    map[string]map[string]any `yaml:"queries"`
	Checks     []yamlCheck               `yaml:"checks"`
}

type yamlCheck struct {
	Name       string `yaml:"name"`
	Table      string `yaml:"table"`
	Where      string `yaml:"where"`
	Expected   int64  `yaml:"expected"`
	LegacySQL  string `yaml:"legacy_sql"`
	Adjustment int64  `yaml:"adjustment"`
	Exact      bool   `yaml:"exact"`
	Note       string `yaml:"note"`
}

// LoadPipelineFile reads filename. A missing file yields an empty config.
func LoadPipelineFile(filename string) (*PipelineConfig, error) {
	data, err := os.ReadFile(filename)
	if errors.Is(err, fs.ErrNotExist) {
		return &PipelineConfig{Overrides: map[string]map[string]any{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading pipeline file: %w", err)
	}
	return ParsePipeline(data)
}

// ParsePipeline decodes a pipeline file's contents.
func ParsePipeline(data []byte) (*PipelineConfig, error) {
	var yf yamlFile
	if err := yaml.Unmarshal(data, &yf); err != nil {
		return nil, fmt.Errorf("unmarshalling YAML: %w", err)
	}
	if yf.BatchSize < 0 {
		return nil, fmt.Errorf("batch_size must not be negative, got %d", yf.BatchSize)
	}

	cfg := &PipelineConfig{
		BatchSize:  yf.BatchSize,
		FilePrefix: yf.FilePrefix,
		Overrides:  yf.Queries,
	}
	if cfg.Overrides == nil {
		cfg.Overrides = map[string]map[string]any{}
	}

	for i, c := range yf.Checks {
		if c.Name == "" || c.Table == "" {
			return nil, fmt.Errorf("check %d needs a name and a table", i+1)
		}
		cfg.Checks = append(cfg.Checks, diff.CountCheck{
			Name:       c.Name,
			Table:      c.Table,
			Where:      c.Where,
			Expected:   c.Expected,
			LegacySQL:  c.LegacySQL,
			Adjustment: c.Adjustment,
			Exact:      c.Exact,
			Note:       c.Note,
		})
	}

	return cfg, nil
}
