package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/aristath/divmon/internal/domain"
)

// instrumentsFile is the on-disk shape of the instruments YAML file.
type instrumentsFile struct {
	Defaults struct {
		ThresholdOffset float64 `yaml:"threshold_offset" default:"0.5"`
	} `yaml:"defaults"`
	Instruments map[string]domain.Instrument `yaml:"instruments" validate:"required,min=1"`
}

// LoadInstruments parses and validates the instruments file at path.
// Instruments are returned sorted by ticker so every run walks them in the
// same order.
func LoadInstruments(path string) ([]domain.Instrument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read instruments file: %w", err)
	}

	var file instrumentsFile
	if err := defaults.Set(&file); err != nil {
		return nil, fmt.Errorf("failed to apply instrument defaults: %w", err)
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse instruments file: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&file); err != nil {
		return nil, fmt.Errorf("invalid instruments file: %w", err)
	}

	instruments := make([]domain.Instrument, 0, len(file.Instruments))
	for ticker, inst := range file.Instruments {
		inst.Ticker = ticker
		if inst.ThresholdOffset == 0 {
			inst.ThresholdOffset = file.Defaults.ThresholdOffset
		}
		if err := validate.Struct(inst); err != nil {
			return nil, fmt.Errorf("invalid instrument %s: %w", ticker, err)
		}
		if err := inst.Validate(); err != nil {
			return nil, err
		}
		instruments = append(instruments, inst)
	}

	sort.Slice(instruments, func(i, j int) bool {
		return instruments[i].Ticker < instruments[j].Ticker
	})
	return instruments, nil
}
