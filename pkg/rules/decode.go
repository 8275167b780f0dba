package rules

import (
	"fmt"

	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// DecodeSpec decodes a loosely typed map, as read from YAML, JSON or a tool call,
// into a SplitSpec. Unknown keys are rejected.
func DecodeSpec(raw map[string]any) (domain.SplitSpec, error) {
	var spec domain.SplitSpec
	if err := decode(raw, &spec); err != nil {
		return domain.SplitSpec{}, &domain.ConfigError{Field: "split", Reason: err.Error()}
	}
	return spec, nil
}

// DecodeStage decodes a {category, split} map into a StageConfig.
func DecodeStage(raw map[string]any) (domain.StageConfig, error) {
	var cfg domain.StageConfig
	if err := decode(raw, &cfg); err != nil {
		return domain.StageConfig{}, &domain.ConfigError{Field: "stage", Reason: err.Error()}
	}
	return cfg, nil
}

func decode(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	return dec.Decode(raw)
}
