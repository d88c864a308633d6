package profile

import (
	"time"

	"github.com/scribepipe/scribepipe/internal/transcribe"
)

// Builtin profile identifiers.
const (
	SileroEnglishID = "silero-en"
	ExampleID       = "example"
)

func floatRange(min, max float64) (*float64, *float64) {
	return &min, &max
}

// BuiltinOptions supplies the collaborators builtin profiles need.
type BuiltinOptions struct {
	// Model constructs a fresh model handle for a new runner instance.
	Model func() (transcribe.Model, error)
}

// RegisterBuiltins adds the stock profile types to the registry.
func RegisterBuiltins(r *Registry, opts BuiltinOptions) error {
	if err := r.Register(sileroDescriptor(), sileroFactory(opts)); err != nil {
		return err
	}
	return r.Register(exampleDescriptor(), exampleFactory())
}

func sileroDescriptor() Descriptor {
	winMin, winMax := floatRange(1, 100000)
	ovlMin, ovlMax := floatRange(0, 0.99)
	ampMin, ampMax := floatRange(0.01, 10)
	return Descriptor{
		ID:          SileroEnglishID,
		DisplayName: "Speech to text (Silero)",
		Params: []ParamSpec{
			{Name: "max_window_seconds", Type: ParamFloat, Default: 60.0, Min: winMin, Max: winMax},
			{Name: "window_overlap_ratio", Type: ParamFloat, Default: 0.05, Min: ovlMin, Max: ovlMax},
			{Name: "amplitude_ratio", Type: ParamFloat, Default: 1.0, Min: ampMin, Max: ampMax},
		},
	}
}

func sileroFactory(opts BuiltinOptions) Factory {
	return func(params Params) (transcribe.Runner, error) {
		model, err := opts.Model()
		if err != nil {
			return nil, err
		}
		return transcribe.NewWindowedRunner(model, transcribe.WindowedConfig{
			MaxWindowSeconds: params.Float("max_window_seconds"),
			OverlapRatio:     params.Float("window_overlap_ratio"),
			AmplitudeRatio:   params.Float("amplitude_ratio"),
		})
	}
}

func exampleDescriptor() Descriptor {
	stepMin, stepMax := floatRange(1, 1000)
	return Descriptor{
		ID:          ExampleID,
		DisplayName: "Example Profile",
		Params: []ParamSpec{
			{Name: "steps", Type: ParamInt, Default: int64(10), Min: stepMin, Max: stepMax},
			{Name: "step_millis", Type: ParamInt, Default: int64(100), Min: floatPtr(0), Max: floatPtr(60000)},
			{Name: "text", Type: ParamString, Default: "Result of example computation"},
		},
	}
}

func floatPtr(v float64) *float64 { return &v }

func exampleFactory() Factory {
	return func(params Params) (transcribe.Runner, error) {
		return &transcribe.ExampleRunner{
			Steps:     int(params.Int("steps")),
			StepDelay: time.Duration(params.Int("step_millis")) * time.Millisecond,
			Text:      params.String("text"),
		}, nil
	}
}
