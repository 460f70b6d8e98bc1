package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wireflow/wireflow/internal/core"
)

type fakeNode struct{ started, stopped bool }

func (f *fakeNode) Start() error { f.started = true; return nil }
func (f *fakeNode) Step() error  { return nil }
func (f *fakeNode) Stop() error  { f.stopped = true; return nil }

func TestRegisterAndLookup(t *testing.T) {
	r := New()
	r.Register(Descriptor{
		Name:     "noop",
		Category: core.CategoryConduit,
		Factory:  func(map[string]any) (Node, error) { return &fakeNode{}, nil },
	})

	d, err := r.Lookup("noop")
	require.NoError(t, err)
	assert.Equal(t, core.CategoryConduit, d.Category)
}

func TestLookupUnknownComponent(t *testing.T) {
	r := New()
	_, err := r.Lookup("missing")
	assert.ErrorIs(t, err, core.ErrComponentNotFound)
}

func TestRegisterDuplicatePanics(t *testing.T) {
	r := New()
	desc := Descriptor{Name: "dup", Factory: func(map[string]any) (Node, error) { return &fakeNode{}, nil }}
	r.Register(desc)
	assert.Panics(t, func() { r.Register(desc) })
}

func TestInstantiateAppliesDefaultsAndValidatesRequired(t *testing.T) {
	r := New()
	r.Register(Descriptor{
		Name: "gain",
		Params: []ParamSchema{
			{Name: "factor", Type: "float", Required: true},
			{Name: "label", Type: "string", Default: "default-label"},
		},
		Factory: func(args map[string]any) (Node, error) {
			if _, ok := args["label"]; !ok {
				t.Fatal("expected default to be applied")
			}
			return &fakeNode{}, nil
		},
	})

	_, _, err := r.Instantiate("gain", map[string]any{})
	assert.ErrorIs(t, err, core.ErrInvalidArgs)

	_, _, err = r.Instantiate("gain", map[string]any{"factor": 2.0})
	require.NoError(t, err)
}

func TestDecodeIntoTypedStruct(t *testing.T) {
	type opts struct {
		Factor float64 `mapstructure:"factor"`
		Label  string  `mapstructure:"label"`
	}
	var out opts
	err := Decode(map[string]any{"factor": 1.5, "label": "x"}, &out)
	require.NoError(t, err)
	assert.Equal(t, 1.5, out.Factor)
	assert.Equal(t, "x", out.Label)
}
