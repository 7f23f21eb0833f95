package recipe

import (
	"encoding/json"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// CUEParser parses and validates CUE recipe files against the built-in
// recipe schema.
type CUEParser struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewCUEParser creates a new CUE parser with the built-in schema compiled.
func NewCUEParser() (*CUEParser, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(builtinRecipeSchema, cue.Filename("recipe_schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compiling recipe schema: %w", err)
	}

	return &CUEParser{ctx: ctx, schema: schema}, nil
}

// ParseFile reads and parses a single CUE recipe file.
func (p *CUEParser) ParseFile(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading recipe file: %w", err)
	}
	return p.Parse(path, data)
}

// Parse parses recipe source. The filename is used for error positions only.
func (p *CUEParser) Parse(filename string, src []byte) (*Recipe, error) {
	val := p.ctx.CompileBytes(src, cue.Filename(filename))
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("compiling recipe: %s", cueErrorDetails(err))
	}

	// Unify with the schema so every step's args are checked against
	// the shape its kind requires.
	schemaDef := p.schema.LookupPath(cue.ParsePath("#Recipe"))
	unified := val.Unify(schemaDef)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("recipe does not match schema: %s", cueErrorDetails(err))
	}

	// Decode through an intermediate shape: CUE decodes args into plain
	// maps, which are then re-marshalled into the Step's raw form.
	var file struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Steps       []struct {
			Name string                 `json:"name"`
			Kind string                 `json:"kind"`
			Args map[string]interface{} `json:"args"`
		} `json:"steps"`
	}
	if err := unified.Decode(&file); err != nil {
		return nil, fmt.Errorf("decoding recipe: %s", cueErrorDetails(err))
	}

	r := &Recipe{
		Name:        file.Name,
		Description: file.Description,
		Steps:       make([]Step, 0, len(file.Steps)),
	}
	for i, fs := range file.Steps {
		raw, err := json.Marshal(fs.Args)
		if err != nil {
			return nil, fmt.Errorf("step %d: encoding args: %w", i, err)
		}
		r.Steps = append(r.Steps, Step{
			Name: fs.Name,
			Kind: Kind(fs.Kind),
			Args: raw,
		})
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}

	return r, nil
}

// cueErrorDetails flattens a CUE error list into a single message.
func cueErrorDetails(err error) string {
	if list := cueerrors.Errors(err); len(list) > 0 {
		msg := ""
		for i, e := range list {
			if i > 0 {
				msg += "; "
			}
			msg += e.Error()
		}
		return msg
	}
	return err.Error()
}
