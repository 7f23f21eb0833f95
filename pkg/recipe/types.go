// Package recipe defines the provisioning recipe model: an ordered,
// immutable list of steps, each a kind plus kind-specific arguments.
// Recipes are authored in CUE and validated against the embedded schema
// before execution.
package recipe

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Step is one declarative provisioning action. Steps are immutable once
// defined; their position in Recipe.Steps is their execution order.
type Step struct {
	// Name is an optional human-readable label for the step.
	Name string `json:"name,omitempty"`

	// Kind is the action this step performs.
	Kind Kind `json:"kind" validate:"required"`

	// Args holds the kind-specific arguments, decoded on demand.
	Args json.RawMessage `json:"args,omitempty"`
}

// Recipe is an ordered sequence of provisioning steps applied to a
// single target environment.
type Recipe struct {
	// Name identifies the recipe (e.g., "flotilla-notebook").
	Name string `json:"name" validate:"required"`

	// Description is an optional human-readable summary.
	Description string `json:"description,omitempty"`

	// Steps are executed strictly in declaration order.
	Steps []Step `json:"steps" validate:"required,min=1,dive"`
}

// CreateUserArgs are the arguments for a user.create step.
type CreateUserArgs struct {
	// Username is the account name to create.
	Username string `json:"username" validate:"required"`

	// Home is the account's home directory. Empty means the platform default.
	Home string `json:"home,omitempty"`

	// CreateHome creates the home directory if it does not exist.
	CreateHome bool `json:"create_home,omitempty"`

	// TolerateExisting treats an already-present user with this name as
	// success instead of a failure.
	TolerateExisting bool `json:"tolerate_existing,omitempty"`
}

// FetchArgs are the arguments for a fetch step.
type FetchArgs struct {
	// URL is the source to download.
	URL string `json:"url" validate:"required,url"`

	// Dest is the destination path inside the environment.
	Dest string `json:"dest" validate:"required"`
}

// ChmodArgs are the arguments for a chmod step.
type ChmodArgs struct {
	// Path is the target path inside the environment.
	Path string `json:"path" validate:"required"`

	// Mode holds the octal permission bits (e.g., "0755").
	Mode string `json:"mode" validate:"required"`
}

// InstallSystemPackageArgs are the arguments for a pkg.install step.
type InstallSystemPackageArgs struct {
	// Name is the package name passed to the system package manager.
	Name string `json:"name" validate:"required"`

	// Manager selects the package manager (apt, dnf, yum, zypper).
	// Empty means auto-detect.
	Manager string `json:"manager,omitempty" validate:"omitempty,oneof=apt dnf yum zypper"`
}

// InstallLanguagePackageArgs are the arguments for a langpkg.install step.
type InstallLanguagePackageArgs struct {
	// Spec is the package specification passed to the installer
	// (a name, or a source path for editable installs).
	Spec string `json:"spec" validate:"required"`

	// Installer selects the language package manager. Only pip is
	// currently supported.
	Installer string `json:"installer,omitempty" validate:"omitempty,oneof=pip"`

	// Editable installs the package in development mode (pip -e).
	Editable bool `json:"editable,omitempty"`
}

// RunScriptArgs are the arguments for a script.run step.
type RunScriptArgs struct {
	// Interpreter is the program used to run the script (e.g., "Rscript", "sh").
	Interpreter string `json:"interpreter" validate:"required"`

	// Path is the script path inside the environment.
	Path string `json:"path" validate:"required"`

	// Args are extra arguments passed after the script path.
	Args []string `json:"args,omitempty"`
}

// InstallArchiveArgs are the arguments for an archive.install step.
type InstallArchiveArgs struct {
	// Path is the archive path inside the environment.
	Path string `json:"path" validate:"required"`

	// Installer selects how the archive is installed. "r" runs
	// R CMD INSTALL; "tar" extracts into Dest.
	Installer string `json:"installer" validate:"required,oneof=r tar"`

	// Dest is the extraction destination for the tar installer.
	Dest string `json:"dest,omitempty"`
}

// SetWorkdirArgs are the arguments for a workdir.set step.
type SetWorkdirArgs struct {
	// Path must already exist inside the environment.
	Path string `json:"path" validate:"required"`
}

// SetEnvArgs are the arguments for an env.set step.
type SetEnvArgs struct {
	// Key is the environment variable name.
	Key string `json:"key" validate:"required"`

	// Value is the environment variable value.
	Value string `json:"value"`
}

// DeclarePortArgs are the arguments for a port.expose step.
type DeclarePortArgs struct {
	// Port is the TCP port number recorded on the image.
	Port int `json:"port" validate:"required,min=1,max=65535"`
}

// DeclareVolumeArgs are the arguments for a volume.declare step.
type DeclareVolumeArgs struct {
	// Path is the mount point recorded on the image.
	Path string `json:"path" validate:"required"`
}

// SetEntrypointArgs are the arguments for an entrypoint.set step.
type SetEntrypointArgs struct {
	// Command is the image's default start command and its arguments.
	Command []string `json:"command" validate:"required,min=1"`
}

// validate is the shared validator instance for argument structs.
var validate = validator.New()

// DecodeArgs decodes and validates the step's arguments into the typed
// struct for its kind. The returned value is one of the *Args types above.
func (s Step) DecodeArgs() (interface{}, error) {
	if err := s.Kind.Validate(); err != nil {
		return nil, err
	}

	var args interface{}
	switch s.Kind {
	case KindCreateUser:
		args = &CreateUserArgs{}
	case KindFetch:
		args = &FetchArgs{}
	case KindChmod:
		args = &ChmodArgs{}
	case KindInstallSystemPackage:
		args = &InstallSystemPackageArgs{}
	case KindInstallLanguagePackage:
		args = &InstallLanguagePackageArgs{}
	case KindRunScript:
		args = &RunScriptArgs{}
	case KindInstallArchive:
		args = &InstallArchiveArgs{}
	case KindSetWorkdir:
		args = &SetWorkdirArgs{}
	case KindSetEnv:
		args = &SetEnvArgs{}
	case KindDeclarePort:
		args = &DeclarePortArgs{}
	case KindDeclareVolume:
		args = &DeclareVolumeArgs{}
	case KindSetEntrypoint:
		args = &SetEntrypointArgs{}
	}

	if len(s.Args) > 0 {
		if err := json.Unmarshal(s.Args, args); err != nil {
			return nil, fmt.Errorf("decoding %s args: %w", s.Kind, err)
		}
	}

	if err := validate.Struct(args); err != nil {
		return nil, fmt.Errorf("invalid %s args: %w", s.Kind, err)
	}

	return args, nil
}

// Validate checks the recipe structure and every step's arguments.
func (r *Recipe) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("recipe %q: %w", r.Name, err)
	}

	for i, step := range r.Steps {
		if err := step.Kind.Validate(); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		if _, err := step.DecodeArgs(); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}

	return nil
}

// MustArgs is a helper for building steps programmatically: it marshals
// v and panics on failure. Intended for tests and fixed recipes.
func MustArgs(v interface{}) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
