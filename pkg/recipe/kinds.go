package recipe

import "fmt"

// Kind identifies the action a step performs against the environment.
type Kind string

const (
	// KindCreateUser creates a system user account.
	KindCreateUser Kind = "user.create"
	// KindFetch downloads a file into the environment.
	KindFetch Kind = "fetch"
	// KindChmod updates permission bits on a path.
	KindChmod Kind = "chmod"
	// KindInstallSystemPackage installs a package via the system package manager.
	KindInstallSystemPackage Kind = "pkg.install"
	// KindInstallLanguagePackage installs a package via a language package manager.
	KindInstallLanguagePackage Kind = "langpkg.install"
	// KindRunScript runs a script through an interpreter.
	KindRunScript Kind = "script.run"
	// KindInstallArchive installs a downloaded package archive.
	KindInstallArchive Kind = "archive.install"
	// KindSetWorkdir changes the working directory for subsequent steps.
	KindSetWorkdir Kind = "workdir.set"
	// KindSetEnv sets an environment variable for subsequent steps and the image.
	KindSetEnv Kind = "env.set"
	// KindDeclarePort records an exposed network port on the image.
	KindDeclarePort Kind = "port.expose"
	// KindDeclareVolume records a mount point on the image.
	KindDeclareVolume Kind = "volume.declare"
	// KindSetEntrypoint records the image's default start command.
	KindSetEntrypoint Kind = "entrypoint.set"
)

// Kinds lists every valid step kind in a stable order.
var Kinds = []Kind{
	KindCreateUser,
	KindFetch,
	KindChmod,
	KindInstallSystemPackage,
	KindInstallLanguagePackage,
	KindRunScript,
	KindInstallArchive,
	KindSetWorkdir,
	KindSetEnv,
	KindDeclarePort,
	KindDeclareVolume,
	KindSetEntrypoint,
}

// Validate checks if the kind is valid.
func (k Kind) Validate() error {
	switch k {
	case KindCreateUser, KindFetch, KindChmod,
		KindInstallSystemPackage, KindInstallLanguagePackage,
		KindRunScript, KindInstallArchive,
		KindSetWorkdir, KindSetEnv,
		KindDeclarePort, KindDeclareVolume, KindSetEntrypoint:
		return nil
	default:
		return fmt.Errorf("invalid step kind: %s", k)
	}
}

// MetadataOnly reports whether the kind mutates only image metadata and
// therefore cannot fail once its arguments are validated.
func (k Kind) MetadataOnly() bool {
	return k == KindSetEnv || k == KindDeclarePort ||
		k == KindDeclareVolume || k == KindSetEntrypoint
}
