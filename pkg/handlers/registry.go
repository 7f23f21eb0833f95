package handlers

import (
	"net/http"

	"github.com/imageforge/imageforge/pkg/sequencer"
)

// DefaultRegistry builds a registry with every handler registered. A nil
// client falls back to the fetch handler's default HTTP client.
func DefaultRegistry(runner CommandRunner, files FileWriter, client *http.Client) (*sequencer.Registry, error) {
	registry := sequencer.NewRegistry()

	all := []sequencer.Handler{
		NewUserCreateHandler(runner),
		NewFetchHandler(client, files),
		NewChmodHandler(files),
		NewPkgInstallHandler(runner),
		NewLangPkgInstallHandler(runner),
		NewRunScriptHandler(runner),
		NewArchiveInstallHandler(runner, files),
		NewSetWorkdirHandler(files),
		NewSetEnvHandler(),
		NewDeclarePortHandler(),
		NewDeclareVolumeHandler(),
		NewSetEntrypointHandler(),
	}

	for _, h := range all {
		if err := registry.Register(h); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// LocalRegistry builds a registry that executes against the local host.
func LocalRegistry() (*sequencer.Registry, error) {
	return DefaultRegistry(LocalRunner{}, LocalFS{}, nil)
}
