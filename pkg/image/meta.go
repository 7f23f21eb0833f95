// Package image accumulates the metadata a provisioning run declares on
// its target image (exposed ports, volumes, entrypoint, user) and renders
// it as an OCI image configuration.
package image

import (
	"fmt"
	"sort"
	"time"

	v1 "github.com/google/go-containerregistry/pkg/v1"
)

// Meta is the declared runtime surface of the image being provisioned.
// Declaration steps append to it; it never affects step execution.
type Meta struct {
	// ExposedPorts are declared TCP ports.
	ExposedPorts map[int]struct{}

	// Volumes are declared mount points.
	Volumes map[string]struct{}

	// Entrypoint is the image's default start command.
	Entrypoint []string

	// User is the user the entrypoint runs as. Empty means root.
	User string
}

// NewMeta creates an empty metadata set.
func NewMeta() *Meta {
	return &Meta{
		ExposedPorts: make(map[int]struct{}),
		Volumes:      make(map[string]struct{}),
	}
}

// ExposePort records a TCP port. Re-declaring a port is a no-op.
func (m *Meta) ExposePort(port int) {
	m.ExposedPorts[port] = struct{}{}
}

// DeclareVolume records a mount point. Re-declaring a path is a no-op.
func (m *Meta) DeclareVolume(path string) {
	m.Volumes[path] = struct{}{}
}

// SetEntrypoint records the default start command, replacing any
// previous declaration.
func (m *Meta) SetEntrypoint(command []string) {
	m.Entrypoint = append([]string(nil), command...)
}

// Ports returns the declared ports in ascending order.
func (m *Meta) Ports() []int {
	ports := make([]int, 0, len(m.ExposedPorts))
	for p := range m.ExposedPorts {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	return ports
}

// VolumePaths returns the declared mount points in lexical order.
func (m *Meta) VolumePaths() []string {
	paths := make([]string, 0, len(m.Volumes))
	for p := range m.Volumes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// ConfigFile renders the metadata plus the environment's final env vars
// and working directory as an OCI image configuration.
func (m *Meta) ConfigFile(env []string, workingDir string, created time.Time) *v1.ConfigFile {
	cfg := v1.Config{
		Env:        append([]string(nil), env...),
		WorkingDir: workingDir,
		Entrypoint: append([]string(nil), m.Entrypoint...),
		User:       m.User,
	}

	if len(m.ExposedPorts) > 0 {
		cfg.ExposedPorts = make(map[string]struct{}, len(m.ExposedPorts))
		for _, p := range m.Ports() {
			cfg.ExposedPorts[fmt.Sprintf("%d/tcp", p)] = struct{}{}
		}
	}

	if len(m.Volumes) > 0 {
		cfg.Volumes = make(map[string]struct{}, len(m.Volumes))
		for _, p := range m.VolumePaths() {
			cfg.Volumes[p] = struct{}{}
		}
	}

	return &v1.ConfigFile{
		Architecture: "amd64",
		OS:           "linux",
		Created:      v1.Time{Time: created},
		Config:       cfg,
		RootFS:       v1.RootFS{Type: "layers"},
	}
}
