// Package compose models the subset of the Docker Compose file format the
// installer writes, and renders it with yaml.v3.
package compose

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the compose file written into an install directory.
const FileName = "docker-compose.yml"

// Project is a compose file.
type Project struct {
	Name     string             `yaml:"name,omitempty"`
	Services map[string]Service `yaml:"services"`
	Volumes  map[string]Volume  `yaml:"volumes,omitempty"`
	Networks map[string]Network `yaml:"networks,omitempty"`
}

// Service is one container definition.
type Service struct {
	Image         string                `yaml:"image"`
	ContainerName string                `yaml:"container_name,omitempty"`
	Restart       string                `yaml:"restart,omitempty"`
	Command       []string              `yaml:"command,omitempty"`
	Environment   map[string]string     `yaml:"environment,omitempty"`
	Ports         []string              `yaml:"ports,omitempty"`
	Volumes       []string              `yaml:"volumes,omitempty"`
	Labels        []string              `yaml:"labels,omitempty"`
	Networks      []string              `yaml:"networks,omitempty"`
	DependsOn     map[string]Dependency `yaml:"depends_on,omitempty"`
	Healthcheck   *Healthcheck          `yaml:"healthcheck,omitempty"`
}

// Dependency is a long-form depends_on entry.
type Dependency struct {
	Condition string `yaml:"condition"`
}

// Dependency conditions.
const (
	ServiceStarted = "service_started"
	ServiceHealthy = "service_healthy"
)

// Healthcheck is a container health probe.
type Healthcheck struct {
	Test     []string `yaml:"test"`
	Interval string   `yaml:"interval,omitempty"`
	Timeout  string   `yaml:"timeout,omitempty"`
	Retries  int      `yaml:"retries,omitempty"`
}

// Volume is a named volume. The zero value uses the local driver.
type Volume struct {
	Driver string `yaml:"driver,omitempty"`
}

// Network is a named network.
type Network struct {
	Driver string `yaml:"driver,omitempty"`
}

// Validate checks that every service has an image and that depends_on,
// named volumes and networks refer to declared entries.
func (p *Project) Validate() error {
	if len(p.Services) == 0 {
		return fmt.Errorf("project has no services")
	}
	for _, name := range p.ServiceNames() {
		svc := p.Services[name]
		if svc.Image == "" {
			return fmt.Errorf("service %s: image is required", name)
		}
		for dep := range svc.DependsOn {
			if _, ok := p.Services[dep]; !ok {
				return fmt.Errorf("service %s: depends on unknown service %s", name, dep)
			}
		}
		for _, v := range svc.Volumes {
			src, _, ok := strings.Cut(v, ":")
			if !ok || strings.HasPrefix(src, "/") || strings.HasPrefix(src, ".") {
				continue
			}
			if _, ok := p.Volumes[src]; !ok {
				return fmt.Errorf("service %s: unknown volume %s", name, src)
			}
		}
		for _, n := range svc.Networks {
			if _, ok := p.Networks[n]; !ok {
				return fmt.Errorf("service %s: unknown network %s", name, n)
			}
		}
	}
	return nil
}

// ServiceNames returns the service names in sorted order.
func (p *Project) ServiceNames() []string {
	names := make([]string, 0, len(p.Services))
	for name := range p.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Escape doubles every "$" so Compose reads s literally instead of
// interpolating variables from it.
func Escape(s string) string {
	return strings.ReplaceAll(s, "$", "$$")
}

func escapeAll(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = Escape(s)
	}
	return out
}

// escaped returns a copy of s with every interpolated string escaped.
func (s Service) escaped() Service {
	out := s
	out.Image = Escape(s.Image)
	out.ContainerName = Escape(s.ContainerName)
	out.Restart = Escape(s.Restart)
	out.Command = escapeAll(s.Command)
	out.Ports = escapeAll(s.Ports)
	out.Volumes = escapeAll(s.Volumes)
	out.Labels = escapeAll(s.Labels)
	if s.Environment != nil {
		out.Environment = make(map[string]string, len(s.Environment))
		for k, v := range s.Environment {
			out.Environment[k] = Escape(v)
		}
	}
	if s.Healthcheck != nil {
		hc := *s.Healthcheck
		hc.Test = escapeAll(s.Healthcheck.Test)
		out.Healthcheck = &hc
	}
	return out
}

// Marshal renders the project as YAML. Values are written literally: every
// "$" is escaped, so the file never depends on the caller's environment.
func (p *Project) Marshal() ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	out := *p
	out.Services = make(map[string]Service, len(p.Services))
	for name, svc := range p.Services {
		out.Services[name] = svc.escaped()
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&out); err != nil {
		return nil, fmt.Errorf("failed to encode compose file: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode compose file: %w", err)
	}
	return buf.Bytes(), nil
}

// Write renders the project to path with mode 0600, since the file carries
// plaintext credentials. The file is replaced atomically.
func Write(path string, p *Project) error {
	data, err := p.Marshal()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write compose file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write compose file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write compose file: %w", err)
	}
	return nil
}
