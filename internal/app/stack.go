// Package app installs the NocoDB application stack with Docker Compose.
package app

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/jbweber/palforge/internal/compose"
	"github.com/jbweber/palforge/internal/config"
)

// ProjectName is the compose project name.
const ProjectName = "nocodb"

// Images used by the stack.
const (
	NocoDBImage      = "nocodb/nocodb:latest"
	PostgresImage    = "postgres:16-alpine"
	RedisImage       = "redis:7-alpine"
	TraefikImage     = "traefik:v3.1"
	CloudflaredImage = "cloudflare/cloudflared:latest"
)

const (
	network     = "nocodb"
	nocodbPort  = 8080
	certResolve = "le"
)

// BuildProject returns the compose project for cfg. cfg.DBPassword must be
// set; the installer generates one when the operator did not supply it.
//
// With a domain, Traefik terminates TLS with an ACME certificate and NocoDB
// publishes no port. Without one, NocoDB listens on PublicPort. A tunnel
// token adds a cloudflared connector.
func BuildProject(cfg *config.AppConfig) (*compose.Project, error) {
	if cfg.DBPassword.IsZero() {
		return nil, fmt.Errorf("database password is required")
	}

	p := &compose.Project{
		Name:     ProjectName,
		Services: map[string]compose.Service{},
		Volumes: map[string]compose.Volume{
			"pgdata":      {},
			"redisdata":   {},
			"nocodb_data": {},
		},
		Networks: map[string]compose.Network{network: {}},
	}

	p.Services["db"] = compose.Service{
		Image:   PostgresImage,
		Restart: "unless-stopped",
		Environment: map[string]string{
			"POSTGRES_DB":       cfg.DBName,
			"POSTGRES_USER":     cfg.DBUser,
			"POSTGRES_PASSWORD": cfg.DBPassword.Reveal(),
		},
		Volumes:  []string{"pgdata:/var/lib/postgresql/data"},
		Networks: []string{network},
		Healthcheck: &compose.Healthcheck{
			Test:     []string{"CMD-SHELL", fmt.Sprintf("pg_isready -U %s -d %s", cfg.DBUser, cfg.DBName)},
			Interval: "10s",
			Timeout:  "5s",
			Retries:  10,
		},
	}

	p.Services["redis"] = compose.Service{
		Image:    RedisImage,
		Restart:  "unless-stopped",
		Command:  []string{"redis-server", "--appendonly", "yes"},
		Volumes:  []string{"redisdata:/data"},
		Networks: []string{network},
		Healthcheck: &compose.Healthcheck{
			Test:     []string{"CMD", "redis-cli", "ping"},
			Interval: "10s",
			Timeout:  "5s",
			Retries:  10,
		},
	}

	nocodb := compose.Service{
		Image:   NocoDBImage,
		Restart: "unless-stopped",
		Environment: map[string]string{
			"NC_DB":        DatabaseURL(cfg),
			"NC_REDIS_URL": "redis://redis:6379/0",
		},
		Volumes:  []string{"nocodb_data:/usr/app/data"},
		Networks: []string{network},
		DependsOn: map[string]compose.Dependency{
			"db":    {Condition: compose.ServiceHealthy},
			"redis": {Condition: compose.ServiceHealthy},
		},
	}

	if cfg.Domain != "" {
		nocodb.Environment["NC_PUBLIC_URL"] = "https://" + cfg.Domain
		nocodb.Labels = []string{
			"traefik.enable=true",
			fmt.Sprintf("traefik.http.routers.nocodb.rule=Host(`%s`)", cfg.Domain),
			"traefik.http.routers.nocodb.entrypoints=websecure",
			"traefik.http.routers.nocodb.tls.certresolver=" + certResolve,
			"traefik.http.services.nocodb.loadbalancer.server.port=" + strconv.Itoa(nocodbPort),
		}
		p.Volumes["letsencrypt"] = compose.Volume{}
		p.Services["traefik"] = traefik(cfg)
	} else {
		nocodb.Ports = []string{fmt.Sprintf("%d:%d", cfg.PublicPort, nocodbPort)}
	}
	p.Services["nocodb"] = nocodb

	if !cfg.TunnelToken.IsZero() {
		p.Services["cloudflared"] = compose.Service{
			Image:       CloudflaredImage,
			Restart:     "unless-stopped",
			Command:     []string{"tunnel", "--no-autoupdate", "run"},
			Environment: map[string]string{"TUNNEL_TOKEN": cfg.TunnelToken.Reveal()},
			Networks:    []string{network},
			DependsOn:   map[string]compose.Dependency{"nocodb": {Condition: compose.ServiceStarted}},
		}
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func traefik(cfg *config.AppConfig) compose.Service {
	return compose.Service{
		Image:   TraefikImage,
		Restart: "unless-stopped",
		Command: []string{
			"--providers.docker=true",
			"--providers.docker.exposedbydefault=false",
			"--entrypoints.web.address=:80",
			"--entrypoints.web.http.redirections.entrypoint.to=websecure",
			"--entrypoints.web.http.redirections.entrypoint.scheme=https",
			"--entrypoints.websecure.address=:443",
			"--certificatesresolvers." + certResolve + ".acme.email=" + cfg.ACMEEmail,
			"--certificatesresolvers." + certResolve + ".acme.storage=/letsencrypt/acme.json",
			"--certificatesresolvers." + certResolve + ".acme.httpchallenge.entrypoint=web",
		},
		Ports: []string{"80:80", "443:443"},
		Volumes: []string{
			"/var/run/docker.sock:/var/run/docker.sock:ro",
			"letsencrypt:/letsencrypt",
		},
		Networks: []string{network},
	}
}

// DatabaseURL returns NocoDB's NC_DB connection string.
func DatabaseURL(cfg *config.AppConfig) string {
	q := url.Values{}
	q.Set("u", cfg.DBUser)
	q.Set("p", cfg.DBPassword.Reveal())
	q.Set("d", cfg.DBName)
	return "pg://db:5432?" + q.Encode()
}

// PublicURL returns where the installed stack is reachable, using host when
// no domain is configured.
func PublicURL(cfg *config.AppConfig, host string) string {
	if cfg.Domain != "" {
		return "https://" + cfg.Domain
	}
	return fmt.Sprintf("http://%s:%d", host, cfg.PublicPort)
}
