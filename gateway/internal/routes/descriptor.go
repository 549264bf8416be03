package routes

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultTimeout bounds every upstream call unless a route overrides it.
const DefaultTimeout = 10 * time.Second

// Descriptor is the configured form of a route, as read from YAML or viper.
type Descriptor struct {
	Name string `yaml:"name" mapstructure:"name"`

	// Prefix is the public path prefix, matched on segment boundaries.
	Prefix string `yaml:"prefix" mapstructure:"prefix"`

	// Upstream is the base URL of the service. When empty, UpstreamEnv names an
	// environment variable holding it.
	Upstream    string `yaml:"upstream" mapstructure:"upstream"`
	UpstreamEnv string `yaml:"upstream_env" mapstructure:"upstream_env"`

	// Rewrite replaces Prefix in the forwarded path.
	Rewrite string `yaml:"rewrite" mapstructure:"rewrite"`

	AllowedRoles []string `yaml:"allowed_roles" mapstructure:"allowed_roles"`

	// MethodOverrides narrows a role to the listed HTTP methods on this route.
	MethodOverrides map[string][]string `yaml:"method_overrides" mapstructure:"method_overrides"`

	// Optional routes without an upstream are skipped instead of failing startup.
	Optional bool `yaml:"optional" mapstructure:"optional"`

	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type fileFormat struct {
	Routes []Descriptor `yaml:"routes"`
}

// LoadFile reads descriptors from a YAML file with a top level "routes" list.
// Unknown keys are rejected so typos fail at startup.
func LoadFile(path string) ([]Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read routes file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML routes document.
func Parse(data []byte) ([]Descriptor, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f fileFormat
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("routes file is empty")
		}
		return nil, fmt.Errorf("failed to parse routes file: %w", err)
	}
	return f.Routes, nil
}

// Defaults returns the inventory service routes. Upstreams come from the
// environment and each route is skipped when its variable is unset.
func Defaults() []Descriptor {
	return []Descriptor{
		{
			Name:            "products",
			Prefix:          "/api/products",
			UpstreamEnv:     "PRODUCT_SERVICE_URL",
			Rewrite:         "/products",
			AllowedRoles:    []string{"admin", "manager", "staff"},
			MethodOverrides: map[string][]string{"staff": {"GET", "HEAD"}},
			Optional:        true,
		},
		{
			Name:         "sales",
			Prefix:       "/api/sales",
			UpstreamEnv:  "SALES_SERVICE_URL",
			Rewrite:      "/api",
			AllowedRoles: []string{"admin", "manager", "staff"},
			Optional:     true,
		},
		{
			Name:            "stock",
			Prefix:          "/api/stock",
			UpstreamEnv:     "STOCK_SERVICE_URL",
			Rewrite:         "/stock",
			AllowedRoles:    []string{"admin", "manager", "staff"},
			MethodOverrides: map[string][]string{"staff": {"GET", "HEAD"}},
			Optional:        true,
		},
		{
			Name:         "predict",
			Prefix:       "/api/predict",
			UpstreamEnv:  "PREDICTION_SERVICE_URL",
			Rewrite:      "/predict",
			AllowedRoles: []string{"admin", "manager"},
			Optional:     true,
		},
	}
}
