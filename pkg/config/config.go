// Package config provides the deployment descriptor with validation.
//
// The descriptor is an immutable snapshot of the caller's desired state:
// which Spring Apps deployment to reconcile, how to scale it, and optionally
// which SQL server to provision alongside it. All inputs are validated at
// the boundary (fail-fast); a descriptor that loads successfully is never
// mutated afterwards.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Configuration constants with documented bounds.
const (
	// MaxDescriptorSizeBytes is the maximum size of a descriptor file (1MB).
	MaxDescriptorSizeBytes = 1 * 1024 * 1024
	// DefaultDeploymentName is used when the descriptor omits one.
	DefaultDeploymentName = "default"
	// DefaultWaitTimeout bounds the readiness wait after a commit.
	DefaultWaitTimeout = 10 * time.Minute
	// SQLPasswordEnvVar overrides the SQL administrator password so it never
	// has to live in the descriptor file.
	SQLPasswordEnvVar = "SPRINGOPS_SQL_PASSWORD"
)

// Input validation patterns.
var (
	// ValidSubscriptionIDPattern matches valid Azure subscription IDs.
	ValidSubscriptionIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	// ValidResourceNamePattern matches service, app and server names.
	ValidResourceNamePattern = regexp.MustCompile(`^[a-z][a-z0-9-]{0,62}[a-z0-9]$`)
)

// Configuration errors.
var (
	ErrDescriptorNotFound = errors.New("descriptor file not found")
	ErrDescriptorTooLarge = errors.New("descriptor file exceeds maximum size")
	ErrInvalidYAML        = errors.New("invalid YAML syntax")
	ErrInvalidConfig      = errors.New("invalid configuration")
)

// validate is the singleton validator instance.
var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("subscription_id", func(fl validator.FieldLevel) bool {
		return ValidSubscriptionIDPattern.MatchString(fl.Field().String())
	})
	_ = validate.RegisterValidation("resource_name", func(fl validator.FieldLevel) bool {
		return ValidResourceNamePattern.MatchString(fl.Field().String())
	})
}

// ScaleConfig is the requested scale as a unit: CPU cores, memory in GiB and
// instance count. A fully zero value means "not specified".
type ScaleConfig struct {
	// CPU is the number of vCPUs per instance.
	CPU int32 `yaml:"cpu" validate:"omitempty,min=1,max=4"`
	// MemoryInGB is the memory per instance.
	MemoryInGB int32 `yaml:"memoryInGB" validate:"omitempty,min=1,max=8"`
	// InstanceCount is the number of instances.
	InstanceCount int32 `yaml:"instanceCount" validate:"omitempty,min=1,max=500"`
}

// IsZero reports whether no scale settings were requested.
func (s ScaleConfig) IsZero() bool {
	return s == ScaleConfig{}
}

// DeploymentConfig describes the desired Spring Apps deployment.
type DeploymentConfig struct {
	// Name is the deployment name, defaulted to DefaultDeploymentName.
	Name string `yaml:"name" validate:"omitempty,resource_name"`
	// RuntimeVersion is the Java runtime version.
	RuntimeVersion string `yaml:"runtimeVersion" validate:"omitempty,oneof=Java_8 Java_11 Java_17"`
	// JvmOptions are passed to the JVM on start.
	JvmOptions string `yaml:"jvmOptions"`
	// Env are the environment variables for the deployment.
	Env map[string]string `yaml:"env"`
	// Scale holds the requested scale settings.
	Scale ScaleConfig `yaml:"scale"`
}

// SQLConfig describes the desired Azure SQL server.
type SQLConfig struct {
	// ServerName is the SQL server name.
	ServerName string `yaml:"serverName" validate:"required,resource_name"`
	// Location is the Azure region for the server.
	Location string `yaml:"location" validate:"required"`
	// AdminLogin is the administrator login name, required on create.
	AdminLogin string `yaml:"adminLogin" validate:"omitempty,min=1,max=128"`
	// AdminPassword is only ever read from SQLPasswordEnvVar.
	AdminPassword string `yaml:"-"`
	// Version is the SQL server version (e.g. "12.0").
	Version string `yaml:"version"`
	// AllowAzureServices opens the firewall for Azure-internal traffic.
	AllowAzureServices *bool `yaml:"allowAzureServices"`
	// AllowLocalMachine opens the firewall for the caller's public IP.
	AllowLocalMachine *bool `yaml:"allowLocalMachine"`
}

// Config is the immutable deployment descriptor.
type Config struct {
	// SubscriptionID is the Azure subscription ID.
	SubscriptionID string `yaml:"subscriptionId" validate:"required,subscription_id"`
	// ResourceGroup is the target resource group.
	ResourceGroup string `yaml:"resourceGroup" validate:"required,max=90"`
	// ServiceName is the Azure Spring Apps service (cluster) name.
	ServiceName string `yaml:"serviceName" validate:"required,resource_name"`
	// AppName is the app within the service.
	AppName string `yaml:"appName" validate:"required,resource_name"`
	// ArtifactPath is the path of the artifact to deploy.
	ArtifactPath string `yaml:"artifactPath"`
	// Deployment holds the desired deployment settings.
	Deployment DeploymentConfig `yaml:"deployment"`
	// SQL optionally describes a SQL server to provision.
	SQL *SQLConfig `yaml:"sql"`
}

// Load reads, defaults and validates a descriptor file.
func Load(path string) (*Config, error) {
	data, err := readLimited(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes, defaults and validates raw descriptor bytes.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults fills optional fields with documented defaults.
func (c *Config) applyDefaults() {
	if c.Deployment.Name == "" {
		c.Deployment.Name = DefaultDeploymentName
	}
}

// applyEnvOverrides injects secrets that must not live in the descriptor.
func (c *Config) applyEnvOverrides() {
	if c.SQL != nil {
		if pw := os.Getenv(SQLPasswordEnvVar); pw != "" {
			c.SQL.AdminPassword = pw
		}
	}
}

// Validate validates the descriptor. All violations are reported at once.
func (c *Config) Validate() error {
	var errs []error

	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				errs = append(errs, fmt.Errorf("%w: field %s failed %q validation",
					ErrInvalidConfig, fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidConfig, err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// readLimited reads a descriptor file enforcing the size limit.
func readLimited(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDescriptorNotFound, path)
		}
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() > MaxDescriptorSizeBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrDescriptorTooLarge, info.Size())
	}

	return io.ReadAll(io.LimitReader(f, MaxDescriptorSizeBytes))
}
