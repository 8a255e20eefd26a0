package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDescriptor = `
subscriptionId: 00000000-0000-0000-0000-000000000001
resourceGroup: rg-demo
serviceName: demo-service
appName: demo-app
artifactPath: target/app.jar
deployment:
  runtimeVersion: Java_11
  jvmOptions: "-Xms512m"
  env:
    SPRING_PROFILES_ACTIVE: prod
  scale:
    cpu: 1
    memoryInGB: 2
    instanceCount: 2
`

func TestParseValidDescriptor(t *testing.T) {
	cfg, err := Parse([]byte(validDescriptor))
	require.NoError(t, err)

	assert.Equal(t, "rg-demo", cfg.ResourceGroup)
	assert.Equal(t, "demo-service", cfg.ServiceName)
	assert.Equal(t, DefaultDeploymentName, cfg.Deployment.Name, "deployment name defaults")
	assert.Equal(t, "Java_11", cfg.Deployment.RuntimeVersion)
	assert.Equal(t, int32(2), cfg.Deployment.Scale.InstanceCount)
	assert.Nil(t, cfg.SQL)
}

func TestParseAggregatesValidationErrors(t *testing.T) {
	_, err := Parse([]byte(`
subscriptionId: not-a-guid
resourceGroup: rg
serviceName: demo-service
`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	// Both the bad subscription ID and the missing app name are reported.
	assert.Contains(t, err.Error(), "SubscriptionID")
	assert.Contains(t, err.Error(), "AppName")
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte(`
subscriptionId: 00000000-0000-0000-0000-000000000001
resourceGroup: rg-demo
serviceName: demo-service
appName: demo-app
unknownField: true
`))
	assert.ErrorIs(t, err, ErrInvalidYAML)
}

func TestParseRejectsInvalidRuntimeVersion(t *testing.T) {
	_, err := Parse([]byte(`
subscriptionId: 00000000-0000-0000-0000-000000000001
resourceGroup: rg-demo
serviceName: demo-service
appName: demo-app
deployment:
  runtimeVersion: Java_6
`))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSQLPasswordEnvOverride(t *testing.T) {
	t.Setenv(SQLPasswordEnvVar, "s3cret!")

	cfg, err := Parse([]byte(`
subscriptionId: 00000000-0000-0000-0000-000000000001
resourceGroup: rg-demo
serviceName: demo-service
appName: demo-app
sql:
  serverName: demo-sql
  location: westeurope
  adminLogin: sqladmin
`))
	require.NoError(t, err)
	require.NotNil(t, cfg.SQL)
	assert.Equal(t, "s3cret!", cfg.SQL.AdminPassword)
	assert.Nil(t, cfg.SQL.AllowAzureServices, "unset firewall toggle stays unspecified")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrDescriptorNotFound)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "springops.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validDescriptor), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "demo-app", cfg.AppName)
}

func TestScaleConfigIsZero(t *testing.T) {
	assert.True(t, ScaleConfig{}.IsZero())
	assert.False(t, ScaleConfig{CPU: 1}.IsZero())
}
