package springcloud

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/appplatform/armappplatform/v2"
	"go.uber.org/zap"

	"github.com/flavioaiello/springops/pkg/remote"
)

// Client implements API against the Azure Spring Apps management plane.
// It owns all wire concerns; callers only see entities and patches.
type Client struct {
	resourceGroup string
	serviceName   string
	appName       string
	deployments   *armappplatform.DeploymentsClient
	logger        *zap.Logger
}

// NewClient creates a management client scoped to one app.
func NewClient(
	subscriptionID, resourceGroup, serviceName, appName string,
	cred azcore.TokenCredential,
	logger *zap.Logger,
) (*Client, error) {
	deployments, err := armappplatform.NewDeploymentsClient(subscriptionID, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create deployments client: %w", err)
	}

	return &Client{
		resourceGroup: resourceGroup,
		serviceName:   serviceName,
		appName:       appName,
		deployments:   deployments,
		logger:        logger,
	}, nil
}

// Get fetches the deployment snapshot. Missing deployments are reported as
// remote.ErrNotFound.
func (c *Client) Get(ctx context.Context, name string) (*DeploymentEntity, error) {
	resp, err := c.deployments.Get(ctx, c.resourceGroup, c.serviceName, c.appName, name, nil)
	if err != nil {
		if remote.IsNotFound(err) {
			return nil, remote.ErrNotFound
		}
		return nil, err
	}

	ent := c.entityFromResource(resp.DeploymentResource, name)
	return &ent, nil
}

// CreateOrUpdate issues one create-or-update call carrying only the patched
// fields and returns the resulting snapshot.
func (c *Client) CreateOrUpdate(ctx context.Context, name string, patch Patch) (*DeploymentEntity, error) {
	poller, err := c.deployments.BeginCreateOrUpdate(
		ctx, c.resourceGroup, c.serviceName, c.appName, name,
		resourceFromPatch(patch), nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start deployment update: %w", err)
	}

	resp, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("deployment update failed: %w", err)
	}

	ent := c.entityFromResource(resp.DeploymentResource, name)
	return &ent, nil
}

// Start starts the deployment and waits for the operation to complete.
func (c *Client) Start(ctx context.Context, name string) error {
	poller, err := c.deployments.BeginStart(ctx, c.resourceGroup, c.serviceName, c.appName, name, nil)
	if err != nil {
		return fmt.Errorf("failed to start deployment: %w", err)
	}
	if _, err := poller.PollUntilDone(ctx, nil); err != nil {
		return fmt.Errorf("deployment start failed: %w", err)
	}
	return nil
}

// Delete removes the deployment.
func (c *Client) Delete(ctx context.Context, name string) error {
	poller, err := c.deployments.BeginDelete(ctx, c.resourceGroup, c.serviceName, c.appName, name, nil)
	if err != nil {
		return fmt.Errorf("failed to delete deployment: %w", err)
	}
	if _, err := poller.PollUntilDone(ctx, nil); err != nil {
		return fmt.Errorf("deployment delete failed: %w", err)
	}
	return nil
}

// ScaleBundlingBroken reports that the service rejects scale changes bundled
// with other property changes in a single call, so scale settings must be
// issued as a separate, earlier write.
func (c *Client) ScaleBundlingBroken() bool {
	return true
}

// resourceFromPatch builds the sparse SDK resource carrying only the
// patched fields.
func resourceFromPatch(p Patch) armappplatform.DeploymentResource {
	props := &armappplatform.DeploymentResourceProperties{}
	res := armappplatform.DeploymentResource{Properties: props}

	settings := func() *armappplatform.DeploymentSettings {
		if props.DeploymentSettings == nil {
			props.DeploymentSettings = &armappplatform.DeploymentSettings{}
		}
		return props.DeploymentSettings
	}
	source := func() *armappplatform.JarUploadedUserSourceInfo {
		jar, ok := props.Source.(*armappplatform.JarUploadedUserSourceInfo)
		if !ok {
			jar = &armappplatform.JarUploadedUserSourceInfo{}
			props.Source = jar
		}
		return jar
	}

	if p.Env != nil {
		env := make(map[string]*string, len(p.Env))
		for k, v := range p.Env {
			env[k] = to.Ptr(v)
		}
		settings().EnvironmentVariables = env
	}
	if p.JvmOptions != nil {
		source().JvmOptions = p.JvmOptions
	}
	if p.RuntimeVersion != nil {
		source().RuntimeVersion = p.RuntimeVersion
	}
	if p.ArtifactPath != nil {
		source().RelativePath = p.ArtifactPath
	}
	if p.Scale != nil {
		settings().ResourceRequests = &armappplatform.ResourceRequests{
			CPU:    to.Ptr(formatCPU(p.Scale.CPU)),
			Memory: to.Ptr(formatMemory(p.Scale.MemoryInGB)),
		}
		res.SKU = &armappplatform.SKU{
			Name:     to.Ptr("S0"),
			Capacity: to.Ptr(p.Scale.Capacity),
		}
	}

	return res
}

// entityFromResource translates the SDK model into the local entity.
func (c *Client) entityFromResource(res armappplatform.DeploymentResource, name string) DeploymentEntity {
	e := DeploymentEntity{
		Name:        name,
		AppName:     c.appName,
		ServiceName: c.serviceName,
	}
	if res.Name != nil {
		e.Name = *res.Name
	}
	if res.SKU != nil && res.SKU.Capacity != nil {
		e.Scale.Capacity = *res.SKU.Capacity
	}

	props := res.Properties
	if props == nil {
		return e
	}
	if props.Status != nil {
		e.Status = Status(*props.Status)
	}
	if props.ProvisioningState != nil {
		e.ProvisioningState = ProvisioningState(*props.ProvisioningState)
	}
	e.Instances = len(props.Instances)

	if s := props.DeploymentSettings; s != nil {
		if s.EnvironmentVariables != nil {
			env := make(map[string]string, len(s.EnvironmentVariables))
			for k, v := range s.EnvironmentVariables {
				if v != nil {
					env[k] = *v
				}
			}
			e.Env = env
		}
		if rr := s.ResourceRequests; rr != nil {
			e.Scale.CPU = parseCPU(deref(rr.CPU))
			e.Scale.MemoryInGB = parseMemory(deref(rr.Memory))
		}
	}

	if jar, ok := props.Source.(*armappplatform.JarUploadedUserSourceInfo); ok {
		e.RuntimeVersion = deref(jar.RuntimeVersion)
		e.JvmOptions = deref(jar.JvmOptions)
		e.ArtifactPath = deref(jar.RelativePath)
	}

	return e
}

// formatCPU renders whole vCPUs as a resource request.
func formatCPU(cores int32) string {
	return strconv.Itoa(int(cores))
}

// formatMemory renders GiB as a resource request.
func formatMemory(gib int32) string {
	return fmt.Sprintf("%dGi", gib)
}

// parseCPU reads a resource request back into whole vCPUs.
// Fractional (millicore) requests round down to zero.
func parseCPU(s string) int32 {
	if m, ok := strings.CutSuffix(s, "m"); ok {
		n, _ := strconv.Atoi(m)
		return int32(n / 1000)
	}
	n, _ := strconv.Atoi(s)
	return int32(n)
}

// parseMemory reads a resource request back into whole GiB.
func parseMemory(s string) int32 {
	if g, ok := strings.CutSuffix(s, "Gi"); ok {
		n, _ := strconv.Atoi(g)
		return int32(n)
	}
	if m, ok := strings.CutSuffix(s, "Mi"); ok {
		n, _ := strconv.Atoi(m)
		return int32(n / 1024)
	}
	n, _ := strconv.Atoi(s)
	return int32(n)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
