package sqlserver

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/sql/armsql"
	"go.uber.org/zap"

	"github.com/flavioaiello/springops/pkg/remote"
)

// Client implements API against the Azure SQL management plane. It owns all
// wire concerns; callers only see entities and patches.
type Client struct {
	resourceGroup  string
	location       string
	servers        *armsql.ServersClient
	firewallRules  *armsql.FirewallRulesClient
	resourceGroups *armresources.ResourceGroupsClient
	logger         *zap.Logger
}

// NewClient creates a management client scoped to one resource group.
func NewClient(
	subscriptionID, resourceGroup, location string,
	cred azcore.TokenCredential,
	logger *zap.Logger,
) (*Client, error) {
	servers, err := armsql.NewServersClient(subscriptionID, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create servers client: %w", err)
	}

	firewallRules, err := armsql.NewFirewallRulesClient(subscriptionID, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create firewall rules client: %w", err)
	}

	resourceGroups, err := armresources.NewResourceGroupsClient(subscriptionID, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource groups client: %w", err)
	}

	return &Client{
		resourceGroup:  resourceGroup,
		location:       location,
		servers:        servers,
		firewallRules:  firewallRules,
		resourceGroups: resourceGroups,
		logger:         logger,
	}, nil
}

// Get fetches the server snapshot. Missing servers are reported as
// remote.ErrNotFound.
func (c *Client) Get(ctx context.Context, name string) (*ServerEntity, error) {
	resp, err := c.servers.Get(ctx, c.resourceGroup, name, nil)
	if err != nil {
		if remote.IsNotFound(err) {
			return nil, remote.ErrNotFound
		}
		return nil, err
	}

	ent := c.entityFromServer(resp.Server)
	return &ent, nil
}

// CreateOrUpdate issues one create-or-update call carrying only the patched
// fields and returns the resulting snapshot.
func (c *Client) CreateOrUpdate(ctx context.Context, name string, patch Patch) (*ServerEntity, error) {
	server := armsql.Server{
		Location:   patch.Location,
		Properties: &armsql.ServerProperties{},
	}
	if server.Location == nil {
		server.Location = to.Ptr(c.location)
	}
	server.Properties.AdministratorLogin = patch.AdministratorLogin
	server.Properties.AdministratorLoginPassword = patch.AdministratorLoginPassword
	server.Properties.Version = patch.Version

	poller, err := c.servers.BeginCreateOrUpdate(ctx, c.resourceGroup, name, server, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start server update: %w", err)
	}

	resp, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("server update failed: %w", err)
	}

	ent := c.entityFromServer(resp.Server)
	return &ent, nil
}

// Delete removes the server.
func (c *Client) Delete(ctx context.Context, name string) error {
	poller, err := c.servers.BeginDelete(ctx, c.resourceGroup, name, nil)
	if err != nil {
		return fmt.Errorf("failed to delete server: %w", err)
	}
	if _, err := poller.PollUntilDone(ctx, nil); err != nil {
		return fmt.Errorf("server delete failed: %w", err)
	}
	return nil
}

// ListFirewallRules lists the server's firewall rules.
func (c *Client) ListFirewallRules(ctx context.Context, serverName string) ([]FirewallRuleEntity, error) {
	var rules []FirewallRuleEntity

	pager := c.firewallRules.NewListByServerPager(c.resourceGroup, serverName, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list firewall rules: %w", err)
		}
		for _, rule := range page.Value {
			if rule == nil {
				continue
			}
			ent := FirewallRuleEntity{
				ID:   deref(rule.ID),
				Name: deref(rule.Name),
			}
			if rule.Properties != nil {
				ent.StartIPAddress = deref(rule.Properties.StartIPAddress)
				ent.EndIPAddress = deref(rule.Properties.EndIPAddress)
			}
			rules = append(rules, ent)
		}
	}

	return rules, nil
}

// SetFirewallRule creates or updates a single firewall rule.
func (c *Client) SetFirewallRule(ctx context.Context, serverName, ruleName, startIP, endIP string) error {
	_, err := c.firewallRules.CreateOrUpdate(ctx, c.resourceGroup, serverName, ruleName,
		armsql.FirewallRule{
			Properties: &armsql.ServerFirewallRuleProperties{
				StartIPAddress: to.Ptr(startIP),
				EndIPAddress:   to.Ptr(endIP),
			},
		}, nil)
	if err != nil {
		return fmt.Errorf("failed to set firewall rule %s: %w", ruleName, err)
	}
	return nil
}

// DeleteFirewallRule removes a single firewall rule.
func (c *Client) DeleteFirewallRule(ctx context.Context, serverName, ruleName string) error {
	if _, err := c.firewallRules.Delete(ctx, c.resourceGroup, serverName, ruleName, nil); err != nil {
		return fmt.Errorf("failed to delete firewall rule %s: %w", ruleName, err)
	}
	return nil
}

// EnsureResourceGroup creates the target resource group when absent.
func (c *Client) EnsureResourceGroup(ctx context.Context) error {
	exists, err := c.resourceGroups.CheckExistence(ctx, c.resourceGroup, nil)
	if err != nil {
		return fmt.Errorf("failed to check resource group: %w", err)
	}
	if exists.Success {
		return nil
	}

	c.logger.Info("Creating resource group",
		zap.String("resource_group", c.resourceGroup),
		zap.String("location", c.location),
	)
	_, err = c.resourceGroups.CreateOrUpdate(ctx, c.resourceGroup,
		armresources.ResourceGroup{Location: to.Ptr(c.location)}, nil)
	if err != nil {
		return fmt.Errorf("failed to create resource group: %w", err)
	}
	return nil
}

// entityFromServer translates the SDK model into the local entity.
func (c *Client) entityFromServer(server armsql.Server) ServerEntity {
	e := ServerEntity{
		ID:            deref(server.ID),
		Name:          deref(server.Name),
		ResourceGroup: c.resourceGroup,
		Location:      deref(server.Location),
		Kind:          deref(server.Kind),
		Type:          deref(server.Type),
	}
	if p := server.Properties; p != nil {
		e.Version = deref(p.Version)
		e.State = deref(p.State)
		e.AdministratorLogin = deref(p.AdministratorLogin)
		e.FullyQualifiedDomainName = deref(p.FullyQualifiedDomainName)
	}
	return e
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
