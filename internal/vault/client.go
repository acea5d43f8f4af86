package vault

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/hashicorp/vault/api"

	"idea-portal/internal/config"
)

// Client seals rating comments with Vault's transit engine
type Client struct {
	client       *api.Client
	transitMount string
	keyName      string
}

// NewClient creates a Vault client and makes sure the transit mount and key exist
func NewClient(ctx context.Context, cfg *config.VaultConfig) (*Client, error) {
	apiConfig := api.DefaultConfig()
	apiConfig.Address = cfg.Address

	client, err := api.NewClient(apiConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	c := &Client{
		client:       client,
		transitMount: cfg.TransitMount,
		keyName:      cfg.KeyName,
	}

	if err := c.initTransitEngine(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize transit engine: %w", err)
	}
	if err := c.ensureKey(ctx); err != nil {
		return nil, err
	}

	return c, nil
}

// initTransitEngine enables the transit secrets engine if not already enabled
func (c *Client) initTransitEngine(ctx context.Context) error {
	mounts, err := c.client.Sys().ListMountsWithContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to list mounts: %w", err)
	}

	if _, exists := mounts[c.transitMount+"/"]; exists {
		return nil
	}

	err = c.client.Sys().MountWithContext(ctx, c.transitMount, &api.MountInput{
		Type:        "transit",
		Description: "Transit encryption for idea portal rating comments",
	})
	if err != nil {
		return fmt.Errorf("failed to mount transit engine: %w", err)
	}
	return nil
}

// ensureKey creates the derived comment key; writing an existing key is a no-op in Vault
func (c *Client) ensureKey(ctx context.Context) error {
	path := fmt.Sprintf("%s/keys/%s", c.transitMount, c.keyName)

	data := map[string]interface{}{
		"type":       "aes256-gcm96",
		"exportable": false,
		"derived":    true, // every comment is bound to its proposal and rater
	}

	if _, err := c.client.Logical().WriteWithContext(ctx, path, data); err != nil {
		return fmt.Errorf("failed to create key %s: %w", c.keyName, err)
	}
	return nil
}

func commentContext(proposalID, raterID uint) string {
	return base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("proposal=%d;rater=%d", proposalID, raterID)))
}

// SealComment encrypts a rating comment
func (c *Client) SealComment(ctx context.Context, proposalID, raterID uint, comment string) (string, error) {
	path := fmt.Sprintf("%s/encrypt/%s", c.transitMount, c.keyName)

	data := map[string]interface{}{
		"plaintext": base64.StdEncoding.EncodeToString([]byte(comment)),
		"context":   commentContext(proposalID, raterID),
	}

	secret, err := c.client.Logical().WriteWithContext(ctx, path, data)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt comment: %w", err)
	}
	if secret == nil {
		return "", fmt.Errorf("empty encrypt response")
	}

	ciphertext, ok := secret.Data["ciphertext"].(string)
	if !ok {
		return "", fmt.Errorf("invalid ciphertext response")
	}
	return ciphertext, nil
}

// OpenComment decrypts a comment sealed for the same proposal and rater
func (c *Client) OpenComment(ctx context.Context, proposalID, raterID uint, ciphertext string) (string, error) {
	path := fmt.Sprintf("%s/decrypt/%s", c.transitMount, c.keyName)

	data := map[string]interface{}{
		"ciphertext": ciphertext,
		"context":    commentContext(proposalID, raterID),
	}

	secret, err := c.client.Logical().WriteWithContext(ctx, path, data)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt comment: %w", err)
	}
	if secret == nil {
		return "", fmt.Errorf("empty decrypt response")
	}

	encoded, ok := secret.Data["plaintext"].(string)
	if !ok {
		return "", fmt.Errorf("invalid plaintext response")
	}

	plaintext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode plaintext: %w", err)
	}
	return string(plaintext), nil
}

// Health checks Vault health status
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}
	if !health.Initialized {
		return fmt.Errorf("vault is not initialized")
	}
	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}
	return nil
}
