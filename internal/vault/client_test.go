package vault_test

import (
	"context"
	"testing"

	"idea-portal/internal/config"
	"idea-portal/internal/testutil"
	"idea-portal/internal/vault"
)

func TestSealAndOpenComment(t *testing.T) {
	addr := testutil.SetupVault(t)
	ctx := context.Background()

	client, err := vault.NewClient(ctx, &config.VaultConfig{
		Address:      addr,
		Token:        testutil.VaultToken,
		TransitMount: "transit",
		KeyName:      "rating-comments",
		Enabled:      true,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	if err := client.Health(ctx); err != nil {
		t.Fatalf("Health() error = %v", err)
	}

	sealed, err := client.SealComment(ctx, 10, 20, "Strong idea, cost estimate is optimistic")
	if err != nil {
		t.Fatalf("SealComment() error = %v", err)
	}
	if sealed == "" || sealed == "Strong idea, cost estimate is optimistic" {
		t.Fatalf("ciphertext looks wrong: %q", sealed)
	}

	opened, err := client.OpenComment(ctx, 10, 20, sealed)
	if err != nil {
		t.Fatalf("OpenComment() error = %v", err)
	}
	if opened != "Strong idea, cost estimate is optimistic" {
		t.Errorf("OpenComment() = %q", opened)
	}

	if _, err := client.OpenComment(ctx, 11, 20, sealed); err == nil {
		t.Error("a comment must not open under another proposal's context")
	}

	// a second client reuses the existing mount and key
	if _, err := vault.NewClient(ctx, &config.VaultConfig{
		Address: addr, Token: testutil.VaultToken, TransitMount: "transit", KeyName: "rating-comments",
	}); err != nil {
		t.Errorf("second NewClient() error = %v", err)
	}
}
