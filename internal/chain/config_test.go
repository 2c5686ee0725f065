package chain

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadChainDefinitions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chains.yaml")
	raw := []byte(`chains:
  sepolia:
    type: evm
    rpc_url: https://rpc.example.org
    batch_rpc_url: https://batch.example.org
    chain_id: 11155111
    description: test chain
`)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	defs, err := LoadChainDefinitions(path)
	if err != nil {
		t.Fatalf("LoadChainDefinitions failed: %v", err)
	}
	def, ok := defs.Chains["sepolia"]
	if !ok {
		t.Fatalf("sepolia definition missing: %+v", defs.Chains)
	}
	if def.Type != "evm" || def.ChainID != 11155111 {
		t.Fatalf("unexpected definition: %+v", def)
	}
	if def.BatchRPCURL != "https://batch.example.org" {
		t.Fatalf("batch rpc url not parsed: %q", def.BatchRPCURL)
	}
}

func TestLoadChainDefinitionsEmptyPath(t *testing.T) {
	defs, err := LoadChainDefinitions("  ")
	if err != nil {
		t.Fatalf("empty path should not error: %v", err)
	}
	if len(defs.Chains) != 0 {
		t.Fatalf("expected no chains, got %d", len(defs.Chains))
	}
}

func TestLoadChainDefinitionsMissingFile(t *testing.T) {
	if _, err := LoadChainDefinitions(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("missing file should error")
	}
}
