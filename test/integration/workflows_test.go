//go:build integration

package integration

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLedgerWorkflow creates a key, flavor and two accounts, then moves
// tokens between them and reads the balances back.
func TestLedgerWorkflow(t *testing.T) {
	config := LoadTestConfig()
	config.SkipIfMissingConfig(t)

	runner := NewCommandRunner(config, t)

	_, stderr, err := runner.Run("login")
	require.NoError(t, err, "login failed: %s", stderr)

	keyID := GenerateTestName("key")
	flavorID := GenerateTestName("flavor")
	alice := GenerateTestName("alice")
	bob := GenerateTestName("bob")

	_, stderr, err = runner.Run("keys", "create", "--id", keyID, "--idempotency-key", keyID)
	require.NoError(t, err, "failed to create key: %s", stderr)

	_, stderr, err = runner.Run("flavors", "create", "--flavor", flavorID, "--key", keyID, "--idempotency-key", flavorID)
	require.NoError(t, err, "failed to create flavor: %s", stderr)

	for _, id := range []string{alice, bob} {
		_, stderr, err = runner.Run("accounts", "create", "--id", id, "--key", keyID, "--tag", "suite=integration",
			"--idempotency-key", id)
		require.NoError(t, err, "failed to create account %s: %s", id, stderr)
	}

	_, stderr, err = runner.Run("transactions", "issue", "--flavor", flavorID, "--amount", "100", "--to", alice,
		"--idempotency-key", GenerateTestName("issue"))
	require.NoError(t, err, "issue failed: %s", stderr)

	_, stderr, err = runner.Run("transactions", "transfer", "--flavor", flavorID, "--amount", "25",
		"--from", alice, "--to", bob, "--idempotency-key", GenerateTestName("transfer"))
	require.NoError(t, err, "transfer failed: %s", stderr)

	stdout, stderr, err := runner.Run("tokens", "list", "--all", "--output", "json",
		"--filter", "flavor_id=$1", "--param", flavorID)
	require.NoError(t, err, "tokens list failed: %s", stderr)
	AssertJSONOutput(t, stdout)

	var tokens []struct {
		AccountID string `json:"account_id"`
		Amount    int64  `json:"amount"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &tokens))

	balances := map[string]int64{}
	for _, token := range tokens {
		balances[token.AccountID] += token.Amount
	}

	assert.Equal(t, int64(75), balances[alice])
	assert.Equal(t, int64(25), balances[bob])
}
