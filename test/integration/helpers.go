//go:build integration

package integration

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"
)

// TestConfig holds configuration for integration tests
type TestConfig struct {
	APIEndpoint string
	Ledger      string
	Credential  string
	SeqPath     string
	Verbose     bool
}

// LoadTestConfig loads configuration from environment variables
func LoadTestConfig() *TestConfig {
	return &TestConfig{
		APIEndpoint: os.Getenv("SEQ_API"),
		Ledger:      os.Getenv("SEQ_LEDGER"),
		Credential:  os.Getenv("SEQ_CREDENTIAL"),
		SeqPath:     getSeqPath(),
		Verbose:     os.Getenv("SEQ_VERBOSE") == "true",
	}
}

// getSeqPath determines the path to the seq binary
func getSeqPath() string {
	if path := os.Getenv("SEQ_BINARY_PATH"); path != "" {
		return path
	}

	for _, candidate := range []string{"../../seq", "./seq", "../seq"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return "seq"
}

// SkipIfMissingConfig skips test if required config is missing
func (config *TestConfig) SkipIfMissingConfig(t *testing.T) {
	t.Helper()

	if config.APIEndpoint == "" || config.Ledger == "" || config.Credential == "" {
		t.Skip("SEQ_API, SEQ_LEDGER and SEQ_CREDENTIAL must be set, skipping integration test")
	}

	if _, err := exec.LookPath(config.SeqPath); err != nil {
		t.Skipf("seq binary not found at %s, skipping integration test", config.SeqPath)
	}
}

// CommandRunner runs seq commands against the configured ledger.
type CommandRunner struct {
	config *TestConfig
	home   string
	t      *testing.T
}

// NewCommandRunner creates a runner with an isolated config directory.
func NewCommandRunner(config *TestConfig, t *testing.T) *CommandRunner {
	t.Helper()

	return &CommandRunner{
		config: config,
		home:   t.TempDir(),
		t:      t,
	}
}

// Run executes a seq command and returns output
func (runner *CommandRunner) Run(args ...string) (stdout, stderr string, err error) {
	cmd := exec.Command(runner.config.SeqPath, args...)
	cmd.Env = append(os.Environ(), "HOME="+runner.home)

	var stdoutBuf, stderrBuf bytes.Buffer

	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	if runner.config.Verbose {
		runner.t.Logf("Running: %s %s", runner.config.SeqPath, strings.Join(args, " "))
	}

	err = cmd.Run()
	stdout = stdoutBuf.String()
	stderr = stderrBuf.String()

	if runner.config.Verbose && err != nil {
		runner.t.Logf("Command failed: %v\nStdout: %s\nStderr: %s", err, stdout, stderr)
	}

	return stdout, stderr, err
}

// GenerateTestName creates a unique test resource name
func GenerateTestName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// AssertJSONOutput verifies command output is valid JSON
func AssertJSONOutput(t *testing.T, output string) {
	t.Helper()

	output = strings.TrimSpace(output)
	if !strings.HasPrefix(output, "{") && !strings.HasPrefix(output, "[") {
		t.Errorf("Output does not appear to be JSON: %s", output)
	}
}
