package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubelogx/kubelogx/internal/types"
)

func TestClassify_DefaultRules(t *testing.T) {
	c := New(DefaultRules())

	tests := []struct {
		line     string
		expected types.Level
	}{
		{"Connection refused to database:5432", types.LevelError},
		{"Health check passed", types.LevelInfo},
		{"High memory usage detected", types.LevelWarn},
		{"NullPointerException at Service.process(Service.java:45)", types.LevelError},
		{"Fatal error: Out of memory (OOMKilled)", types.LevelError},
		{"Deprecation warning: API v1 is sunsetting", types.LevelWarn},
		{"Payload: { user_id: 123 }", types.LevelDebug},
		{"level=debug msg=\"parsing config\"", types.LevelDebug},
		{"Received request GET /api/v1/users", types.LevelInfo},
		{"", types.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.expected, c.Classify(tt.line))
		})
	}
}

func TestClassify_ErrorWinsOverWarn(t *testing.T) {
	c := New(DefaultRules())
	assert.Equal(t, types.LevelError, c.Classify("WARN: retry failed with ERROR"))
	assert.Equal(t, types.LevelError, c.Classify("warning: upstream exception"))
}

func TestClassify_Deterministic(t *testing.T) {
	c := New(DefaultRules())
	lines := []string{"a", "WARN b", "error c", "debug d", "ünïcödé ERROR"}
	for _, l := range lines {
		first := c.Classify(l)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, c.Classify(l))
		}
	}
}

func TestClassify_CustomOrder(t *testing.T) {
	// Rule order is policy: putting WARN first changes the outcome.
	c := New([]Rule{
		{Level: types.LevelWarn, Tokens: []string{"warn"}},
		{Level: types.LevelError, Tokens: []string{"error"}},
	})
	assert.Equal(t, types.LevelWarn, c.Classify("warn and error"))
	assert.Equal(t, types.LevelError, c.Classify("just an error"))
	assert.Equal(t, types.LevelInfo, c.Classify("nothing here"))
}

func TestNew_NormalisesTokens(t *testing.T) {
	c := New([]Rule{
		{Level: types.LevelError, Tokens: []string{" boom ", "BOOM", ""}},
		{Level: types.LevelWarn, Tokens: nil},
	})
	rules := c.Rules()
	require.Len(t, rules, 1)
	assert.Equal(t, []string{"BOOM"}, rules[0].Tokens)
	assert.Equal(t, types.LevelError, c.Classify("kaboom"))
}

func TestClassify_NoRules(t *testing.T) {
	c := New(nil)
	assert.Equal(t, types.LevelInfo, c.Classify("ERROR everywhere"))
}

func TestValidateRules(t *testing.T) {
	assert.NoError(t, ValidateRules(DefaultRules()))
	assert.Error(t, ValidateRules(nil))
	assert.Error(t, ValidateRules([]Rule{{Level: "LOUD", Tokens: []string{"x"}}}))
	assert.Error(t, ValidateRules([]Rule{{Level: types.LevelError, Tokens: []string{" "}}}))
}
