package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalCondition_Comparisons(t *testing.T) {
	env := map[string]any{"score": 3, "status": "done", "ratio": 0.5}

	tests := []struct {
		condition string
		want      bool
	}{
		{"score < 5", true},
		{"score > 5", false},
		{"score == 3", true},
		{"score != 3", false},
		{`status == "done"`, true},
		{`status == "pending"`, false},
		{"ratio <= 0.5", true},
		{"score >= 4", false},
	}
	for _, tt := range tests {
		t.Run(tt.condition, func(t *testing.T) {
			got, err := evalCondition(tt.condition, env)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalCondition_UnconditionalKeywords(t *testing.T) {
	for _, cond := range []string{"default", "else", "true"} {
		got, err := evalCondition(cond, nil)
		require.NoError(t, err)
		assert.True(t, got, cond)
	}
}

func TestEvalCondition_UndefinedVariable(t *testing.T) {
	got, err := evalCondition("missing == 1", map[string]any{})
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEvalCondition_MalformedExpression(t *testing.T) {
	_, err := evalCondition("score <", map[string]any{"score": 1})
	require.Error(t, err)
}

func TestIsTruthy(t *testing.T) {
	assert.False(t, isTruthy(nil))
	assert.False(t, isTruthy(false))
	assert.False(t, isTruthy(""))
	assert.False(t, isTruthy(0))
	assert.False(t, isTruthy(int64(0)))
	assert.False(t, isTruthy(0.0))

	assert.True(t, isTruthy(true))
	assert.True(t, isTruthy("no"))
	assert.True(t, isTruthy(1))
	assert.True(t, isTruthy([]any{}))
}
