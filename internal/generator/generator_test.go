// internal/generator/generator_test.go
package generator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockGenerateShape(t *testing.T) {
	quiz, err := Mock{}.Generate(context.Background(), "World capitals. Rivers of Europe. Mountain ranges.", 5)
	require.NoError(t, err)

	assert.Equal(t, "New Quiz", quiz.Title)
	require.Len(t, quiz.Questions, 5)
	for _, q := range quiz.Questions {
		assert.NotEmpty(t, q.Text)
		require.Len(t, q.Options, 4)
		require.NotNil(t, q.CorrectIndex)
		assert.GreaterOrEqual(t, *q.CorrectIndex, 0)
		assert.Less(t, *q.CorrectIndex, 4)
		assert.GreaterOrEqual(t, q.DurationSec, 5)
		assert.LessOrEqual(t, q.DurationSec, 120)

		keys := make(map[string]bool)
		for _, o := range q.Options {
			keys[canon(o)] = true
		}
		assert.Len(t, keys, 4, "options must stay distinct")
	}
}

func TestMockGenerateEmptyPrompt(t *testing.T) {
	quiz, err := Mock{}.Generate(context.Background(), "   ", 3)
	require.NoError(t, err)
	assert.Len(t, quiz.Questions, 3)
}
