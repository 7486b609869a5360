package ui

import (
	stderrors "errors"
	"testing"

	"github.com/AlecAivazis/survey/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubAsk(t *testing.T, fn func(p survey.Prompt, response interface{}) error) {
	t.Helper()
	old := askOne
	askOne = func(p survey.Prompt, response interface{}, _ ...survey.AskOpt) error {
		return fn(p, response)
	}
	t.Cleanup(func() { askOne = old })
}

func TestSelectConnection(t *testing.T) {
	stubAsk(t, func(p survey.Prompt, response interface{}) error {
		sel, ok := p.(*survey.Select)
		require.True(t, ok)
		assert.Equal(t, []string{"dev", "prod"}, sel.Options)
		*(response.(*string)) = "prod"
		return nil
	})

	name, err := SelectConnection([]string{"dev", "prod"})
	require.NoError(t, err)
	assert.Equal(t, "prod", name)
}

func TestSelectConnectionInterrupted(t *testing.T) {
	stubAsk(t, func(survey.Prompt, interface{}) error {
		return stderrors.New("interrupt")
	})

	_, err := SelectConnection([]string{"dev"})
	assert.EqualError(t, err, "interrupt")
}

func TestConfirm(t *testing.T) {
	stubAsk(t, func(p survey.Prompt, response interface{}) error {
		c, ok := p.(*survey.Confirm)
		require.True(t, ok)
		assert.True(t, c.Default)
		*(response.(*bool)) = false
		return nil
	})

	ok, err := Confirm("Resume?", true)
	require.NoError(t, err)
	assert.False(t, ok)
}
