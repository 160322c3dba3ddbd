package internal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCharacterRune(t *testing.T) {
	req := require.New(t)

	r, err := CharacterRune("€")
	req.NoError(err)
	req.Equal('€', r)

	_, err = CharacterRune("**")
	req.Error(err)
	_, err = CharacterRune("")
	req.Error(err)
}

func TestSplitList(t *testing.T) {
	require.Equal(t, []string{"https://a.test", "https://b.test"}, SplitList(" https://a.test, ,https://b.test,"))
	require.Empty(t, SplitList(""))
}
