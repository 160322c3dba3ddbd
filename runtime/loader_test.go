package runtime

import (
	"chat-realtime/errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestCensoredLoader_LoadAll(t *testing.T) {
	req := require.New(t)
	fsys := fstest.MapFS{
		"censored/en.txt":    {Data: []byte("badger\r\nsnake\n\n# comment\n")},
		"censored/fr.txt":    {Data: []byte("  blaireau \nbadger\n")},
		"censored/README.md": {Data: []byte("not a word list")},
	}

	data, err := NewCensoredLoader(fsys).LoadAll("censored")
	req.NoError(err)
	req.Equal([]string{"badger", "blaireau", "snake"}, data.Words)
	req.Equal([]string{"en.txt", "fr.txt"}, data.Files)
}

func TestCensoredLoader_Failures(t *testing.T) {
	req := require.New(t)

	_, err := NewCensoredLoader(fstest.MapFS{
		"censored/en.txt": {Data: []byte("\n\n")},
	}).LoadAll("censored")
	req.ErrorIs(err, errors.ErrEmptyWords)

	_, err = NewCensoredLoader(fstest.MapFS{
		"censored/nested/en.txt": {Data: []byte("badger")},
	}).LoadAll("censored")
	req.ErrorIs(err, errors.ErrOnlyCensoredFiles)

	_, err = NewCensoredLoader(fstest.MapFS{}).LoadAll("missing")
	req.Error(err)
}
