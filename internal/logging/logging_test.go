package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for _, tc := range [...]struct {
		in   string
		want logiface.Level
	}{
		{``, logiface.LevelInformational},
		{`info`, logiface.LevelInformational},
		{` DEBUG `, logiface.LevelDebug},
		{`trace`, logiface.LevelTrace},
		{`warn`, logiface.LevelWarning},
		{`warning`, logiface.LevelWarning},
		{`error`, logiface.LevelError},
		{`err`, logiface.LevelError},
		{`crit`, logiface.LevelCritical},
		{`disabled`, logiface.LevelDisabled},
	} {
		level, err := ParseLevel(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, level, tc.in)
	}

	_, err := ParseLevel(`verbose`)
	assert.Error(t, err)
}

func TestNew_json(t *testing.T) {
	var b bytes.Buffer
	logger, err := New(Config{Level: `debug`}, &b)
	require.NoError(t, err)

	logger.Debug().
		Int(`evicted`, 3).
		Log(`gc sweep`)
	logger.Trace().Log(`not logged`)

	out := b.String()
	assert.Contains(t, out, `"lvl":"debug"`)
	assert.Contains(t, out, `"evicted":3`)
	assert.Contains(t, out, `"msg":"gc sweep"`)
	assert.NotContains(t, out, `not logged`)
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestNew_text(t *testing.T) {
	var b bytes.Buffer
	logger, err := New(Config{Format: `TEXT`, Level: `warn`}, &b)
	require.NoError(t, err)

	logger.Warning().
		Str(`key`, `value`).
		Err(errors.New(`some error`)).
		Log(`something happened`)
	logger.Info().Log(`not logged`)

	out := b.String()
	assert.Contains(t, out, `level=warning`)
	assert.Contains(t, out, `msg="something happened"`)
	assert.Contains(t, out, `key=value`)
	assert.Contains(t, out, `error="some error"`)
	assert.NotContains(t, out, `not logged`)
}

func TestNew_invalid(t *testing.T) {
	_, err := New(Config{Format: `xml`}, new(bytes.Buffer))
	assert.ErrorIs(t, err, ErrUnknownFormat)
	_, err = New(Config{Level: `loud`}, new(bytes.Buffer))
	assert.Error(t, err)
}

func TestNew_textLevels(t *testing.T) {
	var b bytes.Buffer
	logger, err := New(Config{Format: FormatText, Level: `trace`}, &b)
	require.NoError(t, err)

	logger.Trace().Log(`trace message`)
	logger.Notice().Log(`notice message`)
	logger.Crit().Log(`crit message`)

	lines := strings.Split(strings.TrimSpace(b.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `level=trace`)
	assert.Contains(t, lines[1], `level=warning`)
	assert.Contains(t, lines[2], `level=error`)
}

func TestNew_textDisabled(t *testing.T) {
	var b bytes.Buffer
	logger, err := New(Config{Format: FormatText, Level: `disabled`}, &b)
	require.NoError(t, err)

	logger.Err().Log(`not logged`)

	assert.Empty(t, b.String())
}
