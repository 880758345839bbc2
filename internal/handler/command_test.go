package handler

import (
	"testing"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/require"
)

func commandMessage(text string, offset, length int) telego.Message {
	return telego.Message{
		Text: text,
		Entities: []telego.MessageEntity{
			{Type: "bot_command", Offset: offset, Length: length},
		},
	}
}

func TestParseCommand(t *testing.T) {
	cmd := ParseCommand(commandMessage("/gc 1h30m", 0, 3))
	require.NotNil(t, cmd)
	require.Equal(t, "gc", cmd.Name)
	require.Empty(t, cmd.Username)
	require.Equal(t, []string{"1h30m"}, cmd.Args)
	require.Zero(t, cmd.Offset)
}

func TestParseCommandWithUsername(t *testing.T) {
	cmd := ParseCommand(commandMessage("/status@gcservantbot", 0, 20))
	require.NotNil(t, cmd)
	require.Equal(t, "status", cmd.Name)
	require.Equal(t, "gcservantbot", cmd.Username)
	require.Empty(t, cmd.Args)
}

func TestParseCommandMidMessage(t *testing.T) {
	cmd := ParseCommand(commandMessage("see /help for details", 4, 5))
	require.NotNil(t, cmd)
	require.Equal(t, "help", cmd.Name)
	require.Equal(t, 4, cmd.Offset)
}

func TestParseCommandNoEntity(t *testing.T) {
	message := telego.Message{
		Text: "just some #5m text",
		Entities: []telego.MessageEntity{
			{Type: "hashtag", Offset: 10, Length: 3},
		},
	}
	require.Nil(t, ParseCommand(message))
}

func TestParseCommandUppercased(t *testing.T) {
	cmd := ParseCommand(commandMessage("/GC 5m", 0, 3))
	require.NotNil(t, cmd)
	require.Equal(t, "gc", cmd.Name)
}

func TestGCValidateAcceptsIntervals(t *testing.T) {
	h := &gcHandler{}

	cmd := &Command{Name: "gc", Args: []string{"1h30m"}}
	require.NoError(t, h.Validate(cmd))
	require.True(t, cmd.HasTTL)
	require.Equal(t, int64(5400), cmd.TTL)

	// word forms span multiple args
	cmd = &Command{Name: "gc", Args: []string{"15", "minutes"}}
	require.NoError(t, h.Validate(cmd))
	require.True(t, cmd.HasTTL)
	require.Equal(t, int64(900), cmd.TTL)

	// no argument means "show the keyboard", not an error
	cmd = &Command{Name: "gc"}
	require.NoError(t, h.Validate(cmd))
	require.False(t, cmd.HasTTL)
}

func TestGCValidateRejectsOutOfRange(t *testing.T) {
	h := &gcHandler{}

	for _, args := range [][]string{{"-1"}, {"172801"}, {"3 days"}, {"soon"}} {
		cmd := &Command{Name: "gc", Args: args}
		err := h.Validate(cmd)
		require.Error(t, err, "args %v", args)

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
	}
}

func TestRetryValidate(t *testing.T) {
	h := &retryHandler{}

	cmd := &Command{Name: "retry", Args: []string{"5"}}
	require.NoError(t, h.Validate(cmd))
	require.Equal(t, 5, cmd.MaxAttempts)

	cmd = &Command{Name: "retry"}
	require.NoError(t, h.Validate(cmd))
	require.Zero(t, cmd.MaxAttempts)

	for _, arg := range []string{"0", "-3", "1001", "many"} {
		cmd = &Command{Name: "retry", Args: []string{arg}}
		var verr *ValidationError
		require.ErrorAs(t, h.Validate(cmd), &verr, "arg %q", arg)
	}
}
