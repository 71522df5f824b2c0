package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symplistic/contentiq-widget/internal/domain"
)

func TestParseCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line string
		want command
	}{
		{line: "  ", want: command{kind: cmdEmpty}},
		{line: "hello there", want: command{kind: cmdMessage, text: "hello there"}},
		{line: "/up", want: command{kind: cmdFeedback, feedback: domain.FeedbackHelpful}},
		{line: "/down 2", want: command{kind: cmdFeedback, feedback: domain.FeedbackNotHelpful, target: 2}},
		{line: "/session", want: command{kind: cmdSession}},
		{line: "/expire", want: command{kind: cmdExpire}},
		{line: "/help", want: command{kind: cmdHelp}},
		{line: "/quit", want: command{kind: cmdQuit}},
	}
	for _, tt := range tests {
		got, err := parseCommand(tt.line)
		require.NoError(t, err, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}

	for _, bad := range []string{"/up zero", "/down 0", "/dance"} {
		_, err := parseCommand(bad)
		assert.Error(t, err, bad)
	}
}

func TestRepliesResolve(t *testing.T) {
	t.Parallel()

	var r replies
	_, err := r.resolve(0)
	require.Error(t, err)

	assert.Equal(t, 1, r.add("m1"))
	assert.Equal(t, 2, r.add("m2"))

	id, err := r.resolve(0)
	require.NoError(t, err)
	assert.Equal(t, "m2", id)

	id, err = r.resolve(1)
	require.NoError(t, err)
	assert.Equal(t, "m1", id)

	_, err = r.resolve(3)
	assert.Error(t, err)
}
