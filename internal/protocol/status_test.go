package protocol_test

import (
	"bytes"
	"testing"

	"github.com/drover-dev/drover/internal/domain"
	"github.com/drover-dev/drover/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusWriter_WritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	w := protocol.NewStatusWriter(&buf, "committer-amber-heron-1a2b3c4d")

	w.RunStarted("committer")
	w.Action(1, domain.CmdRunAction{Command: "git status"})
	w.Observation(1, domain.CmdOutputObservation{Command: "git status", ExitCode: 0, Content: "clean"})
	w.RunCompleted("finished")

	msgs, err := protocol.ParseStatusStream(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, msgs, 4)

	assert.Equal(t, protocol.MsgRunStarted, msgs[0].Type)
	assert.Equal(t, "committer", msgs[0].Agent)
	assert.Equal(t, "committer-amber-heron-1a2b3c4d", msgs[0].RunID)

	assert.Equal(t, protocol.MsgAction, msgs[1].Type)
	assert.Equal(t, domain.ActionRun, msgs[1].Kind)
	assert.Equal(t, "git status", msgs[1].Payload["command"])

	assert.Equal(t, protocol.MsgObservation, msgs[2].Type)
	assert.Equal(t, float64(0), msgs[2].Payload["exit_code"])

	assert.Equal(t, protocol.MsgRunCompleted, msgs[3].Type)
	assert.Equal(t, "finished", msgs[3].Result)
}

func TestStatusWriter_ErrorMessage(t *testing.T) {
	var buf bytes.Buffer
	w := protocol.NewStatusWriter(&buf, "run-1")

	w.Error("invalid JSON in response: unexpected end of input")

	msgs, err := protocol.ParseStatusStream(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, protocol.MsgError, msgs[0].Type)
	assert.Contains(t, msgs[0].Message, "invalid JSON")
}
