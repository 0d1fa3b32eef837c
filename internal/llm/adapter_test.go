package llm

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider replays scripted replies and records every exchange.
type fakeProvider struct {
	replies []string
	err     error
	calls   [][]Message
}

func (p *fakeProvider) Chat(messages []Message) (string, error) {
	p.calls = append(p.calls, messages)
	if p.err != nil {
		return "", p.err
	}
	reply := p.replies[0]
	if len(p.replies) > 1 {
		p.replies = p.replies[1:]
	}
	return reply, nil
}

func newTestAdapter(provider Provider, maxReask int) *Adapter {
	return NewAdapter(provider, NewBudget(10), maxReask, zerolog.Nop())
}

func TestChatJSONFirstReplyParses(t *testing.T) {
	p := &fakeProvider{replies: []string{`Here you go: {"action": "HOLD"}`}}
	a := newTestAdapter(p, 1)

	obj, raw := a.ChatJSON("sys", "user")
	require.NotNil(t, obj)
	assert.Equal(t, "HOLD", obj["action"])
	assert.Equal(t, `Here you go: {"action": "HOLD"}`, raw)

	// A clean parse never triggers the repair exchange.
	require.Len(t, p.calls, 1)
	require.Len(t, p.calls[0], 2)
	assert.Equal(t, "system", p.calls[0][0].Role)
	assert.Equal(t, "sys", p.calls[0][0].Content)
	assert.Equal(t, "user", p.calls[0][1].Content)
	assert.Empty(t, a.Budget().Stats().LastError)
}

func TestChatJSONReaskRepairsParse(t *testing.T) {
	p := &fakeProvider{replies: []string{"I cannot produce JSON right now", `{"ok": true}`}}
	a := newTestAdapter(p, 1)

	obj, raw := a.ChatJSON("sys", "user")
	require.NotNil(t, obj)
	assert.Equal(t, true, obj["ok"])
	assert.Equal(t, `{"ok": true}`, raw)

	require.Len(t, p.calls, 2)
	// The repair exchange carries the prior raw output and the
	// fixed repair instruction after the original two messages.
	repair := p.calls[1]
	require.Len(t, repair, 4)
	assert.Equal(t, "assistant", repair[2].Role)
	assert.Equal(t, "I cannot produce JSON right now", repair[2].Content)
	assert.Equal(t, "user", repair[3].Role)
	assert.Equal(t, repairPrompt, repair[3].Content)
	assert.Empty(t, a.Budget().Stats().LastError)
}

func TestChatJSONDoubleFailure(t *testing.T) {
	p := &fakeProvider{replies: []string{"still not json", "nope, sorry"}}
	a := newTestAdapter(p, 1)

	obj, raw := a.ChatJSON("sys", "user")
	assert.Nil(t, obj)
	// Callers keep the last raw reply for logging.
	assert.Equal(t, "nope, sorry", raw)
	require.Len(t, p.calls, 2)
	assert.Equal(t, "parse_fail", a.Budget().Stats().LastError)
}

func TestChatJSONBudgetExhausted(t *testing.T) {
	p := &fakeProvider{replies: []string{`{"x": 1}`}}
	a := NewAdapter(p, NewBudget(1), 1, zerolog.Nop())

	obj, _ := a.ChatJSON("sys", "user")
	require.NotNil(t, obj)

	obj, raw := a.ChatJSON("sys", "again")
	assert.Nil(t, obj)
	assert.Empty(t, raw)
	// The provider is never reached once the window is spent.
	assert.Len(t, p.calls, 1)
}

func TestChatJSONTransportError(t *testing.T) {
	p := &fakeProvider{err: errors.New("connection refused")}
	a := newTestAdapter(p, 1)

	obj, raw := a.ChatJSON("sys", "user")
	assert.Nil(t, obj)
	assert.Empty(t, raw)
	assert.Equal(t, "connection refused", a.Budget().Stats().LastError)
}

func TestChatJSONZeroReask(t *testing.T) {
	p := &fakeProvider{replies: []string{"not json"}}
	a := newTestAdapter(p, 0)

	obj, raw := a.ChatJSON("sys", "user")
	assert.Nil(t, obj)
	assert.Equal(t, "not json", raw)
	assert.Len(t, p.calls, 1)
	assert.Equal(t, "parse_fail", a.Budget().Stats().LastError)
}
