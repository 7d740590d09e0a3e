package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	obsmetrics "github.com/fairyhunter13/ai-compliance-assessor/internal/adapter/observability"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/domain"
)

type fakeModel struct {
	out   string
	err   error
	calls int
	got   [2]string
}

func (f *fakeModel) Invoke(_ context.Context, instructions, content string) (string, error) {
	f.calls++
	f.got = [2]string{instructions, content}
	return f.out, f.err
}

func TestInstrumentedClient_Success(t *testing.T) {
	before := testutil.ToFloat64(obsmetrics.AIRequestsTotal.WithLabelValues("fake-ok", "success"))
	m := &fakeModel{out: `{"a":1}`}
	out, err := Instrument(m, "fake-ok").Invoke(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, out)
	assert.Equal(t, 1, m.calls)
	assert.Equal(t, [2]string{"sys", "user"}, m.got)
	assert.Equal(t, before+1, testutil.ToFloat64(obsmetrics.AIRequestsTotal.WithLabelValues("fake-ok", "success")))
}

func TestInstrumentedClient_WrapsUnclassifiedErrors(t *testing.T) {
	before := testutil.ToFloat64(obsmetrics.AIRequestsTotal.WithLabelValues("fake-err", "error"))
	m := &fakeModel{err: errors.New("connection reset")}
	_, err := Instrument(m, "fake-err").Invoke(context.Background(), "sys", "user")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrModelInvocationFailed)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, 1, m.calls)
	assert.Equal(t, before+1, testutil.ToFloat64(obsmetrics.AIRequestsTotal.WithLabelValues("fake-err", "error")))
}

func TestInstrumentedClient_KeepsClassifiedErrors(t *testing.T) {
	m := &fakeModel{err: errors.Join(domain.ErrModelInvocationFailed, context.DeadlineExceeded)}
	_, err := Instrument(m, "fake").Invoke(context.Background(), "sys", "user")
	assert.ErrorIs(t, err, domain.ErrModelInvocationFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
