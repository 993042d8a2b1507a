package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/hitupload/packages/assertions"
	"github.com/abdul-hamid-achik/hitupload/packages/bench"
	"github.com/abdul-hamid-achik/hitupload/packages/core/runner"
	uhttp "github.com/abdul-hamid-achik/hitupload/packages/http"
)

type recordingNotifier struct {
	reports []*Report
	err     error
}

func (r *recordingNotifier) Notify(_ context.Context, report *Report) error {
	r.reports = append(r.reports, report)
	return r.err
}

func (r *recordingNotifier) Name() string { return "recording" }

func TestManager_Policies(t *testing.T) {
	pass := func() *Report { return &Report{Kind: KindUpload, Passed: true} }
	fail := func() *Report { return &Report{Kind: KindUpload, Passed: false} }

	tests := []struct {
		policy NotifyOn
		runs   []func() *Report
		want   int
	}{
		{NotifyAlways, []func() *Report{pass, fail}, 2},
		{NotifyFailure, []func() *Report{pass, fail, pass}, 1},
		{NotifySuccess, []func() *Report{pass, fail, pass}, 2},
		{NotifyRecovery, []func() *Report{pass, fail, pass, pass}, 2},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			rec := &recordingNotifier{}
			m := NewManager(tt.policy, rec)
			for _, run := range tt.runs {
				require.NoError(t, m.Notify(context.Background(), run()))
			}
			assert.Len(t, rec.reports, tt.want)
		})
	}
}

func TestManager_RecoveryFlag(t *testing.T) {
	rec := &recordingNotifier{}
	m := NewManager(NotifyRecovery, rec)

	require.NoError(t, m.Notify(context.Background(), &Report{Passed: false}))
	require.NoError(t, m.Notify(context.Background(), &Report{Passed: true}))

	require.Len(t, rec.reports, 2)
	assert.False(t, rec.reports[0].IsRecovery)
	assert.True(t, rec.reports[1].IsRecovery)
	assert.Equal(t, "Uploads recovered", rec.reports[1].Title())
}

func TestManager_JoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	ok := &recordingNotifier{}
	bad := &recordingNotifier{err: boom}
	m := NewManager(NotifyAlways, bad, ok)

	err := m.Notify(context.Background(), &Report{Passed: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, ok.reports, 1, "later notifiers still run")
}

func TestManager_Empty(t *testing.T) {
	var m *Manager
	assert.NoError(t, m.Notify(context.Background(), &Report{}))
	assert.NoError(t, NewManager(NotifyAlways).Notify(context.Background(), &Report{}))
}

func TestParseNotifyOn(t *testing.T) {
	p, err := ParseNotifyOn("")
	require.NoError(t, err)
	assert.Equal(t, NotifyFailure, p)

	p, err = ParseNotifyOn("recovery")
	require.NoError(t, err)
	assert.Equal(t, NotifyRecovery, p)

	_, err = ParseNotifyOn("sometimes")
	assert.Error(t, err)
}

func TestFromUpload(t *testing.T) {
	res := &runner.Result{
		URL:       "http://localhost:8080/upload",
		Files:     []string{"a.txt"},
		Attempts:  2,
		BytesSent: 42,
		Duration:  15 * time.Millisecond,
		Response:  &uhttp.Response{StatusCode: 500, Status: "500 Internal Server Error"},
		Assertions: []*assertions.Result{
			{Passed: true, Message: "status == 500"},
			{Passed: false, Message: "body contains ok"},
		},
	}

	r := FromUpload(res, errors.New("expectations failed"))
	assert.Equal(t, KindUpload, r.Kind)
	assert.False(t, r.Passed)
	assert.Equal(t, "500 Internal Server Error", r.Status)
	assert.Equal(t, []string{"body contains ok"}, r.Failures)
	assert.Equal(t, "Upload failed", r.Title())

	r = FromUpload(nil, errors.New("dial tcp: refused"))
	assert.Equal(t, []string{"dial tcp: refused"}, r.Failures)
}

func TestFromBench(t *testing.T) {
	res := &bench.Result{
		Summary: &bench.Summary{Total: 10, Failed: 1, Errors: 2, P95: 120 * time.Millisecond, RPS: 9.5},
		Thresholds: []bench.ThresholdResult{
			{Name: "p95", Passed: false, Expected: "<100ms", Actual: "120ms"},
		},
		Passed: false,
	}

	r := FromBench("http://h/upload", []string{"a.bin"}, res, nil)
	assert.False(t, r.Passed)
	assert.EqualValues(t, 3, r.Errors)
	assert.Equal(t, []string{"p95: 120ms (limit <100ms)"}, r.Failures)
	assert.Equal(t, "Bench failed", r.Title())
}

func webhook(t *testing.T, status int) (*httptest.Server, *[]byte) {
	t.Helper()
	var got []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		got, _ = io.ReadAll(r.Body)
		w.WriteHeader(status)
	}))
	t.Cleanup(ts.Close)
	return ts, &got
}

func TestSlackNotifier(t *testing.T) {
	ts, got := webhook(t, http.StatusOK)

	n := NewSlackNotifier(ts.URL, WithSlackChannel("#uploads"))
	assert.Equal(t, "slack", n.Name())

	err := n.Notify(context.Background(), &Report{
		Kind:     KindUpload,
		Target:   "http://localhost/upload",
		Files:    []string{"a.txt"},
		Passed:   false,
		Status:   "500 Internal Server Error",
		Failures: []string{"status == 201"},
	})
	require.NoError(t, err)

	body := string(*got)
	assert.Equal(t, "#uploads", gjson.Get(body, "channel").String())
	assert.Equal(t, "hitupload", gjson.Get(body, "username").String())
	assert.Equal(t, "danger", gjson.Get(body, "attachments.0.color").String())
	assert.Contains(t, gjson.Get(body, "attachments.0.title").String(), "Upload failed")
	assert.Contains(t, gjson.Get(body, "attachments.0.text").String(), "status == 201")
	assert.Equal(t, "500 Internal Server Error",
		gjson.Get(body, `attachments.0.fields.#(title=="Status").value`).String())
}

func TestSlackNotifier_BadStatus(t *testing.T) {
	ts, _ := webhook(t, http.StatusForbidden)

	err := NewSlackNotifier(ts.URL).Notify(context.Background(), &Report{Passed: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}

func TestTeamsNotifier(t *testing.T) {
	ts, got := webhook(t, http.StatusAccepted)

	n := NewTeamsNotifier(ts.URL)
	assert.Equal(t, "teams", n.Name())

	err := n.Notify(context.Background(), &Report{
		Kind:   KindBench,
		Target: "http://localhost/upload",
		Passed: true,
		Total:  100,
		P95:    80 * time.Millisecond,
	})
	require.NoError(t, err)

	body := string(*got)
	assert.Equal(t, "AdaptiveCard", gjson.Get(body, "attachments.0.content.type").String())
	assert.Equal(t, "Bench passed", gjson.Get(body, "attachments.0.content.body.0.text").String())
	assert.Equal(t, "100",
		gjson.Get(body, `attachments.0.content.body.#(type=="FactSet").facts.#(title=="Uploads").value`).String())
}
