// File: internal/routine/runner_test.go
package routine

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"campusdaily/internal/campus/auth"
	"campusdaily/internal/config"
	"campusdaily/internal/notify"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// platformFixture is an httptest server standing in for the whole campus
// platform: directory, CAS host, and collector API.
type platformFixture struct {
	srv *httptest.Server

	rejectLogin bool

	mu          sync.Mutex
	submissions []string // subjects of accepted submissions
}

func newPlatformFixture(t *testing.T) *platformFixture {
	t.Helper()
	f := &platformFixture{}

	mux := http.NewServeMux()
	mux.HandleFunc("/v6/config/guest/tenant/list", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"errCode":0,"errMsg":"SUCCESS","data":[{"id":42,"name":"Demo University"}]}`)
	})
	mux.HandleFunc("/v6/config/guest/tenant/info", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"errCode":0,"errMsg":"SUCCESS","data":[{"id":42,"name":"Demo University","ampUrl2":%q}]}`,
			f.srv.URL+"/campusphere")
	})
	mux.HandleFunc("/campusphere/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if f.rejectLogin {
				fmt.Fprint(w, `<html><body><div id="errorMsg">Invalid credentials.</div></body></html>`)
				return
			}
			http.Redirect(w, r, f.srv.URL+"/portal/home", http.StatusFound)
			return
		}
		fmt.Fprint(w, `<html><body>`+
			`<form id="casLoginForm">`+
			`<input type="hidden" name="lt" value="LT-1"/>`+
			`<input type="hidden" name="execution" value="e1s1"/>`+
			`<input type="hidden" name="_eventId" value="submit"/>`+
			`</form>`+
			`<div id="pwdDefaultEncryptSalt">ABCDEFGHIJKLMNOP</div>`+
			`</body></html>`)
	})
	mux.HandleFunc("/authserver/needCaptcha.html", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "false")
	})
	mux.HandleFunc("/portal/home", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "home")
	})

	const base = "/wec-counselor-collector-apps/stu/collector"
	mux.HandleFunc(base+"/queryCollectorProcessingList", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"code":"0","message":"SUCCESS","datas":{"rows":[
			{"subject":"Yesterday Report","wid":"w-0","formWid":"f-0","isHandled":1},
			{"subject":"Daily Health Report","wid":"w-1","formWid":"f-1"},
			{"subject":"Undeclared Survey","wid":"w-2","formWid":"f-2"}]}}`)
	})
	mux.HandleFunc(base+"/detailCollector", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"code":"0","message":"SUCCESS","datas":{"collector":{"schoolTaskWid":"task-1"}}}`)
	})
	mux.HandleFunc(base+"/getFormFields", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"code":"0","message":"SUCCESS","datas":{"totalSize":1,"rows":[
			{"title":"Body temperature","colName":"field_1","fieldType":"1","isRequired":true}]}}`)
	})
	mux.HandleFunc(base+"/submitForm", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.submissions = append(f.submissions, r.Header.Get("Cpdaily-Extension"))
		f.mu.Unlock()
		fmt.Fprint(w, `{"code":"0","message":"SUCCESS"}`)
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *platformFixture) profile(username string) config.Profile {
	return config.Profile{
		Username:   username,
		Password:   "hunter2!",
		SchoolName: "Demo University",
		Address:    "1 Campus Road",
		Longitude:  121.5,
		Latitude:   31.3,
		DeviceID:   "a2a37680-9d19-4b46-a9b3-67ef4c1e34da",
		AnswerSets: []config.AnswerSet{{
			Subject: "Daily Health Report",
			Fields: []config.AnswerRecord{
				{Title: "Body temperature", ColName: "field_1", Values: []string{"36.5"}},
			},
		}},
	}
}

func (f *platformFixture) runner(notifier notify.Notifier, recorder Recorder) *Runner {
	cfg := config.NetworkConfig{
		SlowRequestTimeout: 5 * time.Second,
		RatePerSecond:      500,
		RateBurst:          500,
	}
	return NewRunner(cfg, 2, notifier, recorder, zap.NewNop(),
		auth.WithDirectory(f.srv.URL+"/v6/config/guest/tenant/list", f.srv.URL+"/v6/config/guest/tenant/info"))
}

type fakeNotifier struct {
	mu     sync.Mutex
	pushes []string
}

func (n *fakeNotifier) Push(_ context.Context, _ int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pushes = append(n.pushes, text)
	return nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []RecordEntry
}

func (r *fakeRecorder) Record(_ context.Context, entries []RecordEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entries...)
	return nil
}

func TestProcessUser(t *testing.T) {
	f := newPlatformFixture(t)
	recorder := &fakeRecorder{}
	runner := f.runner(nil, recorder)

	profile := f.profile("20230001")
	results, err := runner.ProcessUser(context.Background(), &profile)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, FormResult{Subject: "Daily Health Report", Outcome: OutcomeOK}, results[0])
	assert.Equal(t, FormResult{Subject: "Undeclared Survey", Outcome: OutcomeMisbehaved}, results[1])

	// only the fillable form reached the submission endpoint
	assert.Len(t, f.submissions, 1)

	require.Len(t, recorder.entries, 2)
	assert.Equal(t, "20230001", recorder.entries[0].Username)
	assert.Equal(t, "Demo University", recorder.entries[0].School)
	assert.Equal(t, OutcomeOK, recorder.entries[0].Outcome)
	assert.False(t, recorder.entries[0].At.IsZero())
}

func TestProcessUser_LoginRejected(t *testing.T) {
	f := newPlatformFixture(t)
	f.rejectLogin = true
	runner := f.runner(nil, nil)

	profile := f.profile("20230001")
	_, err := runner.ProcessUser(context.Background(), &profile)
	assert.ErrorContains(t, err, "login rejected")
}

func TestProcessUser_UnknownSchool(t *testing.T) {
	f := newPlatformFixture(t)
	runner := f.runner(nil, nil)

	profile := f.profile("20230001")
	profile.SchoolName = "No Such University"
	_, err := runner.ProcessUser(context.Background(), &profile)
	assert.ErrorIs(t, err, auth.ErrInstitutionNotFound)
}

func TestProcessAll(t *testing.T) {
	f := newPlatformFixture(t)
	notifier := &fakeNotifier{}
	runner := f.runner(notifier, nil)

	good := f.profile("20230001")
	bad := f.profile("20230002")
	bad.SchoolName = "No Such University"

	runner.ProcessAll(context.Background(), []config.Profile{good, bad})

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.pushes, 2)

	var aborted, summarized int
	for _, push := range notifier.pushes {
		switch {
		case strings.Contains(push, "20230002") && strings.Contains(push, "run aborted"):
			aborted++
		case strings.Contains(push, "20230001") && strings.Contains(push, "Daily Health Report"):
			summarized++
		}
	}
	assert.Equal(t, 1, aborted)
	assert.Equal(t, 1, summarized)
}
