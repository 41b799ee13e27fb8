package xmlapi

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfroyo/urlcat/pkg/engine"
)

const testKey = "LUFRPT1secret"

var entryNameRe = regexp.MustCompile(`/entry\[@name='([^']*)'\]$`)

// fakeDevice emulates the subset of the PAN-OS XML API the package uses.
type fakeDevice struct {
	t     *testing.T
	scope engine.Scope

	mu        sync.Mutex
	entries   []entry
	requests  []url.Values
	jobPolls  map[string]int
	jobResult string
	nextJob   int
	failType  string
	failCode  int
}

func newFakeDevice(t *testing.T, scope engine.Scope) (*fakeDevice, *httptest.Server) {
	t.Helper()
	f := &fakeDevice{t: t, scope: scope, jobPolls: map[string]int{}, jobResult: "OK"}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeDevice) mutations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, r := range f.requests {
		switch r.Get("type") {
		case "config":
			if a := r.Get("action"); a != "get" {
				out = append(out, a)
			}
		case "commit":
			if r.Get("action") == "all" {
				out = append(out, "commit-all")
			} else {
				out = append(out, "commit")
			}
		}
	}
	return out
}

func (f *fakeDevice) serve(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.PostForm)

	typ := r.PostForm.Get("type")
	if f.failType != "" && typ == f.failType {
		w.WriteHeader(f.failCode)
		fmt.Fprint(w, `<response status="error" code="13"><msg><line>simulated failure</line></msg></response>`)
		return
	}

	if typ == "keygen" {
		if r.PostForm.Get("user") != "admin" || r.PostForm.Get("password") != "pw" {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `<response status="error" code="403"><result><msg>Invalid Credential</msg></result></response>`)
			return
		}
		fmt.Fprintf(w, `<response status="success"><result><key>%s</key></result></response>`, testKey)
		return
	}

	if r.Header.Get("X-PAN-KEY") != testKey {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `<response status="error" code="403"><result><msg>Invalid credentials.</msg></result></response>`)
		return
	}

	switch typ {
	case "config":
		f.config(w, r.PostForm)
	case "commit":
		f.nextJob++
		fmt.Fprintf(w, `<response status="success" code="19"><result><msg><line>Commit job enqueued with jobid %d</line></msg><job>%d</job></result></response>`, f.nextJob, f.nextJob)
	case "op":
		f.op(w, r.PostForm.Get("cmd"))
	default:
		fmt.Fprint(w, `<response status="error" code="17"><msg>unsupported</msg></response>`)
	}
}

func (f *fakeDevice) config(w http.ResponseWriter, form url.Values) {
	xpath := form.Get("xpath")
	action := form.Get("action")

	if action == "get" {
		if xpath != CategoryXPath(f.scope) {
			f.t.Errorf("unexpected get xpath %q", xpath)
		}
		if len(f.entries) == 0 {
			fmt.Fprint(w, `<response status="success" code="7"><result/></response>`)
			return
		}
		var b strings.Builder
		b.WriteString(`<response status="success" code="19"><result total-count="1" count="1"><custom-url-category admin="admin" time="2024/01/01">`)
		for _, e := range f.entries {
			out, _ := xml.Marshal(e)
			b.Write(out)
		}
		b.WriteString(`</custom-url-category></result></response>`)
		fmt.Fprint(w, b.String())
		return
	}

	if !strings.HasPrefix(xpath, CategoryXPath(f.scope)+"/entry") {
		f.t.Errorf("unexpected %s xpath %q", action, xpath)
	}
	m := entryNameRe.FindStringSubmatch(xpath)
	if m == nil {
		fmt.Fprint(w, `<response status="error" code="6"><msg>Bad Xpath</msg></response>`)
		return
	}
	name := m[1]

	switch action {
	case "set":
		var e entry
		if err := xml.Unmarshal([]byte(`<entry name="`+name+`">`+form.Get("element")+`</entry>`), &e); err != nil {
			f.t.Errorf("set element: %v", err)
		}
		f.upsert(e)
	case "edit":
		var e entry
		if err := xml.Unmarshal([]byte(form.Get("element")), &e); err != nil {
			f.t.Errorf("edit element: %v", err)
		}
		if e.Name != name {
			f.t.Errorf("edit entry name %q does not match xpath %q", e.Name, name)
		}
		f.upsert(e)
	case "delete":
		kept := f.entries[:0]
		for _, e := range f.entries {
			if e.Name != name {
				kept = append(kept, e)
			}
		}
		f.entries = kept
	}
	fmt.Fprint(w, `<response status="success" code="20"><msg>command succeeded</msg></response>`)
}

func (f *fakeDevice) upsert(e entry) {
	for i := range f.entries {
		if f.entries[i].Name == e.Name {
			f.entries[i] = e
			return
		}
	}
	f.entries = append(f.entries, e)
}

var jobIDRe = regexp.MustCompile(`<id>(\d+)</id>`)

func (f *fakeDevice) op(w http.ResponseWriter, cmd string) {
	m := jobIDRe.FindStringSubmatch(cmd)
	if m == nil {
		fmt.Fprint(w, `<response status="error" code="17"><msg>unsupported op</msg></response>`)
		return
	}
	id := m[1]
	f.jobPolls[id]++
	if f.jobPolls[id] < 2 {
		fmt.Fprintf(w, `<response status="success"><result><job><id>%s</id><type>Commit</type><status>ACT</status><result>PEND</result><progress>55</progress></job></result></response>`, id)
		return
	}
	fmt.Fprintf(w, `<response status="success"><result><job><id>%s</id><type>Commit</type><status>FIN</status><result>%s</result><progress>100</progress><details><line>Configuration committed</line></details></job></result></response>`, id, f.jobResult)
}

func testConfig(t *testing.T, srv *httptest.Server, scope engine.Scope) *Config {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	cfg := DefaultConfig(u.Hostname())
	var port int
	fmt.Sscanf(u.Port(), "%d", &port)
	cfg.Port = port
	cfg.Protocol = "http"
	cfg.Username = "admin"
	cfg.Password = "pw"
	cfg.Timeout = 5 * time.Second
	cfg.JobPollInterval = time.Millisecond
	cfg.Scope = scope
	return cfg
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
