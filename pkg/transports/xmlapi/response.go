package xmlapi

import (
	"encoding/xml"
	"fmt"
	"strings"
)

const (
	statusSuccess = "success"
	statusError   = "error"

	codeObjectNotPresent = "7"
	codeSessionTimedOut  = "22"
)

// response is the envelope of every XML API reply:
//
//	<response status="success|error" code="N"><msg/><result/></response>
type response struct {
	XMLName xml.Name `xml:"response"`
	Status  string   `xml:"status,attr"`
	Code    string   `xml:"code,attr"`
	Msg     message  `xml:"msg"`
	Result  result   `xml:"result"`
}

type message struct {
	Text  string   `xml:",chardata"`
	Lines []string `xml:"line"`
}

func (m message) String() string {
	parts := make([]string, 0, len(m.Lines)+1)
	if t := strings.TrimSpace(m.Text); t != "" {
		parts = append(parts, t)
	}
	for _, l := range m.Lines {
		if l = strings.TrimSpace(l); l != "" {
			parts = append(parts, l)
		}
	}
	return strings.Join(parts, "; ")
}

type result struct {
	Inner []byte  `xml:",innerxml"`
	Key   string  `xml:"key"`
	Msg   message `xml:"msg"`
	Job   job     `xml:"job"`
}

// job is either the bare id returned by an enqueued commit (<job>5</job>) or
// the status block returned by show jobs.
type job struct {
	Text     string  `xml:",chardata"`
	ID       string  `xml:"id"`
	Type     string  `xml:"type"`
	Status   string  `xml:"status"`
	Result   string  `xml:"result"`
	Progress string  `xml:"progress"`
	Details  message `xml:"details"`
}

const (
	jobStatusFinished = "FIN"
	jobResultFail     = "FAIL"
)

func parseResponse(body []byte) (*response, error) {
	var r response
	if err := xml.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}
	return &r, nil
}

// err converts an error status into an *APIError.
func (r *response) err() error {
	if r.Status == statusSuccess {
		return nil
	}
	msg := r.Msg.String()
	if msg == "" {
		msg = r.Result.Msg.String()
	}
	if msg == "" {
		msg = "request failed"
	}
	return &APIError{Code: r.Code, Message: msg}
}

func (r *response) messages() []string {
	var out []string
	for _, m := range []message{r.Msg, r.Result.Msg} {
		if s := m.String(); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// id returns the job id from either form.
func (j job) id() string {
	if j.ID != "" {
		return strings.TrimSpace(j.ID)
	}
	return strings.TrimSpace(j.Text)
}
