package xmlapi

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/openfroyo/urlcat/pkg/engine"
)

// Commit commits the candidate configuration and waits for the job. When
// opts.DeviceGroup names a device group other than shared, a commit-all
// pushing to that group follows the Panorama commit.
func (c *Client) Commit(ctx context.Context, opts engine.CommitOptions) (*engine.CommitResult, error) {
	start := time.Now()
	result := &engine.CommitResult{}

	jobID, msgs, err := c.enqueue(ctx, "commit", "", commitCmd(opts.Description))
	if err != nil {
		return nil, err
	}
	result.JobID = jobID
	result.Messages = append(result.Messages, msgs...)
	if jobID != "" {
		details, err := c.WaitForJob(ctx, jobID)
		result.Messages = append(result.Messages, details...)
		if err != nil {
			return nil, err
		}
	}

	if opts.DeviceGroup != "" && opts.DeviceGroup != engine.SharedDeviceGroup {
		pushID, msgs, err := c.enqueue(ctx, "commit-all", "all", commitAllCmd(opts.DeviceGroup, opts.Description))
		if err != nil {
			return nil, err
		}
		result.PushJobID = pushID
		result.Messages = append(result.Messages, msgs...)
		if pushID != "" {
			details, err := c.WaitForJob(ctx, pushID)
			result.Messages = append(result.Messages, details...)
			if err != nil {
				return nil, err
			}
		}
	}

	result.Duration = time.Since(start)
	c.logger.Info().
		Str("job_id", result.JobID).
		Str("push_job_id", result.PushJobID).
		Dur("duration", result.Duration).
		Msg("Commit completed")
	return result, nil
}

// enqueue submits a commit request and returns the job id, which is empty
// when the device reports nothing to commit.
func (c *Client) enqueue(ctx context.Context, op, action, cmd string) (string, []string, error) {
	params := commitParams(action, cmd)
	resp, err := c.send(ctx, op, params, true)
	if err != nil {
		return "", nil, err
	}
	return resp.Result.Job.id(), resp.messages(), nil
}

// WaitForJob polls the job until it finishes. A FAIL result is returned as
// a *JobError. The wait ends early when ctx is done.
func (c *Client) WaitForJob(ctx context.Context, jobID string) ([]string, error) {
	cmd := "<show><jobs><id>" + xmlEscape(jobID) + "</id></jobs></show>"
	log := c.logger.With().Str("job_id", jobID).Logger()

	for {
		resp, err := c.op(ctx, cmd)
		if err != nil {
			return nil, err
		}

		j := resp.Result.Job
		log.Debug().Str("status", j.Status).Str("progress", j.Progress).Msg("polled job")

		if j.Status == jobStatusFinished {
			details := j.Details.Lines
			if strings.EqualFold(j.Result, jobResultFail) {
				return details, &JobError{JobID: jobID, Details: details}
			}
			return details, nil
		}

		timer := time.NewTimer(c.config.JobPollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &TransportError{Op: "job", Err: ctx.Err(), IsTemporary: true}
		case <-timer.C:
		}
	}
}

func commitParams(action, cmd string) url.Values {
	params := url.Values{}
	params.Set("type", "commit")
	params.Set("cmd", cmd)
	if action != "" {
		params.Set("action", action)
	}
	return params
}

func commitCmd(description string) string {
	if description == "" {
		return "<commit></commit>"
	}
	return "<commit><description>" + xmlEscape(description) + "</description></commit>"
}

func commitAllCmd(deviceGroup, description string) string {
	var b strings.Builder
	b.WriteString("<commit-all><shared-policy>")
	fmt.Fprintf(&b, "<device-group><entry name=\"%s\"/></device-group>", xmlEscape(deviceGroup))
	if description != "" {
		b.WriteString("<description>" + xmlEscape(description) + "</description>")
	}
	b.WriteString("</shared-policy></commit-all>")
	return b.String()
}

func xmlEscape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
