package ssh

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/openfroyo/urlcat/pkg/engine"
	"github.com/openfroyo/urlcat/pkg/transports/xmlapi"
)

// preamble makes the CLI scriptable and switches config output to XML.
var preamble = []string{
	"set cli pager off",
	"set cli scripting-mode on",
	"set cli config-output-format xml",
}

// errorMarkers are output fragments the CLI prints on failure.
var errorMarkers = []string{
	"Invalid syntax",
	"Server error",
	"Unknown command",
	"Validation Error",
	"Commit failed",
}

// quote renders s as a double-quoted CLI token.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// scopePrefix is the configure-mode path of the parent scope. A firewall
// without an explicit vsys targets vsys1, as the XML API does.
func scopePrefix(scope engine.Scope) string {
	switch {
	case scope.IsShared():
		return "shared "
	case scope.IsPanorama():
		return "device-group " + quote(scope.DeviceGroup) + " "
	default:
		return "vsys " + quote(scope.VsysOrDefault()) + " "
	}
}

func categoryPath(scope engine.Scope) string {
	return scopePrefix(scope) + "profiles custom-url-category"
}

// ShowCommand returns the configure-mode command printing the candidate
// categories in scope.
func ShowCommand(scope engine.Scope) string {
	return "show " + categoryPath(scope)
}

// SetCommand returns the configure-mode command creating obj with every field.
func SetCommand(scope engine.Scope, obj engine.CustomURLCategory) string {
	var b strings.Builder
	b.WriteString("set " + categoryPath(scope) + " " + quote(obj.Name) + " list [")
	for _, u := range obj.URLValues {
		b.WriteString(" " + quote(u))
	}
	b.WriteString(" ] type " + quote(string(obj.Type.Normalize())))
	if obj.Description != "" {
		b.WriteString(" description " + quote(obj.Description))
	}
	return b.String()
}

// DeleteCommand returns the configure-mode command removing the named category.
func DeleteCommand(scope engine.Scope, name string) string {
	return "delete " + categoryPath(scope) + " " + quote(name)
}

// CommitCommand returns the configure-mode commit command.
func CommitCommand(description string) string {
	if description == "" {
		return "commit"
	}
	return "commit description " + quote(description)
}

// CommitAllCommand returns the Panorama op-mode push to a device group.
func CommitAllCommand(deviceGroup string) string {
	return "commit-all shared-policy device-group " + quote(deviceGroup)
}

// JobCommand returns the op-mode command showing one job.
func JobCommand(jobID string) string {
	return "show jobs id " + jobID
}

// configureScript wraps configure-mode commands with the preamble and exits.
func configureScript(commands ...string) []string {
	lines := append([]string{}, preamble...)
	lines = append(lines, "configure")
	lines = append(lines, commands...)
	return append(lines, "exit", "exit")
}

// opScript wraps op-mode commands with the preamble and exit.
func opScript(commands ...string) []string {
	lines := append([]string{}, preamble...)
	lines = append(lines, commands...)
	return append(lines, "exit")
}

// checkOutput returns a *CLIError for the first failure line in output.
func checkOutput(output string) error {
	var lastCommand string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(strings.TrimRight(line, "\r"))
		if line == "" {
			continue
		}
		for _, marker := range errorMarkers {
			if strings.Contains(line, marker) {
				return &CLIError{Command: lastCommand, Line: line}
			}
		}
		if i := strings.LastIndex(line, "# "); i >= 0 {
			lastCommand = strings.TrimSpace(line[i+2:])
		}
	}
	return nil
}

// ParseListing extracts the custom-url-category element from CLI output and
// decodes it. Output without the element means the scope has no categories.
func ParseListing(output string) ([]engine.CustomURLCategory, error) {
	return xmlapi.DecodeListing([]byte(extractElement(output, "custom-url-category")))
}

func extractElement(output, tag string) string {
	start := strings.Index(output, "<"+tag)
	if start < 0 {
		return ""
	}
	if end := strings.LastIndex(output, "</"+tag+">"); end > start {
		return output[start : end+len("</"+tag+">")]
	}
	if gt := strings.Index(output[start:], ">"); gt > 0 && output[start+gt-1] == '/' {
		return output[start : start+gt+1]
	}
	return ""
}

var jobIDRe = regexp.MustCompile(`(?i)job\s*id\s*(\d+)`)

// parseJobID returns the job id announced in output, or "".
func parseJobID(output string) string {
	if m := jobIDRe.FindStringSubmatch(output); m != nil {
		return m[1]
	}
	return ""
}

// jobStatus finds the row for jobID in "show jobs id" output and returns
// its status and result columns.
func jobStatus(output, jobID string) (status, result string, err error) {
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		for i := 0; i+2 < len(fields); i++ {
			if fields[i] == jobID && isJobStatus(fields[i+2]) {
				if i+3 < len(fields) {
					result = fields[i+3]
				}
				return fields[i+2], result, nil
			}
		}
	}
	return "", "", fmt.Errorf("job %s not found in output", jobID)
}

func isJobStatus(s string) bool {
	switch s {
	case "ACT", "FIN", "PEND", "QUEUED":
		return true
	}
	return false
}
