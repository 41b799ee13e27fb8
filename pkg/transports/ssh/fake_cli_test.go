package ssh

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"sync"
)

type cliEntry struct {
	XMLName     xml.Name `xml:"entry"`
	Name        string   `xml:"name,attr"`
	Members     []string `xml:"list>member"`
	Description string   `xml:"description,omitempty"`
	Type        string   `xml:"type,omitempty"`
}

// fakeCLI emulates the PAN-OS CLI behaviour the package relies on.
type fakeCLI struct {
	mu       sync.Mutex
	entries  []cliEntry
	scripts  [][]string
	jobPolls int
	jobFail  bool
	failOn   string
	closed   bool
}

func (f *fakeCLI) RunScript(ctx context.Context, lines []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts = append(f.scripts, lines)
	return f.handle(lines), nil
}

func (f *fakeCLI) Close() error {
	f.closed = true
	return nil
}

// commands returns the non-preamble lines of every script, in order.
func (f *fakeCLI) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.scripts {
		for _, l := range s {
			if strings.HasPrefix(l, "set cli") || l == "configure" || l == "exit" {
				continue
			}
			out = append(out, l)
		}
	}
	return out
}

func (f *fakeCLI) handle(lines []string) string {
	var out strings.Builder
	prompt := "admin@PA-VM> "
	for _, line := range lines {
		out.WriteString(prompt + line + "\n")
		if f.failOn != "" && strings.HasPrefix(line, f.failOn) {
			out.WriteString("Invalid syntax.\n")
			continue
		}
		tokens := tokenize(line)
		switch {
		case line == "configure":
			prompt = "admin@PA-VM# "
			out.WriteString("Entering configuration mode\n")
		case len(tokens) == 0, strings.HasPrefix(line, "set cli"), line == "exit":
		case tokens[0] == "show" && tokens[1] == "jobs":
			f.jobPolls++
			status, result := "ACT", "PEND"
			if f.jobPolls >= 2 {
				status, result = "FIN", "OK"
				if f.jobFail {
					result = "FAIL"
				}
			}
			out.WriteString("Enqueued              Dequeued           ID  Type          Status Result Completed\n")
			out.WriteString("------------------------------------------------------------------------------------\n")
			fmt.Fprintf(&out, "2024/01/01 10:00:00   10:00:00            %s  CommitAll     %s    %s    10:01:00\n", tokens[3], status, result)
		case tokens[0] == "show":
			out.WriteString(f.render())
		case tokens[0] == "set":
			f.set(tokens)
		case tokens[0] == "delete":
			f.remove(tokens[len(tokens)-1])
		case tokens[0] == "commit":
			out.WriteString("Configuration committed successfully\n")
		case tokens[0] == "commit-all":
			out.WriteString("Job enqueued with jobid 7\n")
		default:
			out.WriteString("Unknown command: " + tokens[0] + "\n")
		}
	}
	return out.String()
}

func (f *fakeCLI) render() string {
	if len(f.entries) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("<custom-url-category>\n")
	for _, e := range f.entries {
		data, _ := xml.MarshalIndent(e, "  ", "  ")
		b.Write(data)
		b.WriteString("\n")
	}
	b.WriteString("</custom-url-category>\n")
	return b.String()
}

// set parses: set [scope...] profiles custom-url-category NAME list [ ... ] type T [description D]
func (f *fakeCLI) set(tokens []string) {
	i := 0
	for i < len(tokens) && tokens[i] != "custom-url-category" {
		i++
	}
	e := cliEntry{Name: tokens[i+1]}
	i += 2
	for i < len(tokens) {
		switch tokens[i] {
		case "list":
			i += 2
			for tokens[i] != "]" {
				e.Members = append(e.Members, tokens[i])
				i++
			}
			i++
		case "type":
			e.Type = tokens[i+1]
			i += 2
		case "description":
			e.Description = tokens[i+1]
			i += 2
		default:
			i++
		}
	}
	for j := range f.entries {
		if f.entries[j].Name == e.Name {
			// set merges members into an existing entry
			f.entries[j].Members = append(f.entries[j].Members, e.Members...)
			f.entries[j].Type = e.Type
			f.entries[j].Description = e.Description
			return
		}
	}
	f.entries = append(f.entries, e)
}

func (f *fakeCLI) remove(name string) {
	kept := f.entries[:0]
	for _, e := range f.entries {
		if e.Name != name {
			kept = append(kept, e)
		}
	}
	f.entries = kept
}

// tokenize splits a CLI line on spaces, honouring double quotes and \" escapes.
func tokenize(line string) []string {
	var tokens []string
	var cur strings.Builder
	inQuote, hasToken := false, false
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '\\' && inQuote && i+1 < len(line) && line[i+1] == '"':
			cur.WriteByte('"')
			i++
		case c == '"':
			inQuote = !inQuote
			hasToken = true
		case c == ' ' && !inQuote:
			if hasToken {
				tokens = append(tokens, cur.String())
				cur.Reset()
				hasToken = false
			}
		default:
			cur.WriteByte(c)
			hasToken = true
		}
	}
	if hasToken {
		tokens = append(tokens, cur.String())
	}
	return tokens
}
