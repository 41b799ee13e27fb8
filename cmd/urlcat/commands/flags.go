package commands

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/openfroyo/urlcat/pkg/config"
)

// invocationFlags binds the per-invocation flags that override the config
// file. Only flags set on the command line produce overrides.
type invocationFlags struct {
	name        string
	urlValue    []string
	catType     string
	description string
	state       string
	commit      bool
	check       bool
	vsys        string
	deviceGroup string

	transport string
	hostname  string
	port      int
	username  string
	password  string
	apiKey    string
	insecure  bool
	timeout   string
	keyFile   string
}

func (f *invocationFlags) bindObject(fs *pflag.FlagSet) {
	fs.StringVar(&f.name, "name", "", "custom URL category name")
	fs.StringSliceVar(&f.urlValue, "url-value", nil, "member URL, repeatable; order is significant")
	fs.StringVar(&f.catType, "type", "", `category type: "URL List" or "Category Match"`)
	fs.StringVar(&f.description, "description", "", "category description")
	fs.StringVar(&f.state, "state", "", "present or absent")
	fs.BoolVar(&f.commit, "commit", false, "commit the candidate configuration after a change")
}

func (f *invocationFlags) bindCheck(fs *pflag.FlagSet) {
	fs.BoolVar(&f.check, "check", false, "report the change without issuing it")
}

func (f *invocationFlags) bindProvider(fs *pflag.FlagSet) {
	fs.StringVar(&f.vsys, "vsys", "", "firewall virtual system")
	fs.StringVar(&f.deviceGroup, "device-group", "", `Panorama device group ("shared" for the shared scope)`)
	fs.StringVar(&f.transport, "transport", "", "device transport: xmlapi or ssh")
	fs.StringVar(&f.hostname, "hostname", "", "firewall or Panorama address ($PANOS_HOSTNAME)")
	fs.IntVar(&f.port, "port", 0, "device port ($PANOS_PORT)")
	fs.StringVar(&f.username, "username", "", "device username ($PANOS_USERNAME)")
	fs.StringVar(&f.password, "password", "", "device password ($PANOS_PASSWORD)")
	fs.StringVar(&f.apiKey, "api-key", "", "XML API key ($PANOS_API_KEY)")
	fs.BoolVar(&f.insecure, "insecure", false, "skip TLS verification or SSH host key checking")
	fs.StringVar(&f.timeout, "request-timeout", "", "per-request device timeout, e.g. 30s")
	fs.StringVar(&f.keyFile, "key-file", "", "SSH private key file")
}

// overrides converts the flags changed on cmd into config overrides.
func (f *invocationFlags) overrides(cmd *cobra.Command) config.Overrides {
	fs := cmd.Flags()
	var ov config.Overrides

	str := func(flag string, v string) *string {
		if fs.Lookup(flag) == nil || !fs.Changed(flag) {
			return nil
		}
		return &v
	}
	boolean := func(flag string, v bool) *bool {
		if fs.Lookup(flag) == nil || !fs.Changed(flag) {
			return nil
		}
		return &v
	}

	ov.Name = str("name", f.name)
	if fs.Lookup("url-value") != nil && fs.Changed("url-value") {
		ov.URLValue = append([]string{}, f.urlValue...)
	}
	ov.Type = str("type", f.catType)
	ov.Description = str("description", f.description)
	ov.State = str("state", f.state)
	ov.Commit = boolean("commit", f.commit)
	ov.Check = boolean("check", f.check)
	ov.Vsys = str("vsys", f.vsys)
	ov.DeviceGroup = str("device-group", f.deviceGroup)

	ov.Transport = str("transport", f.transport)
	ov.Hostname = str("hostname", f.hostname)
	if fs.Lookup("port") != nil && fs.Changed("port") {
		port := f.port
		ov.Port = &port
	}
	ov.Username = str("username", f.username)
	ov.Password = str("password", f.password)
	ov.APIKey = str("api-key", f.apiKey)
	ov.Insecure = boolean("insecure", f.insecure)
	ov.Timeout = str("request-timeout", f.timeout)
	ov.KeyFile = str("key-file", f.keyFile)

	return ov
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".urlcat", "history.db")
	}
	return filepath.Join(home, ".urlcat", "history.db")
}
