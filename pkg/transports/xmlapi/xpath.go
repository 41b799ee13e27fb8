package xmlapi

import (
	"fmt"
	"strings"

	"github.com/openfroyo/urlcat/pkg/engine"
)

const (
	devicePrefix   = "/config/devices/entry[@name='localhost.localdomain']"
	sharedPrefix   = "/config/shared"
	categorySuffix = "/profiles/custom-url-category"
)

// CategoryXPath returns the container XPath of custom URL categories in scope.
func CategoryXPath(scope engine.Scope) string {
	switch {
	case scope.IsShared():
		return sharedPrefix + categorySuffix
	case scope.IsPanorama():
		return fmt.Sprintf("%s/device-group/entry[@name=%s]%s", devicePrefix, literal(scope.DeviceGroup), categorySuffix)
	default:
		return fmt.Sprintf("%s/vsys/entry[@name=%s]%s", devicePrefix, literal(scope.VsysOrDefault()), categorySuffix)
	}
}

// EntryXPath returns the XPath of the named category in scope.
func EntryXPath(scope engine.Scope, name string) string {
	return fmt.Sprintf("%s/entry[@name=%s]", CategoryXPath(scope), literal(name))
}

// literal renders s as an XPath 1.0 string literal. XPath has no escapes, so
// a value holding both quote kinds is built with concat().
func literal(s string) string {
	switch {
	case !strings.Contains(s, "'"):
		return "'" + s + "'"
	case !strings.Contains(s, `"`):
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	for i, p := range parts {
		parts[i] = "'" + p + "'"
	}
	return "concat(" + strings.Join(parts, `, "'", `) + ")"
}
