package policy

import (
	"time"
)

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		objectNamingPolicy(),
		urlMembersPolicy(),
		categoryMatchPolicy(),
	}
}

// objectNamingPolicy enforces PAN-OS naming rules for custom URL categories.
func objectNamingPolicy() Policy {
	return Policy{
		Name:        "object-naming",
		Description: "Custom URL category names are 1-31 characters of letters, digits, space, period, underscore or hyphen",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"naming", "panos"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package urlcat.policies.naming

import rego.v1

# Deleting is always allowed so that misnamed objects can be cleaned up
present if input.state == "present"

deny contains violation if {
	present
	name := input.object.name
	count(name) > 31
	violation := {
		"message": sprintf("name '%s' is %d characters, the maximum is 31", [name, count(name)]),
		"severity": "error",
	}
}

deny contains violation if {
	present
	name := input.object.name
	not regex.match("^[A-Za-z0-9][A-Za-z0-9 ._-]*$", name)
	violation := {
		"message": sprintf("name '%s' must start with a letter or digit and contain only letters, digits, space, '.', '_' or '-'", [name]),
		"severity": "error",
	}
}

deny contains violation if {
	present
	name := input.object.name
	trim_space(name) != name
	violation := {
		"message": sprintf("name '%s' must not have leading or trailing spaces", [name]),
		"severity": "error",
	}
}
`,
	}
}

// urlMembersPolicy checks URL List members the way PAN-OS expects them.
func urlMembersPolicy() Policy {
	return Policy{
		Name:        "url-members",
		Description: "URL List members carry no scheme or whitespace, fit in 255 characters and are not repeated",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"url", "panos"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package urlcat.policies.members

import rego.v1

url_list if {
	input.state == "present"
	input.object.type == "URL List"
}

deny contains violation if {
	url_list
	some member in input.object.url_value
	contains(member, "://")
	violation := {
		"message": sprintf("member '%s' must not include a scheme", [member]),
		"severity": "error",
	}
}

deny contains violation if {
	url_list
	some member in input.object.url_value
	regex.match("\\s", member)
	violation := {
		"message": sprintf("member '%s' must not contain whitespace", [member]),
		"severity": "error",
	}
}

deny contains violation if {
	url_list
	some member in input.object.url_value
	count(member) > 255
	violation := {
		"message": sprintf("member '%s...' is longer than 255 characters", [substring(member, 0, 32)]),
		"severity": "error",
	}
}

deny contains violation if {
	input.state == "present"
	some i, member in input.object.url_value
	some j, other in input.object.url_value
	i < j
	member == other
	violation := {
		"message": sprintf("member '%s' is listed more than once", [member]),
		"severity": "warning",
	}
}
`,
	}
}

// categoryMatchPolicy requires Category Match members to name URL categories.
func categoryMatchPolicy() Policy {
	return Policy{
		Name:        "category-match",
		Description: "Category Match members must look like predefined URL category names",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"category", "panos"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package urlcat.policies.category

import rego.v1

deny contains violation if {
	input.state == "present"
	input.object.type == "Category Match"
	some member in input.object.url_value
	not regex.match("^[a-z0-9]+(-[a-z0-9]+)*$", member)
	violation := {
		"message": sprintf("member '%s' is not a URL category name (e.g. 'gambling', 'adult')", [member]),
		"severity": "error",
	}
}
`,
	}
}
