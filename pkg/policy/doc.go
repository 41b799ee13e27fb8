// Package policy provides Open Policy Agent (OPA) guard rails for custom URL
// category reconciliation.
//
// Policies run after the desired state is built and before the device is
// contacted. A blocking violation stops the invocation with an invalid
// specification error coded POLICY_DENIED, so nothing is listed or mutated.
//
// # Usage
//
//	eng, err := policy.NewEngine(logger)
//	if err != nil {
//	    return err
//	}
//	if err := eng.LoadPolicies(ctx, []string{"/etc/urlcat/policies"}); err != nil {
//	    return err
//	}
//
//	input := policy.NewPolicyInput(desired, scope)
//	if _, err := eng.Check(ctx, input); err != nil {
//	    return err
//	}
//
// # Built-in Policies
//
//  1. object-naming - 1 to 31 characters, PAN-OS object name characters, no
//     leading or trailing space (present only, so odd names can be deleted)
//  2. url-members - URL List members have no scheme, no whitespace, at most
//     255 characters; duplicates are a warning
//  3. category-match - Category Match members look like category names
//
// # Custom Policies
//
// Every .rego file in a policy directory is one policy named after the file.
// Its package defines a deny set whose members are message strings or
// objects with "message" and "severity":
//
//	# Social media sites may not be allow-listed
//	package urlcat.custom.social
//
//	import rego.v1
//
//	deny contains violation if {
//	    some member in input.object.url_value
//	    endswith(member, "social.example.com")
//	    violation := {
//	        "message": sprintf("%s is a social media site", [member]),
//	        "severity": "critical",
//	    }
//	}
//
// The input document has object (name, url_value, type, description), state,
// scope (vsys, device_group) and context (timestamp, dry_run).
//
// Plain-string members take the policy's severity, which is error for .rego
// files. JSON policy files may set name, description, severity and enabled
// alongside the rego source.
//
// # Hot Reload
//
// Loader.Watch reloads a policy directory after changes settle:
//
//	loader := policy.NewLoader(logger)
//	err = loader.Watch(ctx, paths, func(policies []policy.Policy) error {
//	    return eng.ReloadPolicies(ctx, policies)
//	})
package policy
