// Package config builds a reconciliation Invocation from a config file, the
// environment and command-line flags.
//
// # Sources
//
// Values are layered with the last source winning:
//
//  1. A .cue, .yaml, .yml or .json file. Every file is checked against the
//     closed #Invocation CUE schema, so misspelled fields are rejected with
//     their file position.
//  2. PANOS_HOSTNAME, PANOS_USERNAME, PANOS_PASSWORD, PANOS_API_KEY and
//     PANOS_PORT, overlaid on the provider block.
//  3. Overrides set from flags.
//
// After layering, an optional url_script is evaluated with Starlark. The
// strings in its "urls" global are appended to url_value:
//
//	name: "tenants"
//	url_value: ["static.example.com"]
//	url_script: """
//		urls = [t + ".tenants.example.com" for t in ["red", "blue"]]
//		"""
//	provider: hostname: "fw.example.com"
//
// Defaults (state present, type "URL List", transport xmlapi) are then filled
// in and the struct is validated with go-playground/validator.
//
// # Errors
//
// Every failure is an engine invalid specification error. When the problem
// can be located, a ValidationErrors value is in the chain:
//
//	inv, err := config.NewLoader().Load(ctx, "blocked.cue", config.Overrides{})
//	var verrs config.ValidationErrors
//	if errors.As(err, &verrs) {
//	    for _, v := range verrs {
//	        fmt.Println(v)
//	    }
//	}
package config
