// Package version provides version information for the go-exchange application.
package version

// Version is the current version of the go-exchange application.
const Version = "0.2.0"

// AgentString returns the full agent string with versioning.
// Format: privex/go-exchange@v{version}
func AgentString() string {
	return "privex/go-exchange@v" + Version
}
