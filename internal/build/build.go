// Package build holds build-time information about the binary. The variables
// in this package are intended to be overridden at build time with the
// -ldflags "-X" linker flag.
package build

var (
	// ProjectName is the name reported in metrics namespaces and version output.
	ProjectName = "decant"

	// Version is the build version.
	Version = "dev"

	// Commit is the git commit the binary was built from.
	Commit = ""

	// Date is the date the binary was built.
	Date = ""
)
