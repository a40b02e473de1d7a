package version

import "fmt"

// Codenames are common huddle formations, one per major version.
var codenames = []string{
	"circle",
	"wedge",
	"line",
	"square",
}

const (
	Major = 0
	Minor = 1
	Patch = 0
)

// Commit is set at build time with -ldflags "-X .../version.Commit=...".
var Commit = "dev"

func Codename() string {
	if Major < len(codenames) {
		return codenames[Major]
	}
	return fmt.Sprintf("scrum-%d", Major)
}

func String() string {
	return fmt.Sprintf("%s-%d.%d.%d", Codename(), Major, Minor, Patch)
}

// Full includes the build commit.
func Full() string {
	return String() + "+" + Commit
}
