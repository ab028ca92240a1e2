package version

import "fmt"

// Set with -ldflags "-X github.com/TFMV/gkgsynth/version.Version=..." at release.
var Version = "0.2.0"
var BuildDate = "2025-06-10"

func GetVersion() string {
	return Version
}

func GetBuildDate() string {
	return BuildDate
}

// String is the one-line banner printed by `gkgsynth version`.
func String() string {
	return fmt.Sprintf("gkgsynth %s (built %s)", Version, BuildDate)
}
