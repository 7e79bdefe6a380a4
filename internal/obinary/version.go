package obinary

import (
	"fmt"

	"golang.org/x/mod/semver"
)

// Version is a module's four-part version number, mirroring
// ModuleVersion from the format this was ported from (major, minor,
// build, revision — not the three-part major/minor/patch Go modules
// use).
type Version struct {
	Major, Minor, Build, Revision int32
}

// SemverString renders v as a semver.IsValid-acceptable string, with
// Build in the patch position and Revision as build metadata (which
// semver ignores when comparing). Compare hands only the major.minor
// part to golang.org/x/mod/semver and orders Build and Revision
// numerically itself.
func (v Version) SemverString() string {
	return fmt.Sprintf("v%d.%d.%d+r%d", v.Major, v.Minor, v.Build, v.Revision)
}

// Compare orders two versions the way semver.Compare orders two
// version strings: negative if v < o, zero if equal, positive if
// v > o.
func (v Version) Compare(o Version) int {
	if c := semver.Compare(semver.MajorMinor(v.SemverString()), semver.MajorMinor(o.SemverString())); c != 0 {
		return c
	}
	if v.Build != o.Build {
		return sign(int64(v.Build) - int64(o.Build))
	}
	return sign(int64(v.Revision) - int64(o.Revision))
}

// AtLeast reports whether v satisfies a floor requirement of min.
func (v Version) AtLeast(min Version) bool { return v.Compare(min) >= 0 }

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Build, v.Revision)
}

func sign(n int64) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
