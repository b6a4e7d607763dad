// Package dialect detects server versions and vendor flavors and maps them to
// the catalog capabilities the drivers branch on.
package dialect

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/sadopc/dbmeta/internal/adapter"
)

var versionRe = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)`)

// Flavor is the vendor behind a MySQL-compatible version string.
type Flavor string

const (
	Vanilla Flavor = "vanilla"
	MariaDB Flavor = "mariadb"
	TiDB    Flavor = "tidb"
)

// Version is a parsed server version.
type Version struct {
	Raw string
	// Number is the leading dotted triplet, e.g. "8.0.32".
	Number string
	// Descriptor is everything after Number, e.g. "-log".
	Descriptor string
	Major      int
	Minor      int
	Patch      int
}

// ParseVersion extracts the leading major.minor.patch triplet from raw and
// keeps the remainder as the descriptor.
func ParseVersion(raw string) (Version, error) {
	m := versionRe.FindStringSubmatchIndex(raw)
	if m == nil {
		return Version{}, adapter.UnrecognizedDataError("parse version", "failed to parse version %s", raw)
	}
	v := Version{
		Raw:        raw,
		Number:     raw[m[0]:m[1]],
		Descriptor: raw[m[1]:],
	}
	// The regexp guarantees digits; only overflow can fail here.
	var err error
	if v.Major, err = strconv.Atoi(raw[m[2]:m[3]]); err != nil {
		return Version{}, adapter.UnrecognizedDataError("parse version", "failed to parse version %s", raw)
	}
	if v.Minor, err = strconv.Atoi(raw[m[4]:m[5]]); err != nil {
		return Version{}, adapter.UnrecognizedDataError("parse version", "failed to parse version %s", raw)
	}
	if v.Patch, err = strconv.Atoi(raw[m[6]:m[7]]); err != nil {
		return Version{}, adapter.UnrecognizedDataError("parse version", "failed to parse version %s", raw)
	}
	return v, nil
}

// MustParseVersion is ParseVersion for constants known to be valid.
func MustParseVersion(raw string) Version {
	v, err := ParseVersion(raw)
	if err != nil {
		panic(err)
	}
	return v
}

// FromVersionNum decodes a Postgres server_version_num such as 160002.
func FromVersionNum(n int) Version {
	v := Version{Major: n / 10000, Minor: (n / 100) % 100, Patch: n % 100}
	v.Number = fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	v.Raw = v.Number
	return v
}

func (v Version) String() string { return v.Number + v.Descriptor }

func (v Version) semver() string {
	return fmt.Sprintf("v%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or +1 comparing the numeric triplets only.
func (v Version) Compare(o Version) int {
	return semver.Compare(v.semver(), o.semver())
}

// AtLeast reports v >= o.
func (v Version) AtLeast(o Version) bool { return v.Compare(o) >= 0 }

// Flavor classifies the vendor from the descriptor.
func (v Version) Flavor() Flavor {
	d := strings.ToLower(v.Descriptor)
	switch {
	case strings.Contains(d, "mariadb"):
		return MariaDB
	case strings.Contains(d, "tidb"):
		return TiDB
	default:
		return Vanilla
	}
}
