package model

import "fmt"

// Profile selects the postings encoding and query strategy of an index.
// It is fixed at creation, persisted in the manifest and enforced on reopen:
// an index can never change its codec after the fact.
type Profile uint8

const (
	// ProfileSpeed stores postings uncompressed as flat (doc, weight) pairs
	// and scans them linearly. Lowest query latency, highest memory.
	ProfileSpeed Profile = iota + 1
	// ProfileBalanced groups postings into fixed-size blocks with
	// delta+varint doc ids and per-block max weights, enabling Block-Max
	// WAND pruning. The default trade-off.
	ProfileBalanced
	// ProfileCompact encodes doc ids with Elias-Fano and quantizes weights,
	// minimizing the memory footprint of cold or archival segments.
	ProfileCompact
)

// Profiles returns all selectable profiles in their canonical order.
func Profiles() []Profile {
	return []Profile{ProfileSpeed, ProfileBalanced, ProfileCompact}
}

// ParseProfile resolves a profile name. It reports false for names outside
// the closed set.
func ParseProfile(name string) (Profile, bool) {
	switch name {
	case "speed":
		return ProfileSpeed, true
	case "balanced":
		return ProfileBalanced, true
	case "compact":
		return ProfileCompact, true
	default:
		return 0, false
	}
}

// Valid reports whether p is one of the defined profiles.
func (p Profile) Valid() bool {
	return p >= ProfileSpeed && p <= ProfileCompact
}

// String returns the canonical profile name.
func (p Profile) String() string {
	switch p {
	case ProfileSpeed:
		return "speed"
	case ProfileBalanced:
		return "balanced"
	case ProfileCompact:
		return "compact"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(p))
	}
}

// MarshalText encodes the profile as its canonical name, which is how the
// manifest persists it.
func (p Profile) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid profile %d", uint8(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText decodes a profile from its canonical name.
func (p *Profile) UnmarshalText(text []byte) error {
	parsed, ok := ParseProfile(string(text))
	if !ok {
		return fmt.Errorf("unknown profile %q", text)
	}
	*p = parsed
	return nil
}
