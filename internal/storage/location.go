package storage

import (
	"errors"
	"fmt"
	"strings"
)

// Static errors for location parsing.
var (
	// ErrInvalidLocation is returned when a location string cannot be parsed.
	ErrInvalidLocation = errors.New("storage: invalid location")
)

// Kind distinguishes prefix (directory-like) locations from exact object
// paths. It is an explicit field rather than a trailing-separator heuristic
// so callers state their intent once, at parse time.
type Kind int

const (
	// KindObject is an exact object path.
	KindObject Kind = iota
	// KindPrefix is a directory-like location searched recursively.
	KindPrefix
)

func (k Kind) String() string {
	if k == KindPrefix {
		return "prefix"
	}
	return "object"
}

// Location identifies a remote object or prefix inside a bucket.
type Location struct {
	Scheme string
	Bucket string
	Key    string
	Kind   Kind
}

// Parse parses a "scheme://bucket/key" location string. A trailing path
// separator marks the location as a prefix; the separator itself is not
// kept in the key. A bucket with no key is a prefix covering the whole
// bucket.
func Parse(raw string) (Location, error) {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok || scheme == "" || rest == "" {
		return Location{}, fmt.Errorf("%w: %q", ErrInvalidLocation, raw)
	}

	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return Location{}, fmt.Errorf("%w: %q has no bucket", ErrInvalidLocation, raw)
	}

	kind := KindObject
	if key == "" || strings.HasSuffix(key, "/") {
		kind = KindPrefix
	}

	return Location{
		Scheme: scheme,
		Bucket: bucket,
		Key:    strings.TrimSuffix(key, "/"),
		Kind:   kind,
	}, nil
}

// String renders the location back to its URI form. Prefix locations keep
// their trailing separator.
func (l Location) String() string {
	s := fmt.Sprintf("%s://%s", l.Scheme, l.Bucket)
	if l.Key != "" {
		s += "/" + l.Key
	}
	if l.Kind == KindPrefix {
		s += "/"
	}
	return s
}

// IsZero reports whether the location is unset.
func (l Location) IsZero() bool {
	return l.Bucket == ""
}

// Join returns the object location for a child name under a prefix.
func (l Location) Join(name string) Location {
	key := strings.TrimPrefix(name, "/")
	if l.Key != "" {
		key = l.Key + "/" + key
	}
	return Location{
		Scheme: l.Scheme,
		Bucket: l.Bucket,
		Key:    key,
		Kind:   KindObject,
	}
}

// Parent returns the containing prefix of an object location. For a prefix
// location it returns the location itself.
func (l Location) Parent() Location {
	if l.Kind == KindPrefix {
		return l
	}
	key := ""
	if idx := strings.LastIndex(l.Key, "/"); idx >= 0 {
		key = l.Key[:idx]
	}
	return Location{
		Scheme: l.Scheme,
		Bucket: l.Bucket,
		Key:    key,
		Kind:   KindPrefix,
	}
}
