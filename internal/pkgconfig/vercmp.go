package pkgconfig

import (
	"fmt"

	"golang.org/x/mod/semver"
)

// Compare compares two version strings the way pkg-config does (rpmvercmp) and returns:
// -1 if a < b
//
//	0 if a == b
//	1 if a > b
//
// Versions are split into alternating numeric and alphabetic segments; every other
// character only separates segments. Numeric segments compare by value and win over
// alphabetic ones, and a version with segments left over is the newer one.
func Compare(a, b string) int {
	if a == b {
		return 0
	}
	s1, s2 := []byte(a), []byte(b)
	i, j := 0, 0

	for i < len(s1) && j < len(s2) {
		for i < len(s1) && !isAlnum(s1[i]) {
			i++
		}
		for j < len(s2) && !isAlnum(s2[j]) {
			j++
		}
		if i >= len(s1) || j >= len(s2) {
			break
		}

		start1, start2 := i, j
		isNum := isDigit(s1[i])
		if isNum {
			for i < len(s1) && isDigit(s1[i]) {
				i++
			}
			for j < len(s2) && isDigit(s2[j]) {
				j++
			}
		} else {
			for i < len(s1) && isAlpha(s1[i]) {
				i++
			}
			for j < len(s2) && isAlpha(s2[j]) {
				j++
			}
		}

		// segments of different types: numeric is newer
		if start2 == j {
			if isNum {
				return 1
			}
			return -1
		}

		seg1, seg2 := s1[start1:i], s2[start2:j]
		if isNum {
			seg1, seg2 = trimZeros(seg1), trimZeros(seg2)
			if len(seg1) != len(seg2) {
				if len(seg1) > len(seg2) {
					return 1
				}
				return -1
			}
		}
		if c := compareBytes(seg1, seg2); c != 0 {
			return c
		}
	}

	rest1, rest2 := i < len(s1), j < len(s2)
	switch {
	case !rest1 && !rest2:
		return 0
	case !rest1:
		return -1
	}
	return 1
}

// Range is an inclusive [Min, Max] version window.
type Range struct {
	Min string
	Max string
}

// NewRange validates that min and max are well-formed release versions with min <= max.
func NewRange(min, max string) (Range, error) {
	vmin, vmax := "v"+min, "v"+max
	if !semver.IsValid(vmin) || !semver.IsValid(vmax) {
		return Range{}, fmt.Errorf("invalid version bounds [%s, %s]", min, max)
	}
	if semver.Compare(vmin, vmax) > 0 {
		return Range{}, fmt.Errorf("minimum version %s exceeds maximum %s", min, max)
	}
	return Range{Min: min, Max: max}, nil
}

func mustRange(min, max string) Range {
	r, err := NewRange(min, max)
	if err != nil {
		panic(err)
	}
	return r
}

// Contains reports whether v lies within the range, inclusive at both ends.
func (r Range) Contains(v string) bool {
	return Compare(v, r.Min) >= 0 && Compare(v, r.Max) <= 0
}

func (r Range) String() string {
	return fmt.Sprintf("[%s, %s]", r.Min, r.Max)
}

func trimZeros(s []byte) []byte {
	for len(s) > 0 && s[0] == '0' {
		s = s[1:]
	}
	return s
}

func compareBytes(a, b []byte) int {
	for k := 0; k < len(a) && k < len(b); k++ {
		if a[k] != b[k] {
			if a[k] < b[k] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isAlnum(c byte) bool {
	return isDigit(c) || isAlpha(c)
}
