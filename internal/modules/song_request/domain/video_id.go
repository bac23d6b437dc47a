package domain

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	bvPattern       = regexp.MustCompile(`^BV[A-Za-z0-9]{10}$`)
	avPattern       = regexp.MustCompile(`^av\d+$`)
	bvPartSuffix    = regexp.MustCompile(`^(BV[A-Za-z0-9]{10})_p(\d+)$`)
	bvPartQueryForm = regexp.MustCompile(`^(BV[A-Za-z0-9]{10}).*?\?p=(\d+)$`)
)

// IsVideoID reports whether s is a bare av or BV video id.
func IsVideoID(s string) bool {
	return bvPattern.MatchString(s) || avPattern.MatchString(s)
}

// ParseVideoRef recognizes a video request. Accepted forms are:
//
//	av170001
//	BV1xx411c7mu
//	BV1xx411c7mu_p3
//	BV1xx411c7mu?p=3
//
// A part number of zero means "no part".
func ParseVideoRef(text string) (VideoRef, bool) {
	s := strings.TrimSpace(text)

	for _, re := range []*regexp.Regexp{bvPartSuffix, bvPartQueryForm} {
		if m := re.FindStringSubmatch(s); m != nil {
			part, err := strconv.Atoi(m[2])
			if err != nil {
				return VideoRef{}, false
			}
			return VideoRef{VideoID: m[1], PartNumber: part}, true
		}
	}

	if IsVideoID(s) {
		return VideoRef{VideoID: s}, true
	}

	return VideoRef{}, false
}
