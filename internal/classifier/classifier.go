// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamstat-engine

// Package classifier maps a raw user-agent string to one of a fixed set of
// classes. It is a pure function with no state and no I/O: the same input
// always produces the same output.
package classifier

import "strings"

// Class is one of the fixed user-agent classes this engine counts.
type Class string

const (
	ClassAndroid         Class = "android"
	ClassIOS             Class = "ios"
	ClassTV              Class = "tv"
	ClassSTB             Class = "stb"
	ClassStreamingServer Class = "streaming_server"
	ClassDesktop         Class = "desktop"
	ClassOther           Class = "other"
)

// rule is one ordered entry in the classification table. The first rule
// whose substrings match wins.
type rule struct {
	class      Class
	substrings []string
}

// rules is ordered; stb must precede tv because many set-top-box user
// agents also contain "tv".
var rules = []rule{
	{ClassStreamingServer, []string{"lavf", "ffmpeg", "gstreamer", "curl", "wget", "okhttp"}},
	{ClassSTB, []string{"stb", "mag", "aura", "dune", "infomir"}},
	{ClassTV, []string{"smart-tv", "smarttv", "hbbtv", "webos", "tizen", "appletv"}},
	{ClassAndroid, []string{"android"}},
	{ClassIOS, []string{"iphone", "ipad", "ios", "cfnetwork", "darwin"}},
	{ClassDesktop, []string{"windows", "macintosh", "linux", "x11"}},
}

// Classify maps a raw user-agent string to a Class. Matching is
// case-insensitive substring matching against an ordered rule list;
// the first matching rule wins. An empty or unrecognized user agent
// classifies as ClassOther.
func Classify(userAgent string) Class {
	if userAgent == "" {
		return ClassOther
	}
	lowered := strings.ToLower(userAgent)
	for _, r := range rules {
		for _, sub := range r.substrings {
			if strings.Contains(lowered, sub) {
				return r.class
			}
		}
	}
	return ClassOther
}

// AllClasses returns every class the classifier can produce, in no
// particular order, for callers that need to pre-seed per-class counters.
func AllClasses() []Class {
	return []Class{
		ClassAndroid, ClassIOS, ClassTV, ClassSTB,
		ClassStreamingServer, ClassDesktop, ClassOther,
	}
}
