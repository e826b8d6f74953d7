package config

import "regexp"

// Callout markers (`// <<N>>`) arrive HTML-escaped in highlighted output.
var RegexCallout = regexp.MustCompile(`//\s*&lt;&lt;(\d+)&gt;&gt;`)
