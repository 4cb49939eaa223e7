package util

import (
	"os"
	"regexp"
)

var (
	expand_regex = regexp.MustCompile("%([a-zA-Z_0-9]+)%")
)

// ExpandEnv 展开 $VAR, ${VAR} 以及Windows风格的 %VAR% 环境变量.
func ExpandEnv(v string) string {
	v = expand_regex.ReplaceAllString(v, "$${$1}")
	return os.Expand(v, getenv)
}

func getenv(v string) string {
	switch v {
	case "$":
		return "$"
	}
	return os.Getenv(v)
}
