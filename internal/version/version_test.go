package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetBuildInfoFillsRuntimeFields(t *testing.T) {
	info := GetBuildInfo()
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Contains(t, info.Platform, runtime.GOOS)
	assert.Contains(t, info.Platform, runtime.GOARCH)
}

func TestGetVersionInfoOmitsUnknownFields(t *testing.T) {
	s := GetVersionInfo()
	assert.Contains(t, s, "pendulumd version")
	assert.NotContains(t, s, "commit unknown")
	assert.NotContains(t, s, "on branch unknown")
}

func TestGetVersionInfoIncludesCommitWhenSet(t *testing.T) {
	orig := GitCommit
	GitCommit = "abcdef1234567"
	defer func() { GitCommit = orig }()

	s := GetVersionInfo()
	assert.Contains(t, s, "commit abcdef1")
}
