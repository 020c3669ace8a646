// pkg/version/version_test.go
package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestInfo_ReturnsFormattedString(t *testing.T) {
	info := Info()

	for _, want := range []string{"netscout", Version, Commit, BuildDate} {
		if !strings.Contains(info, want) {
			t.Errorf("Expected info to contain %q, got: %s", want, info)
		}
	}
}

func TestGet_ReturnsCorrectStruct(t *testing.T) {
	v := Get()

	if v.Version != Version || v.Commit != Commit || v.BuildDate != BuildDate {
		t.Errorf("unexpected version struct: %+v", v)
	}
	if v.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %s, want %s", v.GoVersion, runtime.Version())
	}
	if v.Platform != runtime.GOOS+"/"+runtime.GOARCH {
		t.Errorf("Platform = %s", v.Platform)
	}
}
