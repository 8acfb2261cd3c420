package main

import "testing"

func TestBuildInfo(t *testing.T) {
	defer func(v string) { Version = v }(Version)

	tests := []struct {
		version    string
		want       string
		release    bool
		prerelease string
	}{
		{"dev", "dev", false, ""},
		{"v1.2.3", "1.2.3", true, ""},
		{"1.2", "1.2.0", true, ""},
		{" 2.0.0-rc.1 ", "2.0.0-rc.1", false, "rc.1"},
	}
	for _, tt := range tests {
		Version = tt.version
		info := buildInfo()
		if info.Version != tt.want || info.Release != tt.release || info.Prerelease != tt.prerelease {
			t.Errorf("buildInfo() for %q = %+v, want version %q release %v prerelease %q",
				tt.version, info, tt.want, tt.release, tt.prerelease)
		}
	}
}
