package version

import "testing"

func TestCurrent(t *testing.T) {
	old, oldCommit := Version, Commit
	defer func() { Version, Commit = old, oldCommit }()

	Version, Commit = "1.2.3", "abc123"
	info := Current()
	if info.Version != "1.2.3" || info.Commit != "abc123" {
		t.Fatalf("info = %+v", info)
	}
	if got := info.String(); got != "haulroster 1.2.3 (abc123)" {
		t.Fatalf("String() = %q", got)
	}
}
