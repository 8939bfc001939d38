package versions

import (
	"testing"

	"github.com/Masterminds/semver/v3"

	"github.com/matzehuels/cratesls/pkg/registry"
)

func mustVersion(t *testing.T, s string) *semver.Version {
	t.Helper()
	v, err := semver.StrictNewVersion(s)
	if err != nil {
		t.Fatalf("bad test version %q: %v", s, err)
	}
	return v
}

func texts(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Text
	}
	return out
}

func TestCompletions(t *testing.T) {
	cases := []struct {
		latest string
		want   []string
	}{
		{"0.1.3", []string{"0.1.3", "0.1", "0"}},
		{"0.1.3-alpha", []string{"0.1.3-alpha", "0.1.3", "0.1", "0"}},
		{"1.0.210", []string{"1.0.210", "1.0", "1"}},
		{"2.0.0+build.5", []string{"2.0.0+build.5", "2.0.0", "2.0", "2"}},
	}
	for _, tc := range cases {
		got := texts(Completions(mustVersion(t, tc.latest)))
		if len(got) != len(tc.want) {
			t.Errorf("Completions(%s) = %v, want %v", tc.latest, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("Completions(%s)[%d] = %s, want %s", tc.latest, i, got[i], tc.want[i])
			}
		}
	}
}

func TestCompletions_Granularities(t *testing.T) {
	cs := Completions(mustVersion(t, "0.1.3-alpha"))
	want := []string{"latest", "patch", "minor", "major"}
	for i, g := range want {
		if cs[i].Granularity != g {
			t.Errorf("candidate %d granularity = %s, want %s", i, cs[i].Granularity, g)
		}
	}
}

func TestIsOutdated(t *testing.T) {
	latest := mustVersion(t, "1.0.210")
	cases := []struct {
		req  string
		want bool
	}{
		{"1.0.210", false},
		{"=1.0.210", false},
		{"^1.0.210", false},
		{"1.0.0", true},
		{"1.0", true},
		{"0.9", true},
		{"", true},
		{"*", true},
		{">=1.0, <2.0", true},
		{"not a version", true},
	}
	for _, tc := range cases {
		if got := IsOutdated(tc.req, latest); got != tc.want {
			t.Errorf("IsOutdated(%q, 1.0.210) = %v, want %v", tc.req, got, tc.want)
		}
	}
}

func TestIsOutdated_PartialNamesLatest(t *testing.T) {
	// "1.0" literally names 1.0.0; when that is the latest it isn't outdated.
	if IsOutdated("1.0", mustVersion(t, "1.0.0")) {
		t.Error("requirement naming the latest version must not be outdated")
	}
}

func TestFeatureCompletions(t *testing.T) {
	v := &registry.Version{
		Features: []registry.Feature{
			{Name: "alloc"},
			{Name: "derive", Enables: []string{"serde_derive"}},
			{Name: "std"},
		},
	}

	got := FeatureCompletions(v, []string{"derive"})
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %+v", got)
	}
	if got[0].Name != "alloc" || got[1].Name != "std" {
		t.Errorf("wrong candidates or order: %+v", got)
	}

	if got := FeatureCompletions(v, nil); len(got) != 3 {
		t.Errorf("no enabled features should return everything, got %+v", got)
	}

	if got := FeatureCompletions(v, []string{"alloc", "derive", "std"}); len(got) != 0 {
		t.Errorf("fully enabled should return nothing, got %+v", got)
	}
}
