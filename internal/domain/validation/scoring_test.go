package validation

import "testing"

func TestDeterminePointStatus(t *testing.T) {
	cases := []struct {
		name      string
		declared  string
		measured  string
		tolerance string
		want      PointStatus
	}{
		{name: "within tolerance", declared: "100", measured: "104", tolerance: "5", want: PointValidated},
		{name: "exact boundary", declared: "100", measured: "95", tolerance: "5", want: PointValidated},
		{name: "remarks band", declared: "100", measured: "106", tolerance: "5", want: PointValidatedWithRemarks},
		{name: "remarks boundary", declared: "100", measured: "107.5", tolerance: "5", want: PointValidatedWithRemarks},
		{name: "rejected", declared: "100", measured: "108", tolerance: "5", want: PointRejected},
		{name: "default tolerance", declared: "100", measured: "104", want: PointValidated},
		{name: "custom tolerance", declared: "100", measured: "115", tolerance: "10", want: PointValidatedWithRemarks},
		{name: "missing measured", declared: "100", measured: "", want: PointNotTested},
		{name: "missing declared", declared: " ", measured: "10", want: PointNotTested},
		{name: "not a number", declared: "abc", measured: "10", want: PointError},
		{name: "declared zero", declared: "0", measured: "1", want: PointError},
		{name: "infinite", declared: "100", measured: "Inf", want: PointError},
		{name: "bad tolerance", declared: "100", measured: "100", tolerance: "x", want: PointError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeterminePointStatus(tc.declared, tc.measured, tc.tolerance); got != tc.want {
				t.Fatalf("DeterminePointStatus(%q, %q, %q) = %q, want %q", tc.declared, tc.measured, tc.tolerance, got, tc.want)
			}
		})
	}
}

func TestDetermineOverallStatus(t *testing.T) {
	cases := []struct {
		name string
		in   []PointStatus
		want ValidationStatus
	}{
		{name: "all validated", in: []PointStatus{PointValidated, PointValidated}, want: StatusValidated},
		{name: "rejected wins over remarks", in: []PointStatus{PointValidatedWithRemarks, PointRejected}, want: StatusRejected},
		{name: "remarks", in: []PointStatus{PointValidated, PointValidatedWithRemarks}, want: StatusValidatedWithRemarks},
		{name: "only untested", in: []PointStatus{PointNotTested, PointError}, want: StatusValidated},
		{name: "empty", in: nil, want: StatusValidated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetermineOverallStatus(tc.in); got != tc.want {
				t.Fatalf("DetermineOverallStatus(%v) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestComputeTrustScoreExample(t *testing.T) {
	statuses := []PointStatus{PointValidated, PointValidated, PointValidated, PointValidated}
	lab := &LabQuality{Rating: 4.8, AccreditationCount: 3}

	got := ComputeTrustScore(statuses, lab)
	if got.Score != 95.2 {
		t.Fatalf("ComputeTrustScore().Score = %v, want 95.2", got.Score)
	}
	if got.ValidationScore != 70 || got.AccreditationScore != 6 {
		t.Fatalf("ComputeTrustScore() parts = %+v", got)
	}

	partial := ComputeTrustScore([]PointStatus{PointValidated, PointValidated, PointValidated, PointValidatedWithRemarks}, lab)
	if partial.Score != 77.7 {
		t.Fatalf("ComputeTrustScore(one remark).Score = %v, want 77.7", partial.Score)
	}

	again := ComputeTrustScore(statuses, lab)
	if again != got {
		t.Fatalf("ComputeTrustScore() not deterministic: %+v vs %+v", got, again)
	}
}

func TestComputeTrustScoreEdgeCases(t *testing.T) {
	if got := ComputeTrustScore(nil, &LabQuality{Rating: 5, AccreditationCount: 9}); got != (TrustScore{}) {
		t.Fatalf("ComputeTrustScore(no results) = %+v", got)
	}

	noLab := ComputeTrustScore([]PointStatus{PointValidated, PointRejected}, nil)
	if noLab.Score != 35 || noLab.LabScore != 0 || noLab.AccreditationScore != 0 {
		t.Fatalf("ComputeTrustScore(no lab) = %+v", noLab)
	}

	capped := ComputeTrustScore([]PointStatus{PointValidated}, &LabQuality{Rating: 5, AccreditationCount: 8})
	if capped.Score != 100 {
		t.Fatalf("ComputeTrustScore(max) = %+v", capped)
	}
}

func TestTrustScoreComponents(t *testing.T) {
	c := TrustScore{Score: 80}.Components()
	if c.ValidationScore != 56 || c.LabQuality != 16 || c.Accreditations != 8 {
		t.Fatalf("Components() = %+v", c)
	}
}
