package split

import "testing"

func TestRenderName(t *testing.T) {
	cases := []struct {
		pattern, original string
		index             int
		ranges            []PageRange
		want              string
	}{
		{"", "report.pdf", 1, []PageRange{{1, 3}}, "report_part_1.pdf"},
		{"{original}_{range}", "report.pdf", 2, []PageRange{{4, 6}}, "report_4-6.pdf"},
		{"{original}_{index}_{range}", "a.pdf", 3, []PageRange{{7, 7}}, "a_3_7.pdf"},
		{"{index}", "", 4, nil, "4.pdf"},
		{"", "Report.PDF", 1, []PageRange{{1, 3}}, "Report_part_1.pdf"},
	}
	for _, c := range cases {
		got := RenderName(c.pattern, c.original, c.index, c.ranges)
		if got != c.want {
			t.Errorf("RenderName(%q,%q,%d): got %q want %q", c.pattern, c.original, c.index, got, c.want)
		}
	}
}

func TestSanitizeTitle(t *testing.T) {
	cases := map[string]string{
		"Chapter 1: The Beginning": "chapter_1_the_beginning",
		"  ---  ":                  "",
		"Résumé & Cover":           "r_sum_cover",
	}
	for in, want := range cases {
		if got := SanitizeTitle(in); got != want {
			t.Errorf("SanitizeTitle(%q) = %q, want %q", in, got, want)
		}
	}
}
