package phone

import "testing"

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"formatted mobile", "(86) 99805-3279", "5586998053279"},
		{"bare mobile", "86998053279", "5586998053279"},
		{"already prefixed", "5586998053279", "5586998053279"},
		{"spurious extra nine", "55869981053014", "5586981053014"},
		{"landline", "8632219999", "558632219999"},
		{"landline with prefix", "558632219999", "558632219999"},
		{"spaces and dots", "55 86 9.9805-3279", "5586998053279"},
		{"fourteen digits no nine", "55868881053014", "55868881053014"},
		{"short input passes through", "9999", "559999"},
		{"empty", "", ""},
		{"no digits", "abc-", ""},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Normalize(tc.in, "")
			if got != tc.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeCustomPrefix(t *testing.T) {
	t.Parallel()

	got := Normalize("(86) 99805-3279", "54")
	if got != "5486998053279" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizeCorrectsExactlyOneDigit(t *testing.T) {
	t.Parallel()

	in := "55869981053014"
	got := Normalize(in, "")
	if len(got) != len(in)-1 {
		t.Fatalf("want one digit removed, got %q from %q", got, in)
	}
	if got != "5586981053014" {
		t.Fatalf("got %q", got)
	}
}
