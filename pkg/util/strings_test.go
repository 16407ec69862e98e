package util

import "testing"

func TestParseIntDefault(t *testing.T) {
    cases := []struct {
        in   string
        def  int
        want int
    }{
        {"", 20, 20},
        {"7", 20, 7},
        {"-3", 20, -3},
        {"abc", 20, 20},
        {"1.5", 20, 20},
    }
    for _, c := range cases {
        if got := ParseIntDefault(c.in, c.def); got != c.want {
            t.Errorf("ParseIntDefault(%q, %d) = %d, want %d", c.in, c.def, got, c.want)
        }
    }
}
