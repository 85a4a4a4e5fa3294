package cleaner

import (
	"errors"
	"testing"
)

func TestDecode(t *testing.T) {
	cases := []struct {
		name string
		raw  []byte
		want string
		err  error
	}{
		{name: "plain utf-8", raw: []byte("1,a\n2,b"), want: "1,a\n2,b"},
		{name: "utf-8 bom stripped", raw: append([]byte{0xEF, 0xBB, 0xBF}, "1,é"...), want: "1,é"},
		{name: "utf-16le bom", raw: []byte{0xFF, 0xFE, '1', 0x00, ',', 0x00, 'a', 0x00}, want: "1,a"},
		{name: "empty", raw: nil, want: ""},
		{name: "invalid sequence", raw: []byte{'1', ',', 0xC3, 0x28}, err: ErrUndecodable},
		{name: "invalid after bom", raw: []byte{0xEF, 0xBB, 0xBF, 0xC3, 0x28}, err: ErrUndecodable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode(tc.raw)
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Fatalf("err = %v, want %v", err, tc.err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Fatalf("Decode = %q, want %q", got, tc.want)
			}
		})
	}
}
