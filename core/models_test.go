package core

import (
	"testing"
)

func TestContentChecksum(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{
			name: "same bytes produce same checksum",
			data: []byte("image bytes"),
		},
		{
			name: "empty input",
			data: nil,
		},
		{
			name: "binary content",
			data: []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum1 := ContentChecksum(tt.data)
			sum2 := ContentChecksum(tt.data)

			if sum1 != sum2 {
				t.Errorf("ContentChecksum() produced different digests for same bytes: %s vs %s", sum1, sum2)
			}
			if len(sum1) != 16 {
				t.Errorf("ContentChecksum() length = %d, want 16 hex characters", len(sum1))
			}
		})
	}
}

func TestContentChecksum_Different(t *testing.T) {
	sum1 := ContentChecksum([]byte("photo one"))
	sum2 := ContentChecksum([]byte("photo two"))

	if sum1 == sum2 {
		t.Errorf("ContentChecksum() produced same digest for different bytes")
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ID
		wantErr bool
	}{
		{
			name:  "simple id",
			input: "42",
			want:  42,
		},
		{
			name:  "zero",
			input: "0",
			want:  0,
		},
		{
			name:  "large id",
			input: "18446744073709551615",
			want:  ID(18446744073709551615),
		},
		{
			name:    "negative",
			input:   "-1",
			wantErr: true,
		},
		{
			name:    "not a number",
			input:   "abc",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseID(tt.input)

			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseID(%q) error = nil, want error", tt.input)
				}
				return
			}

			if err != nil {
				t.Errorf("ParseID(%q) error = %v, want nil", tt.input, err)
				return
			}

			if got != tt.want {
				t.Errorf("ParseID(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestIDString(t *testing.T) {
	tests := []struct {
		name string
		id   ID
		want string
	}{
		{name: "zero", id: 0, want: "0"},
		{name: "small", id: 7, want: "7"},
		{name: "round trip", id: 123456789, want: "123456789"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.id.String(); got != tt.want {
				t.Errorf("ID.String() = %q, want %q", got, tt.want)
			}

			back, err := ParseID(tt.want)
			if err != nil {
				t.Errorf("ParseID(%q) error = %v", tt.want, err)
				return
			}
			if back != tt.id {
				t.Errorf("ParseID(ID.String()) = %d, want %d", back, tt.id)
			}
		})
	}
}
