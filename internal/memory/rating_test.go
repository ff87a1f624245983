package memory

import (
	"errors"
	"testing"
)

func TestParseRating(t *testing.T) {
	testCases := []struct {
		input   string
		want    Rating
		wantErr bool
	}{
		{input: "again", want: Again},
		{input: "Hard", want: Hard},
		{input: " GOOD ", want: Good},
		{input: "4", want: Easy},
		{input: "1", want: Again},
		{input: "0", wantErr: true},
		{input: "5", wantErr: true},
		{input: "meh", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseRating(tc.input)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidRating) {
					t.Fatalf("Expected ErrInvalidRating, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRating(%q) returned an unexpected error: %v", tc.input, err)
			}
			if got != tc.want {
				t.Errorf("ParseRating(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestRatingString(t *testing.T) {
	if Good.String() != "Good" {
		t.Errorf("Expected 'Good', got '%s'", Good.String())
	}
	if Rating(9).String() != "Rating(9)" {
		t.Errorf("Expected 'Rating(9)', got '%s'", Rating(9).String())
	}
	if _, err := Rating(0).MarshalText(); err == nil {
		t.Error("Expected MarshalText to reject an invalid rating")
	}
}
