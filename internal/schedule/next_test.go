package schedule

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNextWeeklyUpcomingOccurrence(t *testing.T) {
	t.Parallel()

	// Wednesday reference: the upcoming Monday must be five days out, not twelve.
	ref := time.Date(2025, time.March, 12, 9, 30, 0, 0, time.UTC)
	next, err := Next(Weekly(time.Monday), ref)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	want := time.Date(2025, time.March, 17, 12, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next = %s, want %s", next, want)
	}
}

func TestNextWeeklyNeverAtOrBeforeReference(t *testing.T) {
	t.Parallel()

	for day := time.Sunday; day <= time.Saturday; day++ {
		ref := time.Date(2025, time.March, 9, 0, 0, 0, 0, time.UTC)
		for i := 0; i < 14; i++ {
			next, err := Next(Weekly(day), ref)
			if err != nil {
				t.Fatalf("next(%s): %v", day, err)
			}
			if !next.After(ref) {
				t.Fatalf("next(%s) = %s not after ref %s", day, next, ref)
			}
			ref = ref.Add(13 * time.Hour)
		}
	}
}

func TestNextWeeklySuccessiveOccurrencesSevenDaysApart(t *testing.T) {
	t.Parallel()

	desc := Weekly(time.Thursday)
	occurrence, err := Next(desc, time.Date(2025, time.July, 1, 8, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("first occurrence: %v", err)
	}
	for i := 0; i < 8; i++ {
		following, err := Next(desc, occurrence)
		if err != nil {
			t.Fatalf("occurrence %d: %v", i, err)
		}
		if got := following.Sub(occurrence); got != 7*24*time.Hour {
			t.Fatalf("occurrence %d: spacing = %s, want 168h", i, got)
		}
		occurrence = following
	}
}

func TestNextPeriodicExactInterval(t *testing.T) {
	t.Parallel()

	ref := time.Date(2025, time.May, 2, 17, 45, 0, 0, time.UTC)
	next, err := Next(Periodic(3), ref)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if want := ref.AddDate(0, 0, 3); !next.Equal(want) {
		t.Fatalf("next = %s, want %s", next, want)
	}

	// Successive executions stay exactly N days apart.
	desc := Periodic(11)
	occurrence := ref
	for i := 0; i < 5; i++ {
		following, err := Next(desc, occurrence)
		if err != nil {
			t.Fatalf("occurrence %d: %v", i, err)
		}
		if got := following.Sub(occurrence); got != 11*24*time.Hour {
			t.Fatalf("occurrence %d: spacing = %s", i, got)
		}
		occurrence = following
	}
}

func TestNextOneTimeReturnsStoredTimestamp(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, time.December, 25, 12, 0, 0, 0, time.UTC)
	next, err := Next(OneTime(at), time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if !next.Equal(at) {
		t.Fatalf("one-time schedule must be returned verbatim, got %s", next)
	}
}

func TestDescriptorJSONRoundTrip(t *testing.T) {
	t.Parallel()

	for _, desc := range []Descriptor{
		Weekly(time.Monday),
		Periodic(7),
		OneTime(time.Date(2025, time.December, 25, 12, 0, 0, 0, time.UTC)),
	} {
		encoded, err := json.Marshal(desc)
		if err != nil {
			t.Fatalf("marshal %+v: %v", desc, err)
		}
		var decoded Descriptor
		if err := json.Unmarshal(encoded, &decoded); err != nil {
			t.Fatalf("unmarshal %s: %v", encoded, err)
		}
		if decoded.Kind != desc.Kind || decoded.Weekday != desc.Weekday || decoded.EveryDays != desc.EveryDays || !decoded.At.Equal(desc.At) {
			t.Fatalf("round trip mismatch: %+v != %+v", decoded, desc)
		}
	}
}
