package ui

import (
	"testing"
	"time"
)

func TestClosesIn(t *testing.T) {
	tests := []struct {
		name string
		in   time.Duration
		want string
	}{
		{"already closed", -time.Minute, "0m"},
		{"minutes only", 12 * time.Minute, "12m"},
		{"hours and minutes", 3*time.Hour + 7*time.Minute, "3h07m"},
		{"exact hour", 2 * time.Hour, "2h00m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := closesIn(time.Now().Add(tt.in).Add(time.Second))
			if got != tt.want {
				t.Errorf("closesIn(+%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestThemeByName(t *testing.T) {
	if got := ThemeByName("Daylight").Name; got != "Daylight" {
		t.Fatalf("ThemeByName(Daylight).Name = %q", got)
	}
	if got := ThemeByName("Midnight").Name; got != "Midnight" {
		t.Fatalf("ThemeByName(Midnight).Name = %q", got)
	}
	if got := ThemeByName("nonsense").Name; got != "Midnight" {
		t.Fatalf("ThemeByName(nonsense).Name = %q, want the default Midnight", got)
	}
}

func TestNextThemeName_Cycles(t *testing.T) {
	if got := NextThemeName("Midnight"); got != "Daylight" {
		t.Fatalf("NextThemeName(Midnight) = %q, want Daylight", got)
	}
	if got := NextThemeName("Daylight"); got != "Midnight" {
		t.Fatalf("NextThemeName(Daylight) = %q, want Midnight", got)
	}
}
