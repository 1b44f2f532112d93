package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow(y int, m time.Month, d int) func() time.Time {
	return func() time.Time {
		return time.Date(y, m, d, 10, 30, 0, 0, time.Local)
	}
}

func TestNormalizeDate(t *testing.T) {
	n := &Normalizer{Now: fixedNow(2024, time.November, 20)}

	tests := []struct {
		name    string
		raw     string
		format  DateFormat
		want    string
		wantErr bool
	}{
		{name: "compact date", raw: "20240305", format: FormatCompact, want: "2024-03-05"},
		{name: "compact wrong length", raw: "2024031", format: FormatCompact, wantErr: true},
		{name: "compact with letters", raw: "2024O305", format: FormatCompact, wantErr: true},
		{name: "compact impossible day", raw: "20240230", format: FormatCompact, wantErr: true},
		{name: "compact leap day", raw: "20240229", format: FormatCompact, want: "2024-02-29"},
		{name: "slash single digits", raw: "2024/3/5", format: FormatSlash, want: "2024-03-05"},
		{name: "slash zero padded", raw: "2024/03/05", format: FormatSlash, want: "2024-03-05"},
		{name: "slash month 13", raw: "2024/13/1", format: FormatSlash, wantErr: true},
		{name: "slash with trailing text", raw: "2024/3/5 お知らせ", format: FormatSlash, wantErr: true},
		{name: "slash full-width digits", raw: "２０２４/３/５", format: FormatSlash, want: "2024-03-05"},
		{name: "iso passthrough", raw: "2024-12-14", format: FormatISO, want: "2024-12-14"},
		{name: "iso unpadded", raw: "2024-3-5", format: FormatISO, wantErr: true},
		{name: "iso impossible", raw: "2023-02-29", format: FormatISO, wantErr: true},
		{name: "month day uses current year", raw: "12月14日", format: FormatMonthDay, want: "2024-12-14"},
		{name: "month day earlier month stays in current year", raw: "1月11日", format: FormatMonthDay, want: "2024-01-11"},
		{name: "month day full width", raw: "１２月１４日", format: FormatMonthDay, want: "2024-12-14"},
		{name: "month day invalid", raw: "2月30日", format: FormatMonthDay, wantErr: true},
		{name: "empty", raw: "  ", format: FormatCompact, wantErr: true},
		{name: "unknown format", raw: "2024-01-01", format: DateFormat(42), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.NormalizeDate(tt.raw, tt.format)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidDate)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, IsValidDate(got))
		})
	}
}

func TestNormalizeDate_RollForward(t *testing.T) {
	n := &Normalizer{Now: fixedNow(2024, time.December, 1), RollForward: true}

	got, err := n.NormalizeDate("1月11日", FormatMonthDay)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-11", got)

	got, err = n.NormalizeDate("12月14日", FormatMonthDay)
	require.NoError(t, err)
	assert.Equal(t, "2024-12-14", got, "current month is not rolled")
}

func TestNormalizeDate_NilNormalizer(t *testing.T) {
	var n *Normalizer
	got, err := n.NormalizeDate("20240305", FormatCompact)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05", got)
}

func TestIsValidDate(t *testing.T) {
	assert.True(t, IsValidDate("2024-02-29"))
	assert.False(t, IsValidDate("2023-02-29"))
	assert.False(t, IsValidDate("2024-2-29"))
	assert.False(t, IsValidDate("20240229"))
	assert.False(t, IsValidDate(""))
}

func TestParseDate(t *testing.T) {
	got := ParseDate("2024-03-05", time.UTC)
	assert.Equal(t, time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC), got)
	assert.True(t, ParseDate("not a date", time.UTC).IsZero())
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "2024-03-05", FormatDate(2024, 3, 5))
	assert.Equal(t, "2024-12-14", FormatDate(2024, 12, 14))
}
