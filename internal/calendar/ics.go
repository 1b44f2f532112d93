// Package calendar exports events as iCalendar (RFC 5545) all-day entries.
package calendar

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pfrederiksen/wako-events/internal/event"
)

const (
	prodID    = "-//wako-events//wako-events//JA"
	uidDomain = "wako-events"
	// maxLineOctets is the RFC 5545 line length limit, excluding CRLF.
	maxLineOctets = 75
)

// GenerateICS generates an iCalendar (.ics) file holding every event.
// Events whose date is not a calendar date are skipped.
func GenerateICS(events []event.Event, now time.Time) string {
	var ics strings.Builder

	writeHeader(&ics)
	for i := range events {
		writeEvent(&ics, &events[i], now)
	}
	ics.WriteString("END:VCALENDAR\r\n")

	return ics.String()
}

// GenerateEventICS generates an iCalendar (.ics) file for a single event.
func GenerateEventICS(evt *event.Event, now time.Time) string {
	return GenerateICS([]event.Event{*evt}, now)
}

func writeHeader(ics *strings.Builder) {
	ics.WriteString("BEGIN:VCALENDAR\r\n")
	ics.WriteString("VERSION:2.0\r\n")
	ics.WriteString("PRODID:" + prodID + "\r\n")
	ics.WriteString("CALSCALE:GREGORIAN\r\n")
	ics.WriteString("METHOD:PUBLISH\r\n")
	writeLine(ics, "X-WR-CALNAME:"+escapeICS("和光市イベント"))
	ics.WriteString("X-WR-TIMEZONE:Asia/Tokyo\r\n")
}

func writeEvent(ics *strings.Builder, evt *event.Event, now time.Time) {
	start := event.ParseDate(evt.Date, time.UTC)
	if start.IsZero() {
		return
	}
	// All-day events end on the following day, exclusive.
	end := start.AddDate(0, 0, 1)

	ics.WriteString("BEGIN:VEVENT\r\n")
	ics.WriteString(fmt.Sprintf("UID:%s@%s\r\n", evt.ID(), uidDomain))
	ics.WriteString(fmt.Sprintf("DTSTAMP:%s\r\n", formatICSTime(now)))
	ics.WriteString(fmt.Sprintf("DTSTART;VALUE=DATE:%s\r\n", formatICSDate(start)))
	ics.WriteString(fmt.Sprintf("DTEND;VALUE=DATE:%s\r\n", formatICSDate(end)))
	writeLine(ics, "SUMMARY:"+escapeICS(evt.Title))
	writeLine(ics, "DESCRIPTION:"+escapeICS(description(evt)))

	if len(evt.Categories) > 0 {
		escaped := make([]string, len(evt.Categories))
		for i, c := range evt.Categories {
			escaped[i] = escapeICS(c)
		}
		writeLine(ics, "CATEGORIES:"+strings.Join(escaped, ","))
	}

	if evt.URL != "" {
		writeLine(ics, "URL:"+evt.URL)
	}

	ics.WriteString("STATUS:CONFIRMED\r\n")
	ics.WriteString("SEQUENCE:0\r\n")
	// All-day listings should not block the day.
	ics.WriteString("TRANSP:TRANSPARENT\r\n")
	ics.WriteString("END:VEVENT\r\n")
}

func description(evt *event.Event) string {
	lines := []string{fmt.Sprintf("%s / %s", evt.Source, evt.Genre)}
	if len(evt.Categories) > 0 {
		lines = append(lines, strings.Join(evt.Categories, "・"))
	}
	if evt.URL != "" {
		lines = append(lines, evt.URL)
	}
	return strings.Join(lines, "\n")
}

// writeLine writes a content line folded at maxLineOctets without splitting
// a UTF-8 sequence.
func writeLine(ics *strings.Builder, line string) {
	limit := maxLineOctets
	for len(line) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		ics.WriteString(line[:cut])
		ics.WriteString("\r\n ")
		line = line[cut:]
		// Continuation lines start with a space, which counts.
		limit = maxLineOctets - 1
	}
	ics.WriteString(line)
	ics.WriteString("\r\n")
}

// formatICSTime formats a time.Time as an iCalendar datetime string
func formatICSTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

func formatICSDate(t time.Time) string {
	return t.Format("20060102")
}

// escapeICS escapes special characters for iCalendar format
func escapeICS(s string) string {
	// Replace special characters according to RFC 5545
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
