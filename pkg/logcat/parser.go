/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package logcat parses raw `adb logcat` output lines into structured
// log records.
package logcat

import (
	"regexp"
	"strings"
	"time"

	"github.com/carverauto/logstream/pkg/models"
)

// timePattern matches `-v time` output: an optional MM-DD date, a
// millisecond timestamp, then `L/tag(pid): message`.
var timePattern = regexp.MustCompile(
	`^(?:(\d{2}-\d{2})\s+)?(\d{2}:\d{2}:\d{2}\.\d{3})\s+([A-Z])/(.*?)\(\s*\d+\):\s?(.*)$`)

// threadtimePattern matches `-v threadtime` output:
// MM-DD HH:MM:SS.mmm PID TID L tag: message.
var threadtimePattern = regexp.MustCompile(
	`^(\d{2}-\d{2})\s+(\d{2}:\d{2}:\d{2}\.\d{3})\s+\d+\s+\d+\s+([A-Z])\s+(\S+)\s*:\s*(.*)$`)

// unityTagPattern extracts a `[Tag]` token Unity embeds in messages.
var unityTagPattern = regexp.MustCompile(`\[([^\]]+)\]`)

// playtimePattern filters out bracket tokens that are actually playtime
// displays ("2h 15m"), not tags.
var playtimePattern = regexp.MustCompile(`^\d+hs?\s+\d+m`)

// colorTagPattern matches Unity rich-text color markup.
var colorTagPattern = regexp.MustCompile(`<color=[^>]+>([^<]*)</color>`)

// Parser turns capture-process output lines into log records. It holds no
// state beyond an injectable clock used for timestamp fallback.
type Parser struct {
	now func() time.Time
}

func NewParser() *Parser {
	return &Parser{now: time.Now}
}

// Parse parses one raw line for the given device. The second return value
// is false for lines that are not log lines (banners, continuations,
// blank lines); such lines are skipped, never an error.
func (p *Parser) Parse(deviceID, line string) (models.LogRecord, bool) {
	line = strings.TrimRight(line, "\r\n")
	trimmed := strings.TrimSpace(line)

	if trimmed == "" {
		return models.LogRecord{}, false
	}

	date, clock, code, tag, message, ok := matchPrefix(trimmed)
	if !ok {
		return models.LogRecord{}, false
	}

	tag = strings.TrimSpace(tag)

	// A bracketed Unity tag inside the message overrides the logcat tag,
	// unless the bracket token is a playtime display.
	if m := unityTagPattern.FindStringSubmatch(message); m != nil {
		if !playtimePattern.MatchString(m[1]) {
			tag = m[1]
		}
	}

	message = colorTagPattern.ReplaceAllString(message, "$1")

	return models.LogRecord{
		DeviceID:  deviceID,
		Timestamp: p.parseTimestamp(date, clock),
		Severity:  severityFromCode(code),
		Tag:       tag,
		Message:   message,
		Category:  Categorize(tag, message),
		Raw:       trimmed,
	}, true
}

func matchPrefix(line string) (date, clock string, code byte, tag, message string, ok bool) {
	if m := timePattern.FindStringSubmatch(line); m != nil {
		return m[1], m[2], m[3][0], m[4], m[5], true
	}

	if m := threadtimePattern.FindStringSubmatch(line); m != nil {
		return m[1], m[2], m[3][0], m[4], m[5], true
	}

	return "", "", 0, "", "", false
}

// parseTimestamp combines the source-reported date and clock with the
// current year. Unparsable timestamps fall back to the arrival time.
func (p *Parser) parseTimestamp(date, clock string) time.Time {
	arrival := p.now()

	if date == "" {
		ts, err := time.ParseInLocation("15:04:05.000", clock, arrival.Location())
		if err != nil {
			return arrival
		}

		return time.Date(arrival.Year(), arrival.Month(), arrival.Day(),
			ts.Hour(), ts.Minute(), ts.Second(), ts.Nanosecond(), arrival.Location())
	}

	ts, err := time.ParseInLocation("01-02 15:04:05.000", date+" "+clock, arrival.Location())
	if err != nil {
		return arrival
	}

	return ts.AddDate(arrival.Year(), 0, 0)
}

// severityFromCode maps a logcat level code to the severity enum. Codes
// outside the five tracked levels (F, S, anything malformed) land in the
// lowest-priority bucket rather than failing the line.
func severityFromCode(code byte) models.Severity {
	switch code {
	case 'V':
		return models.SeverityVerbose
	case 'D':
		return models.SeverityDebug
	case 'I':
		return models.SeverityInfo
	case 'W':
		return models.SeverityWarning
	case 'E':
		return models.SeverityError
	default:
		return models.SeverityVerbose
	}
}
