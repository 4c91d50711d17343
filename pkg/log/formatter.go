// Copyright (C) 2023  mvfst authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package log

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// LogPrefix is a fixed string printed at the beginning of each line
// with DaemonFormatter. Set it as a build time variable to help debug
// the program.
var LogPrefix = ""

// DaemonFormatter prints log entries as
// `time level msg key=value ...` with the user fields sorted by key.
type DaemonFormatter struct {
	NoTimestamp bool
}

func (f *DaemonFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	userKeys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		userKeys = append(userKeys, k)
	}
	sort.Strings(userKeys)

	orderedKeys := make([]string, 0, 3+len(userKeys))
	if !f.NoTimestamp {
		orderedKeys = append(orderedKeys, logrus.FieldKeyTime)
	}
	orderedKeys = append(orderedKeys, logrus.FieldKeyLevel)
	orderedKeys = append(orderedKeys, logrus.FieldKeyMsg)
	orderedKeys = append(orderedKeys, userKeys...)

	var buf *bytes.Buffer
	if entry.Buffer != nil {
		buf = entry.Buffer
	} else {
		buf = &bytes.Buffer{}
	}

	buf.WriteString(LogPrefix)
	for _, key := range orderedKeys {
		var value string
		switch key {
		case logrus.FieldKeyTime:
			value = entry.Time.Format(time.RFC3339)
		case logrus.FieldKeyLevel:
			value = strings.ToUpper(entry.Level.String())
		case logrus.FieldKeyMsg:
			value = entry.Message
		default:
			value = fmt.Sprintf("%v=%v", key, entry.Data[key])
		}

		if buf.Len() > 0 {
			// Add a space to separate from the previous field.
			buf.WriteString(" ")
		}
		buf.WriteString(value)
	}
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

// NilFormatter prints no log. It disables logging.
type NilFormatter struct{}

func (f *NilFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return []byte{}, nil
}
