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
	"testing"

	"github.com/sirupsen/logrus"
)

func TestDaemonFormatter(t *testing.T) {
	formatter := &DaemonFormatter{NoTimestamp: true}
	entry := &logrus.Entry{
		Level:   logrus.InfoLevel,
		Message: "the quick brown fox",
		Data: Fields{
			"b": 2,
			"a": 1,
		},
	}
	out, err := formatter.Format(entry)
	if err != nil {
		t.Fatalf("Format() failed: %v", err)
	}
	got := string(out)
	want := "INFO the quick brown fox a=1 b=2\n"
	if got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}
}

func TestNilFormatter(t *testing.T) {
	formatter := &NilFormatter{}
	entry := &logrus.Entry{
		Level:   logrus.ErrorLevel,
		Message: "jumps over the lazy dog",
	}
	out, err := formatter.Format(entry)
	if err != nil {
		t.Fatalf("Format() failed: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("Format() = %q, want empty", string(out))
	}
}

func TestSetLevel(t *testing.T) {
	defer func() {
		if err := SetLevel("INFO"); err != nil {
			t.Fatalf("SetLevel(INFO) failed: %v", err)
		}
	}()
	if err := SetLevel("TRACE"); err != nil {
		t.Fatalf("SetLevel(TRACE) failed: %v", err)
	}
	if !IsLevelEnabled(TraceLevel) {
		t.Errorf("IsLevelEnabled(TraceLevel) = false, want true")
	}
	if err := SetLevel("not a level"); err == nil {
		t.Errorf("SetLevel(invalid) returned no error")
	}
}
