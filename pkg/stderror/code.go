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

package stderror

import (
	"fmt"
)

var (
	ErrAlreadyExist    = fmt.Errorf("ALREADY EXIST")
	ErrEmpty           = fmt.Errorf("EMPTY")
	ErrFull            = fmt.Errorf("FULL")
	ErrInternal        = fmt.Errorf("INTERNAL")
	ErrInvalidArgument = fmt.Errorf("INVALID ARGUMENT")
	ErrNoEnoughData    = fmt.Errorf("NO ENOUGH DATA")
	ErrNotFound        = fmt.Errorf("NOT FOUND")
	ErrNotReady        = fmt.Errorf("NOT READY")
	ErrOutOfRange      = fmt.Errorf("OUT OF RANGE")
	ErrTimeout         = fmt.Errorf("TIMEOUT")
	ErrUnsupported     = fmt.Errorf("UNSUPPORTED")
)
