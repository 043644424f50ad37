// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package remote

import (
	"regexp"
	"strings"
)

// EntryType tells directories from everything else in a listing.
type EntryType int

const (
	EntryFile EntryType = iota
	EntryDir
)

func (t EntryType) String() string {
	if t == EntryDir {
		return "dir"
	}
	return "file"
}

// Entry is one name in a remote directory listing.
type Entry struct {
	Name string
	Type EntryType
}

func (e Entry) IsDir() bool { return e.Type == EntryDir }

// listLineRE matches a Unix long-format listing line: permission bits, link
// count, owner, group, size, month, day, time-or-year and the name, which
// runs to the end of the line. The first permission character carries the
// entry type. A trailing ACL or SELinux marker on the permissions is allowed.
var listLineRE = regexp.MustCompile(`^([drwx-])[drwx-]*[.+@]?\s+\d+\s+\S+\s+\S+\s+\d+\s+\w+\s+\d+\s+[\d:]+\s+(.+)$`)

var batchTagRE = regexp.MustCompile(`^\d{12}$`)

// ParseListLine extracts the entry from a single long-format listing line.
// ok is false when the line does not have the expected shape.
func ParseListLine(line string) (Entry, bool) {
	m := listLineRE.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
	if m == nil {
		return Entry{}, false
	}
	e := Entry{Name: m[2], Type: EntryFile}
	if m[1] == "d" {
		e.Type = EntryDir
	}
	return e, true
}

// ParseListing parses long-format listing lines. Lines that do not match,
// such as the "total" header, are dropped, as are "." and "..".
func ParseListing(lines []string) []Entry {
	out := make([]Entry, 0, len(lines))
	for _, line := range lines {
		e, ok := ParseListLine(line)
		if !ok || e.Name == "." || e.Name == ".." {
			continue
		}
		out = append(out, e)
	}
	return out
}

// IsBatchTag reports whether name is a batch timestamp tag: exactly twelve
// ASCII digits.
func IsBatchTag(name string) bool {
	return batchTagRE.MatchString(name)
}
