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
	"context"
	"io"
	"time"

	"github.com/jlaffaye/ftp"
)

// FTPSession is a Session over a logged-in FTP control connection.
type FTPSession struct {
	conn *ftp.ServerConn
	addr string
}

var _ Session = (*FTPSession)(nil)

// DialFTP connects to ep and logs in with its credentials.
func DialFTP(ctx context.Context, ep Endpoint, timeout time.Duration) (*FTPSession, error) {
	addr := ep.Addr()
	conn, err := ftp.Dial(addr,
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(timeout),
	)
	if err != nil {
		return nil, transportErr("dial", addr, err)
	}
	if err := conn.Login(ep.User, ep.Password); err != nil {
		_ = conn.Quit()
		return nil, transportErr("login", addr, err)
	}
	return &FTPSession{conn: conn, addr: addr}, nil
}

func (s *FTPSession) List(ctx context.Context, dir string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := s.conn.List(dir)
	if err != nil {
		return nil, transportErr("list", dir, err)
	}
	return ftpEntries(raw), nil
}

func (s *FTPSession) Retrieve(ctx context.Context, path string, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	resp, err := s.conn.Retr(path)
	if err != nil {
		return transportErr("retrieve", path, err)
	}
	defer func() { _ = resp.Close() }()
	if _, err := io.Copy(w, resp); err != nil {
		return transportErr("retrieve", path, err)
	}
	return nil
}

func (s *FTPSession) Close() error {
	if err := s.conn.Quit(); err != nil {
		return transportErr("quit", s.addr, err)
	}
	return nil
}

// ftpEntries converts the library's parsed listing. The server already told
// us the type of each entry, so nothing is probed.
func ftpEntries(raw []*ftp.Entry) []Entry {
	out := make([]Entry, 0, len(raw))
	for _, e := range raw {
		if e == nil || e.Name == "." || e.Name == ".." {
			continue
		}
		t := EntryFile
		if e.Type == ftp.EntryTypeFolder {
			t = EntryDir
		}
		out = append(out, Entry{Name: e.Name, Type: t})
	}
	return out
}
