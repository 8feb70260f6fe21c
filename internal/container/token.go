package container

import (
	"bufio"
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// NotebookServer is one server reported by `jupyter server list`
type NotebookServer struct {
	URL   string // as seen from inside the container
	Token string
	Dir   string
}

// HostURL rewrites the server address for the published host port
func (s NotebookServer) HostURL(port int) string {
	u, err := url.Parse(s.URL)
	if err != nil || u.Host == "" {
		return fmt.Sprintf("http://localhost:%d/?token=%s", port, s.Token)
	}
	u.Host = fmt.Sprintf("localhost:%d", port)
	q := u.Query()
	q.Set("token", s.Token)
	u.RawQuery = q.Encode()
	return u.String()
}

// tokenCommands are tried in order; newer images only ship jupyter-server
var tokenCommands = [][]string{
	{"jupyter", "server", "list"},
	{"jupyter", "notebook", "list"},
}

var serverLine = regexp.MustCompile(`^(https?://\S+?)\?token=([0-9A-Za-z]+)\S*(?:\s+::\s+(.*))?$`)

// ParseServerList extracts running servers from `jupyter ... list` output.
// Lines without a token (headers, password-protected servers) are skipped.
func ParseServerList(output []byte) []NotebookServer {
	var servers []NotebookServer
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		m := serverLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		servers = append(servers, NotebookServer{
			URL:   m[1],
			Token: m[2],
			Dir:   strings.TrimSpace(m[3]),
		})
	}
	return servers
}
