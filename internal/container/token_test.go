package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServerList(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   []NotebookServer
	}{
		{
			name: "jupyter server list",
			output: "Currently running servers:\n" +
				"http://b1c2d3e4f5a6:8888/?token=0123abcd :: /home/jovyan\n",
			want: []NotebookServer{{URL: "http://b1c2d3e4f5a6:8888/", Token: "0123abcd", Dir: "/home/jovyan"}},
		},
		{
			name: "several servers",
			output: "Currently running servers:\n" +
				"http://0.0.0.0:8888/?token=aaa :: /home/jovyan/work\n" +
				"http://0.0.0.0:8889/lab?token=bbb :: /tmp\n",
			want: []NotebookServer{
				{URL: "http://0.0.0.0:8888/", Token: "aaa", Dir: "/home/jovyan/work"},
				{URL: "http://0.0.0.0:8889/lab", Token: "bbb", Dir: "/tmp"},
			},
		},
		{
			name:   "no token",
			output: "Currently running servers:\nhttp://0.0.0.0:8888/ :: /home/jovyan\n",
			want:   nil,
		},
		{
			name:   "empty",
			output: "",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseServerList([]byte(tt.output)))
		})
	}
}

func TestHostURL(t *testing.T) {
	servers := ParseServerList([]byte("http://b1c2d3e4f5a6:8888/?token=abc :: /home/jovyan\n"))
	require.Len(t, servers, 1)
	assert.Equal(t, "http://localhost:9999/?token=abc", servers[0].HostURL(9999))
}
