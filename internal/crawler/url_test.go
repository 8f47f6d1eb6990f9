package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "plain host", in: "https://example.com/path?q=1", want: "https://example.com"},
		{name: "keeps port", in: "http://example.com:8080/x", want: "http://example.com:8080"},
		{name: "lowercases", in: "HTTPS://Example.COM/Path", want: "https://example.com"},
		{name: "no scheme", in: "example.com/path", wantErr: true},
		{name: "relative path", in: "/just/a/path", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BaseURL(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBaseURLOrSelf(t *testing.T) {
	assert.Equal(t, "https://example.com", baseURLOrSelf("https://example.com/deep/page"))
	assert.Equal(t, "not a url at all", baseURLOrSelf("not a url at all"))
}

func TestIsHTTP(t *testing.T) {
	assert.True(t, isHTTP("http://example.com"))
	assert.True(t, isHTTP("https://example.com"))
	assert.False(t, isHTTP("ftp://example.com"))
	assert.False(t, isHTTP("mailto:someone@example.com"))
	assert.False(t, isHTTP("javascript:void(0)"))
}

func TestValidLink(t *testing.T) {
	assert.True(t, validLink("https://example.com/page"))
	assert.False(t, validLink("https://"))
	assert.False(t, validLink("http://%zz"))
}
