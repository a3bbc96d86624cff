package video_wall

import (
	"errors"
	"net/url"
	"strings"
	"text/template"

	"github.com/alanbriolat/video-wall/generic"
	"github.com/alanbriolat/video-wall/util"
)

var ErrEmptyToken = errors.New("empty token")

// A URLTemplate renders an operator-supplied token into a full playback URL, e.g.
// "https://hd-auth.skylinewebcams.com/live.m3u8?a={{.Token}}&vid=6".
type URLTemplate struct {
	source   string
	template *template.Template
}

type urlTemplateArgs struct {
	FeedID FeedID
	Token  string
}

func ParseURLTemplate(name string, s string) (*URLTemplate, error) {
	t, err := template.New(name).Option("missingkey=error").Parse(s)
	if err != nil {
		return nil, err
	}
	return &URLTemplate{source: s, template: t}, nil
}

func MustParseURLTemplate(name string, s string) *URLTemplate {
	return generic.Unwrap(ParseURLTemplate(name, s))
}

func (t *URLTemplate) String() string {
	return t.source
}

// Render the token into a URL. The token is query-escaped, and the result must be an absolute http(s) URL.
func (t *URLTemplate) Render(feedID FeedID, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrEmptyToken
	}
	args := urlTemplateArgs{FeedID: feedID, Token: url.QueryEscape(token)}
	builder := strings.Builder{}
	if err := t.template.Execute(&builder, &args); err != nil {
		return "", err
	}
	result := builder.String()
	if !util.IsHTTPURL(result) {
		return "", util.ErrInvalidURL
	}
	return result, nil
}

func (t *URLTemplate) MarshalText() ([]byte, error) {
	return []byte(t.source), nil
}

func (t *URLTemplate) UnmarshalText(text []byte) error {
	parsed, err := ParseURLTemplate("url", string(text))
	if err != nil {
		return err
	}
	*t = *parsed
	return nil
}
