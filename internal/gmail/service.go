package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/eriksjaastad/pptmail-mcp-go/internal/logger"
)

const user = "me"

// Summary is one line of an inbox listing.
type Summary struct {
	ID      string
	From    string
	Subject string
}

// Mailbox is the slice of Gmail the tools need.
type Mailbox interface {
	Send(ctx context.Context, raw []byte) (string, error)
	ListUnread(ctx context.Context, max int64) ([]Summary, error)
	MarkRead(ctx context.Context, id string) error
}

// Service is a Mailbox backed by the Gmail API.
type Service struct {
	api *gmailapi.Service
}

// NewService authorizes with the OAuth client file at credsPath and the
// stored token at tokenPath. Refreshed tokens are written back to tokenPath.
func NewService(ctx context.Context, credsPath, tokenPath string) (*Service, error) {
	creds, err := os.ReadFile(credsPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	config, err := google.ConfigFromJSON(creds, gmailapi.GmailModifyScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	tok, err := LoadToken(tokenPath)
	if err != nil {
		return nil, err
	}

	src := &savingTokenSource{
		base: config.TokenSource(ctx, tok),
		path: tokenPath,
		last: tok.AccessToken,
	}
	client := oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src))
	return newService(ctx, option.WithHTTPClient(client))
}

func newService(ctx context.Context, opts ...option.ClientOption) (*Service, error) {
	api, err := gmailapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return &Service{api: api}, nil
}

func (s *Service) Send(ctx context.Context, raw []byte) (string, error) {
	msg, err := s.api.Users.Messages.Send(user, &gmailapi.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return msg.Id, nil
}

func (s *Service) ListUnread(ctx context.Context, max int64) ([]Summary, error) {
	list, err := s.api.Users.Messages.List(user).Q("is:unread").MaxResults(max).Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(list.Messages))
	for _, m := range list.Messages {
		msg, err := s.api.Users.Messages.Get(user, m.Id).
			Format("metadata").
			MetadataHeaders("From", "Subject").
			Context(ctx).
			Do()
		if err != nil {
			return nil, fmt.Errorf("get message %s: %w", m.Id, err)
		}
		sum := Summary{ID: msg.Id}
		if msg.Payload != nil {
			for _, h := range msg.Payload.Headers {
				switch h.Name {
				case "From":
					sum.From = h.Value
				case "Subject":
					sum.Subject = h.Value
				}
			}
		}
		summaries = append(summaries, sum)
	}
	return summaries, nil
}

func (s *Service) MarkRead(ctx context.Context, id string) error {
	_, err := s.api.Users.Messages.Modify(user, id, &gmailapi.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	return err
}

// storedToken accepts both the oauth2 token layout and the one written by
// Google's Python auth library.
type storedToken struct {
	AccessToken  string `json:"access_token,omitempty"`
	Token        string `json:"token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	Expiry       string `json:"expiry,omitempty"`
}

// LoadToken reads an OAuth token file.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	var st storedToken
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse token %s: %w", path, err)
	}

	tok := &oauth2.Token{
		AccessToken:  st.AccessToken,
		RefreshToken: st.RefreshToken,
		TokenType:    st.TokenType,
	}
	if tok.AccessToken == "" {
		tok.AccessToken = st.Token
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("token %s has neither access nor refresh token", path)
	}
	if st.Expiry != "" {
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999"} {
			if t, err := time.Parse(layout, st.Expiry); err == nil {
				tok.Expiry = t
				break
			}
		}
	}
	if tok.Expiry.IsZero() && tok.RefreshToken != "" {
		// unknown expiry: refresh on first use rather than trust it forever
		tok.Expiry = time.Unix(1, 0)
	}
	return tok, nil
}

// SaveToken writes tok in the oauth2 layout.
func SaveToken(path string, tok *oauth2.Token) error {
	data, err := json.MarshalIndent(storedToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry.Format(time.RFC3339Nano),
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

type savingTokenSource struct {
	base oauth2.TokenSource
	path string

	mu   sync.Mutex
	last string
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := SaveToken(s.path, tok); err != nil {
			logger.Warn("Failed to persist refreshed token", "path", s.path, "error", err)
		}
	}
	return tok, nil
}
