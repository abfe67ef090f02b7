package gmail

import (
	"context"
	"encoding/base64"
	"fmt"

	"golang.org/x/oauth2"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/pushbox/internal/google"
)

// gmailUser is the special user ID addressing the authenticated mailbox.
const gmailUser = "me"

// Client wraps the Gmail Users service.
type Client struct {
	svc           *gmail.UsersService
	account       string
	tokenProvider google.TokenProvider
}

// Account returns the account name this client is associated with.
func (c *Client) Account() string {
	return c.account
}

// HasTokenForAccount checks if a valid OAuth token exists for the specified account.
func HasTokenForAccount(account string) bool {
	return google.HasTokenForAccount(account)
}

// HasToken checks if a valid OAuth token exists for the default account.
func HasToken() bool {
	return google.HasToken()
}

// NewClientForAccountWithProvider creates a new Gmail client for a specific
// account. The OAuth token is retrieved from the provided token provider.
func NewClientForAccountWithProvider(ctx context.Context, account string, tokenProvider google.TokenProvider) (*Client, error) {
	if tokenProvider == nil {
		return nil, fmt.Errorf("token provider cannot be nil")
	}

	token, err := tokenProvider.GetTokenForAccount(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to get Google OAuth token for account %s: %w", account, err)
	}

	conf := google.GetOAuthConfig()
	client := google.NewHTTPClient(ctx, conf.TokenSource(ctx, token))

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return &Client{
		svc:           svc.Users,
		account:       account,
		tokenProvider: tokenProvider,
	}, nil
}

// NewClientForAccount creates a new Gmail client using the default
// file-based token provider.
func NewClientForAccount(ctx context.Context, account string) (*Client, error) {
	return NewClientForAccountWithProvider(ctx, account, google.NewFileTokenProvider())
}

// NewClient creates a new Gmail client for the default account.
func NewClient(ctx context.Context) (*Client, error) {
	return NewClientForAccount(ctx, "default")
}

// NewClientFromAccessToken creates a Gmail client from a raw bearer token
// carried on an individual request. No refresh is possible; the token is
// used as-is.
func NewClientFromAccessToken(ctx context.Context, account, accessToken string) (*Client, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("access token cannot be empty")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	client := google.NewHTTPClient(ctx, ts)

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return &Client{
		svc:           svc.Users,
		account:       account,
		tokenProvider: google.NewStaticTokenProvider(accessToken),
	}, nil
}

// GetProfile returns the mailbox profile: address, current history cursor
// and message totals.
func (c *Client) GetProfile(ctx context.Context) (*Profile, error) {
	profile, err := c.svc.GetProfile(gmailUser).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get Gmail profile: %w", err)
	}
	return toProfile(profile), nil
}

// ForeachThread iterates over all threads matching the query.
func (c *Client) ForeachThread(ctx context.Context, q string, fn func(*gmail.Thread) error) error {
	pageToken := ""
	for {
		req := c.svc.Threads.List(gmailUser).Q(q).Context(ctx)
		if pageToken != "" {
			req.PageToken(pageToken)
		}
		res, err := req.Do()
		if err != nil {
			return err
		}
		for _, t := range res.Threads {
			if err := fn(t); err != nil {
				return err
			}
		}
		if res.NextPageToken == "" {
			return nil
		}
		pageToken = res.NextPageToken
	}
}

// GetThread retrieves a full Gmail thread with all its messages.
func (c *Client) GetThread(ctx context.Context, threadID string) (*gmail.Thread, error) {
	thread, err := c.svc.Threads.Get(gmailUser, threadID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get thread %s: %w", threadID, err)
	}
	return thread, nil
}

// GetMessage retrieves a single message with full payload.
func (c *Client) GetMessage(ctx context.Context, messageID string) (*gmail.Message, error) {
	msg, err := c.svc.Messages.Get(gmailUser, messageID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", messageID, err)
	}
	return msg, nil
}

// GetMessageSummary retrieves a message and reduces it to its headers and a
// plain-text snippet.
func (c *Client) GetMessageSummary(ctx context.Context, messageID string) (*MessageSummary, error) {
	msg, err := c.svc.Messages.Get(gmailUser, messageID).Format("metadata").
		MetadataHeaders("From", "To", "Subject", "Date").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", messageID, err)
	}
	return toMessageSummary(msg), nil
}

// ArchiveThread archives a thread by removing the INBOX label.
func (c *Client) ArchiveThread(ctx context.Context, tid string) error {
	_, err := c.svc.Threads.Modify(gmailUser, tid, &gmail.ModifyThreadRequest{
		RemoveLabelIds: []string{"INBOX"},
	}).Context(ctx).Do()
	return err
}

// UnarchiveThread moves a thread back to inbox by adding the INBOX label.
func (c *Client) UnarchiveThread(ctx context.Context, tid string) error {
	_, err := c.svc.Threads.Modify(gmailUser, tid, &gmail.ModifyThreadRequest{
		AddLabelIds: []string{"INBOX"},
	}).Context(ctx).Do()
	return err
}

// SendEmail sends a plain-text email from the authenticated account.
func (c *Client) SendEmail(ctx context.Context, to, subject, body string) (*gmail.Message, error) {
	raw := fmt.Sprintf("To: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n%s", to, subject, body)

	msg := &gmail.Message{
		Raw: base64.RawURLEncoding.EncodeToString([]byte(raw)),
	}

	sent, err := c.svc.Messages.Send(gmailUser, msg).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to send email: %w", err)
	}
	return sent, nil
}
