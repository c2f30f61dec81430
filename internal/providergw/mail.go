package providergw

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"strconv"
	"sync"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	"github.com/lutendolukhele/intentorch/internal/retry"
)

// MailConnectionConfig is the per-connectionId credential set a MailAdapter
// needs to reach one user's mailbox over IMAP (cache path) and SMTP
// (action path).
type MailConnectionConfig struct {
	IMAPAddr string
	SMTPAddr string
	Username string
	Password string
	From     string
}

// MailConnectionResolver looks up credentials for a connectionId; deployments
// back this with whatever secret store they use.
type MailConnectionResolver interface {
	ResolveMailConnection(connectionID string) (MailConnectionConfig, error)
}

// MailAdapter backs fetch_emails/send_email-style tools: IMAP for the
// cache-path fetch (grounded on the retrieval pack's
// nugget-thane-ai-agent manifest, which wires emersion/go-imap/v2 and
// emersion/go-message for exactly this purpose) and SMTP for outbound
// composition on the action path.
type MailAdapter struct {
	resolver MailConnectionResolver

	mu      sync.Mutex
	clients map[string]*imapclient.Client
}

// NewMailAdapter builds a MailAdapter over the given credential resolver.
func NewMailAdapter(resolver MailConnectionResolver) *MailAdapter {
	return &MailAdapter{resolver: resolver, clients: make(map[string]*imapclient.Client)}
}

func (a *MailAdapter) client(ctx context.Context, connectionID string) (*imapclient.Client, MailConnectionConfig, error) {
	cfg, err := a.resolver.ResolveMailConnection(connectionID)
	if err != nil {
		return nil, cfg, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.clients[connectionID]; ok {
		return c, cfg, nil
	}

	var c *imapclient.Client
	dialResult := retry.Do(ctx, retry.DefaultConfig(), func() error {
		conn, dialErr := imapclient.DialTLS(cfg.IMAPAddr, nil)
		if dialErr != nil {
			return fmt.Errorf("imap dial: %w", dialErr)
		}
		if loginErr := conn.Login(cfg.Username, cfg.Password).Wait(); loginErr != nil {
			_ = conn.Close()
			return retry.Permanent(fmt.Errorf("imap login: %w", loginErr))
		}
		c = conn
		return nil
	})
	if dialResult.Err != nil {
		return nil, cfg, dialResult.Err
	}
	a.clients[connectionID] = c
	return c, cfg, nil
}

// Warm performs a lightweight NOOP against the mailbox's IMAP session.
func (a *MailAdapter) Warm(ctx context.Context, connectionID string) error {
	c, _, err := a.client(ctx, connectionID)
	if err != nil {
		return err
	}
	return c.Noop().Wait()
}

// FetchFromCache lists the most recently delivered messages in INBOX.
// model is expected to be "email"; query.Limit bounds the count and
// query.ModifiedAfter maps to an IMAP SINCE search criterion.
func (a *MailAdapter) FetchFromCache(ctx context.Context, connectionID, model string, query FetchQuery) ([]FetchedEntity, error) {
	c, _, err := a.client(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if _, err := c.Select("INBOX", nil).Wait(); err != nil {
		return nil, fmt.Errorf("imap select: %w", err)
	}

	criteria := &imap.SearchCriteria{}
	if query.ModifiedAfter != nil {
		criteria.Since = time.Unix(*query.ModifiedAfter, 0)
	}
	searchData, err := c.Search(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}

	seqNums := searchData.AllSeqNums()
	if query.Limit > 0 && len(seqNums) > query.Limit {
		seqNums = seqNums[len(seqNums)-query.Limit:]
	}
	if len(seqNums) == 0 {
		return nil, nil
	}

	var seqSet imap.SeqSet
	seqSet.AddNum(seqNums...)

	fetchOptions := &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{{Peek: true}},
	}
	cmd := c.Fetch(seqSet, fetchOptions)
	defer cmd.Close()

	var out []FetchedEntity
	for {
		msg := cmd.Next()
		if msg == nil {
			break
		}
		data, err := msg.Collect()
		if err != nil {
			return nil, fmt.Errorf("imap fetch collect: %w", err)
		}
		out = append(out, entityFromMessage(data))
	}
	return out, nil
}

func entityFromMessage(data *imapclient.FetchMessageData) FetchedEntity {
	from := ""
	subject := ""
	var date time.Time
	if data.Envelope != nil {
		subject = data.Envelope.Subject
		if len(data.Envelope.From) > 0 {
			from = data.Envelope.From[0].Addr()
		}
		date = data.Envelope.Date
	}

	body := ""
	for _, section := range data.BodySection {
		if section.Bytes != nil {
			if msg, err := mail.CreateReader(bytes.NewReader(section.Bytes)); err == nil {
				buf := make([]byte, 0, 4096)
				part, err := msg.NextPart()
				for err == nil {
					chunk := make([]byte, 4096)
					for {
						n, rerr := part.Body.Read(chunk)
						if n > 0 {
							buf = append(buf, chunk[:n]...)
						}
						if rerr != nil {
							break
						}
					}
					part, err = msg.NextPart()
				}
				body = string(buf)
			}
		}
	}

	return FetchedEntity{
		ID:   strconv.FormatUint(uint64(data.UID), 10),
		Type: "email",
		Body: map[string]any{
			"from":    from,
			"subject": subject,
			"date":    date.Unix(),
			"body":    body,
		},
		UpdatedAt: date.Unix(),
	}
}

// TriggerAction supports "send_email": {to, subject, body} over SMTP.
func (a *MailAdapter) TriggerAction(ctx context.Context, connectionID, actionName string, payload map[string]any) (map[string]any, error) {
	if actionName != "send_email" {
		return nil, fmt.Errorf("mail adapter: unsupported action %q", actionName)
	}
	cfg, err := a.resolver.ResolveMailConnection(connectionID)
	if err != nil {
		return nil, err
	}

	to, _ := payload["to"].(string)
	subject, _ := payload["subject"].(string)
	body, _ := payload["body"].(string)
	if to == "" {
		return nil, fmt.Errorf("mail adapter: send_email requires \"to\"")
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", cfg.From, to, subject, body)
	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, smtpHost(cfg.SMTPAddr))
	if err := smtp.SendMail(cfg.SMTPAddr, auth, cfg.From, []string{to}, []byte(msg)); err != nil {
		return nil, err
	}
	return map[string]any{"to": to, "subject": subject, "status": "sent"}, nil
}

func smtpHost(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i]
		}
	}
	return addr
}

// TriggerSync re-selects INBOX to force a fresh IMAP status refresh.
func (a *MailAdapter) TriggerSync(ctx context.Context, connectionID, syncName string) error {
	c, _, err := a.client(ctx, connectionID)
	if err != nil {
		return err
	}
	_, err = c.Select("INBOX", &imap.SelectOptions{ReadOnly: true}).Wait()
	return err
}
