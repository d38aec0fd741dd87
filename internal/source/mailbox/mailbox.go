package mailbox

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"
	"github.com/jhillyerd/enmime"

	"toursync/internal/config"
)

// Puller downloads spreadsheet attachments from an IMAP mailbox into a local
// inbox directory, where the xlsx file source picks them up for syncing.
type Puller struct {
	host     string
	port     int
	secure   bool
	user     string
	password string
	markSeen bool
	mailbox  string
}

type PulledFile struct {
	Path      string
	MessageID string
	Subject   string
	From      string
}

func NewPuller(cfg config.Config) (*Puller, error) {
	if err := cfg.Require("IMAP_HOST", cfg.IMAPHost); err != nil {
		return nil, err
	}
	if err := cfg.Require("IMAP_USER", cfg.IMAPUser); err != nil {
		return nil, err
	}
	if err := cfg.Require("IMAP_PASSWORD", cfg.IMAPPassword); err != nil {
		return nil, err
	}

	return &Puller{
		host:     cfg.IMAPHost,
		port:     cfg.IMAPPort,
		secure:   cfg.IMAPSecure,
		user:     cfg.IMAPUser,
		password: cfg.IMAPPassword,
		markSeen: cfg.IMAPMarkSeen,
		mailbox:  cfg.IMAPMailbox,
	}, nil
}

func (p *Puller) PullAttachments(destDir string, max int) ([]PulledFile, error) {
	addr := fmt.Sprintf("%s:%d", p.host, p.port)
	var client *imapclient.Client
	var err error
	if p.secure {
		client, err = imapclient.DialTLS(addr, &tls.Config{ServerName: p.host})
	} else {
		client, err = imapclient.Dial(addr)
	}
	if err != nil {
		return nil, err
	}
	defer client.Logout()

	if err := client.Login(p.user, p.password); err != nil {
		return nil, err
	}
	if _, err := client.Select(p.mailbox, false); err != nil {
		return nil, err
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	ids, err := client.Search(criteria)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > max {
		ids = ids[len(ids)-max:]
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}
	messages := make(chan *imap.Message, len(ids))
	fetchDone := make(chan error, 1)
	go func() { fetchDone <- client.Fetch(seqset, items, messages) }()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, err
	}

	out := []PulledFile{}
	for msg := range messages {
		if msg == nil {
			continue
		}
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		raw, err := io.ReadAll(body)
		if err != nil {
			return nil, err
		}

		messageID := ""
		subject := ""
		from := ""
		if msg.Envelope != nil {
			messageID = msg.Envelope.MessageId
			subject = msg.Envelope.Subject
			from = formatAddresses(msg.Envelope.From)
		}
		if messageID == "" {
			messageID = fmt.Sprintf("imap-%d", msg.Uid)
		}

		saved, err := saveSpreadsheetAttachments(raw, destDir, messageID)
		if err != nil {
			return nil, err
		}
		for _, path := range saved {
			out = append(out, PulledFile{Path: path, MessageID: messageID, Subject: subject, From: from})
		}

		if p.markSeen && len(saved) > 0 {
			single := new(imap.SeqSet)
			single.AddNum(msg.SeqNum)
			item := imap.FormatFlagsOp(imap.AddFlags, true)
			flags := []interface{}{imap.SeenFlag}
			if err := client.Store(single, item, flags, nil); err != nil {
				return nil, err
			}
		}
	}

	if err := <-fetchDone; err != nil {
		return nil, err
	}

	return out, nil
}

func saveSpreadsheetAttachments(raw []byte, destDir, messageID string) ([]string, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	saved := []string{}
	for _, att := range env.Attachments {
		filename := strings.TrimSpace(att.FileName)
		lower := strings.ToLower(filename)
		if !strings.HasSuffix(lower, ".xlsx") && !strings.HasSuffix(lower, ".xls") {
			continue
		}

		path := filepath.Join(destDir, sanitize(messageID)+"_"+sanitize(filename))
		if err := os.WriteFile(path, att.Content, 0o644); err != nil {
			return nil, err
		}
		saved = append(saved, path)
	}
	return saved, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

func sanitize(name string) string {
	return unsafeChars.ReplaceAllString(name, "_")
}

func formatAddresses(addrs []*imap.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a == nil {
			continue
		}
		email := strings.Trim(strings.Join([]string{a.MailboxName, a.HostName}, "@"), "@")
		if a.PersonalName != "" {
			parts = append(parts, fmt.Sprintf("%s <%s>", a.PersonalName, email))
		} else {
			parts = append(parts, email)
		}
	}
	return strings.Join(parts, ", ")
}
