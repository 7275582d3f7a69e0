package mailbox

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	id "github.com/emersion/go-imap-id"
	"github.com/sirupsen/logrus"

	"github.com/LeviWoodfall/Regia/internal/credentials"
	"github.com/LeviWoodfall/Regia/internal/database/models"
)

var (
	// ErrConnectionFailed indicates the IMAP transport could not be established
	ErrConnectionFailed = errors.New("IMAP connection failed")
	// ErrAuthFailed indicates the server rejected the credential
	ErrAuthFailed = errors.New("IMAP authentication failed")
	// ErrNotConnected indicates an operation was attempted without a session
	ErrNotConnected = errors.New("not connected")
	// ErrReadOnlyMailbox indicates a mutation was attempted on a read-only selection
	ErrReadOnlyMailbox = errors.New("mailbox selected read-only")
	// ErrProtocol indicates an unexpected response to a single command
	ErrProtocol = errors.New("unexpected IMAP response")
)

const (
	dialTimeout    = 10 * time.Second
	commandTimeout = 5 * time.Minute
)

// archiveFolders are conventional archive destinations, tried in order.
var archiveFolders = []string{"[Gmail]/All Mail", "Archive", "INBOX.Archive"}

// Connector manages one IMAP session against a remote mailbox.
// Selection defaults to read-only; mutations require an explicit writable
// Select and are otherwise refused.
type Connector struct {
	account  *models.MailAccount
	creds    credentials.Lookup
	client   *client.Client
	writable bool
	log      *logrus.Entry
}

// NewConnector creates a Connector for one account. The credential lookup
// is injected; the connector never consults global state.
func NewConnector(account *models.MailAccount, creds credentials.Lookup, log *logrus.Logger) *Connector {
	return &Connector{
		account: account,
		creds:   creds,
		log: log.WithFields(logrus.Fields{
			"account": account.Email,
			"server":  account.IMAPHost,
		}),
	}
}

// Connect dials the server and authenticates with the account's configured
// method. A missing credential fails before any network traffic.
func (c *Connector) Connect() error {
	kind := models.CredentialAppPassword
	if models.AuthMethod(c.account.AuthMethod) == models.AuthMethodOAuth2 {
		kind = models.CredentialOAuth2
	}

	// Credential absence is a hard stop, checked before dialing.
	cred, err := c.creds.Get(c.account, kind)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	addr := fmt.Sprintf("%s:%d", c.account.IMAPHost, c.account.IMAPPort)
	dialer := &net.Dialer{Timeout: dialTimeout}

	var conn net.Conn
	if c.account.UseSSL {
		tlsConfig := &tls.Config{ServerName: c.account.IMAPHost}
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, tlsConfig)
	} else {
		conn, err = dialer.Dial("tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	cl, err := client.New(conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	cl.Timeout = commandTimeout

	// Some providers require client identification before LOGIN.
	if ok, _ := cl.Support("ID"); ok {
		idClient := id.NewClient(cl)
		if _, err := idClient.ID(id.ID{
			id.FieldName:    "Regia",
			id.FieldVersion: "1.0.0",
			id.FieldVendor:  "Regia",
		}); err != nil {
			c.log.WithError(err).Debug("IMAP ID command failed")
		}
	}

	switch kind {
	case models.CredentialOAuth2:
		sasl := NewXOAuth2Client(c.account.Email, cred.AccessToken)
		if err := cl.Authenticate(sasl); err != nil {
			cl.Logout()
			return fmt.Errorf("%w: XOAUTH2: %v", ErrAuthFailed, err)
		}
	default:
		if err := cl.Login(c.account.Email, cred.Password); err != nil {
			cl.Logout()
			return fmt.Errorf("%w: %v", ErrAuthFailed, err)
		}
	}

	c.client = cl
	c.log.Info("connected")
	return nil
}

// Disconnect releases the session. It is safe to call on every exit path;
// logout errors are swallowed.
func (c *Connector) Disconnect() {
	if c.client == nil {
		return
	}
	if err := c.client.Logout(); err != nil {
		c.log.WithError(err).Debug("logout failed")
	}
	c.client = nil
	c.writable = false
}

// IsConnected performs a no-op round-trip; any failure means "not connected".
func (c *Connector) IsConnected() bool {
	if c.client == nil {
		return false
	}
	return c.client.Noop() == nil
}

// Select opens a folder and returns its message count. writable must stay
// false unless the account's post-action requires mutation.
func (c *Connector) Select(folder string, writable bool) (uint32, error) {
	if c.client == nil {
		return 0, ErrNotConnected
	}
	mbox, err := c.client.Select(folder, !writable)
	if err != nil {
		return 0, fmt.Errorf("%w: select %q: %v", ErrProtocol, folder, err)
	}
	c.writable = writable
	return mbox.Messages, nil
}

// Search returns message sequence numbers matching a status predicate:
// UNSEEN (default), ALL, SEEN or FLAGGED.
func (c *Connector) Search(status string) ([]uint32, error) {
	if c.client == nil {
		return nil, ErrNotConnected
	}

	criteria := imap.NewSearchCriteria()
	switch status {
	case "", "UNSEEN":
		criteria.WithoutFlags = []string{imap.SeenFlag}
	case "ALL":
		// no predicate
	case "SEEN":
		criteria.WithFlags = []string{imap.SeenFlag}
	case "FLAGGED":
		criteria.WithFlags = []string{imap.FlaggedFlag}
	default:
		return nil, fmt.Errorf("%w: unsupported search criteria %q", ErrProtocol, status)
	}

	seqNums, err := c.client.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", ErrProtocol, err)
	}
	return seqNums, nil
}

// SearchHeader re-locates messages by an exact header match, used for
// idempotent re-fetch by Message-Id.
func (c *Connector) SearchHeader(name, value string) ([]uint32, error) {
	if c.client == nil {
		return nil, ErrNotConnected
	}
	criteria := imap.NewSearchCriteria()
	criteria.Header.Add(name, value)
	seqNums, err := c.client.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("%w: header search: %v", ErrProtocol, err)
	}
	return seqNums, nil
}

// FetchFull retrieves the complete raw message, or nil if the server
// returned no data for the handle.
func (c *Connector) FetchFull(seqNum uint32) ([]byte, error) {
	section := &imap.BodySectionName{Peek: true}
	return c.fetchSection(seqNum, section)
}

// FetchHeaders retrieves only the message headers.
func (c *Connector) FetchHeaders(seqNum uint32) ([]byte, error) {
	section := &imap.BodySectionName{
		BodyPartName: imap.BodyPartName{Specifier: imap.HeaderSpecifier},
		Peek:         true,
	}
	return c.fetchSection(seqNum, section)
}

func (c *Connector) fetchSection(seqNum uint32, section *imap.BodySectionName) ([]byte, error) {
	if c.client == nil {
		return nil, ErrNotConnected
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(seqNum)

	items := []imap.FetchItem{section.FetchItem()}
	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)

	go func() {
		done <- c.client.Fetch(seqSet, items, messages)
	}()

	var raw []byte
	for msg := range messages {
		if msg == nil {
			continue
		}
		for _, literal := range msg.Body {
			content, err := io.ReadAll(literal)
			if err == nil && len(content) > 0 {
				raw = content
			}
		}
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("%w: fetch: %v", ErrProtocol, err)
	}
	return raw, nil
}

// MarkRead sets the \Seen flag. Requires a writable selection.
func (c *Connector) MarkRead(seqNum uint32) error {
	if err := c.checkWritable(); err != nil {
		return err
	}
	return c.store(seqNum, imap.AddFlags, imap.SeenFlag)
}

// Move copies the message to destFolder (creating it if missing), then
// flag-deletes and expunges the original. The copy always completes before
// the delete so a failure cannot lose the message.
func (c *Connector) Move(seqNum uint32, destFolder string) error {
	if err := c.checkWritable(); err != nil {
		return err
	}

	// Create is best-effort: an error usually means the folder exists.
	if err := c.client.Create(destFolder); err != nil {
		c.log.WithField("folder", destFolder).Debug("folder create skipped")
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(seqNum)
	if err := c.client.Copy(seqSet, destFolder); err != nil {
		return fmt.Errorf("%w: copy to %q: %v", ErrProtocol, destFolder, err)
	}

	if err := c.store(seqNum, imap.AddFlags, imap.DeletedFlag); err != nil {
		return err
	}
	return c.expunge()
}

// Delete flag-deletes the message and expunges.
func (c *Connector) Delete(seqNum uint32) error {
	if err := c.checkWritable(); err != nil {
		return err
	}
	if err := c.store(seqNum, imap.AddFlags, imap.DeletedFlag); err != nil {
		return err
	}
	return c.expunge()
}

// Archive tries the conventional archive folder names in order; the first
// successful copy wins. When none succeed the message is left untouched
// and the miss is logged, never treated as a failure.
func (c *Connector) Archive(seqNum uint32) error {
	if err := c.checkWritable(); err != nil {
		return err
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(seqNum)

	for _, folder := range archiveFolders {
		if err := c.client.Copy(seqSet, folder); err != nil {
			continue
		}
		if err := c.store(seqNum, imap.AddFlags, imap.DeletedFlag); err != nil {
			return err
		}
		return c.expunge()
	}

	c.log.WithField("seq", seqNum).Warn("no archive folder found; message left in place")
	return nil
}

// ListFolders returns the mailbox folder names.
func (c *Connector) ListFolders() ([]string, error) {
	if c.client == nil {
		return nil, ErrNotConnected
	}

	mailboxes := make(chan *imap.MailboxInfo, 20)
	done := make(chan error, 1)
	go func() {
		done <- c.client.List("", "*", mailboxes)
	}()

	var folders []string
	for m := range mailboxes {
		folders = append(folders, m.Name)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("%w: list: %v", ErrProtocol, err)
	}
	return folders, nil
}

func (c *Connector) checkWritable() error {
	if c.client == nil {
		return ErrNotConnected
	}
	if !c.writable {
		return ErrReadOnlyMailbox
	}
	return nil
}

func (c *Connector) store(seqNum uint32, op imap.FlagsOp, flag string) error {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(seqNum)
	item := imap.FormatFlagsOp(op, true)
	if err := c.client.Store(seqSet, item, []interface{}{flag}, nil); err != nil {
		return fmt.Errorf("%w: store: %v", ErrProtocol, err)
	}
	return nil
}

func (c *Connector) expunge() error {
	if err := c.client.Expunge(nil); err != nil {
		return fmt.Errorf("%w: expunge: %v", ErrProtocol, err)
	}
	return nil
}

// XOAuth2Client implements the SASL XOAUTH2 mechanism
type XOAuth2Client struct {
	Username    string
	AccessToken string
}

// NewXOAuth2Client creates a new XOAUTH2 SASL client
func NewXOAuth2Client(username, accessToken string) *XOAuth2Client {
	return &XOAuth2Client{
		Username:    username,
		AccessToken: accessToken,
	}
}

// Start begins the XOAUTH2 authentication
func (x *XOAuth2Client) Start() (mech string, ir []byte, err error) {
	// XOAUTH2 initial response: "user=" + user + "\x01auth=Bearer " + token + "\x01\x01"
	ir = []byte(fmt.Sprintf("user=%s\x01auth=Bearer %s\x01\x01", x.Username, x.AccessToken))
	return "XOAUTH2", ir, nil
}

// Next handles server challenges (XOAUTH2 has none)
func (x *XOAuth2Client) Next(challenge []byte) (response []byte, err error) {
	return nil, nil
}
