// Package ldap looks people up in the campus directory.
package ldap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/coursecap-api/internal/models"
)

// ErrNotFound is returned when no directory entry matches a uid.
var ErrNotFound = errors.New("ldap: person not found")

var personAttributes = []string{"uid", "givenName", "sn", "mail", "berkeleyEduOfficialEmail", "berkeleyEduAffiliations"}

// Config configures the directory connection.
type Config struct {
	Host     string
	Port     int
	Bind     string
	Password string
	BaseDN   string
	Timeout  time.Duration
}

type conn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Close() error
}

// Directory performs uid lookups, opening one connection per lookup.
type Directory struct {
	cfg    Config
	dial   func(ctx context.Context) (conn, error)
	logger *zap.Logger
}

// New constructs a Directory.
func New(cfg Config, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Port == 0 {
		cfg.Port = 636
	}
	d := &Directory{cfg: cfg, logger: logger}
	d.dial = d.dialTLS
	return d
}

// FindPerson returns the directory entry of uid.
func (d *Directory) FindPerson(ctx context.Context, uid string) (*models.DirectoryPerson, error) {
	c, err := d.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := c.Close(); err != nil {
			d.logger.Debug("ldap close failed", zap.Error(err))
		}
	}()

	if d.cfg.Bind != "" {
		if err := c.Bind(d.cfg.Bind, d.cfg.Password); err != nil {
			return nil, fmt.Errorf("ldap bind: %w", err)
		}
	}

	timeLimit := int(d.cfg.Timeout / time.Second)
	req := ldap.NewSearchRequest(
		d.cfg.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 1, timeLimit, false,
		fmt.Sprintf("(uid=%s)", ldap.EscapeFilter(uid)),
		personAttributes,
		nil,
	)
	result, err := c.Search(req)
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ldap search %s: %w", uid, err)
	}
	if len(result.Entries) == 0 {
		return nil, ErrNotFound
	}
	return personFromEntry(result.Entries[0]), nil
}

func personFromEntry(entry *ldap.Entry) *models.DirectoryPerson {
	expired := false
	for _, affiliation := range entry.GetAttributeValues("berkeleyEduAffiliations") {
		if strings.Contains(strings.ToUpper(affiliation), "EXPIRED") {
			expired = true
			break
		}
	}
	return &models.DirectoryPerson{
		UID:          entry.GetAttributeValue("uid"),
		FirstName:    entry.GetAttributeValue("givenName"),
		LastName:     entry.GetAttributeValue("sn"),
		Email:        entry.GetAttributeValue("mail"),
		CampusEmail:  entry.GetAttributeValue("berkeleyEduOfficialEmail"),
		ExpiredPerDS: expired,
	}
}

func (d *Directory) dialTLS(ctx context.Context) (conn, error) {
	address := fmt.Sprintf("ldaps://%s", net.JoinHostPort(d.cfg.Host, fmt.Sprint(d.cfg.Port)))
	c, err := ldap.DialURL(address, ldap.DialWithDialer(&net.Dialer{Timeout: d.cfg.Timeout}))
	if err != nil {
		return nil, fmt.Errorf("ldap dial %s: %w", address, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		c.SetTimeout(time.Until(deadline))
	}
	return c, nil
}
