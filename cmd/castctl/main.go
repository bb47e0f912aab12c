// Command castctl runs operator tasks against a castboard deployment:
// applying SQLite migrations and minting access tokens for testing.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/castboard/castboard/internal/database"
	"github.com/castboard/castboard/internal/models"
	"github.com/castboard/castboard/internal/tokens"
	"github.com/castboard/castboard/pkg/logger"
	"github.com/jessevdk/go-flags"
)

type migrateCmd struct {
	SQLitePath string `long:"sqlite-path" env:"SQLITE_PATH" default:"castboard.db" description:"path to the SQLite database"`
}

func (c *migrateCmd) Execute([]string) error {
	db, err := database.OpenSQLite(context.Background(), c.SQLitePath)
	if err != nil {
		return err
	}
	defer db.Close()
	version, dirty, err := database.MigrateSQLite(db)
	if err != nil {
		return err
	}
	logger.Infof("%s at schema version %d (dirty=%v)", c.SQLitePath, version, dirty)
	return nil
}

type tokenCmd struct {
	Secret string        `long:"secret" env:"JWT_SECRET" description:"HS256 signing secret"`
	Sub    string        `long:"sub" description:"subject" required:"true"`
	Name   string        `long:"name" description:"display name"`
	Email  string        `long:"email" description:"email address"`
	Roles  []string      `long:"role" description:"role to grant, repeatable"`
	TTL    time.Duration `long:"ttl" default:"1h" description:"token lifetime"`

	out io.Writer
}

func (c *tokenCmd) Execute([]string) error {
	if strings.TrimSpace(c.Sub) == "" {
		return errors.New("subject must not be empty")
	}
	p := &models.Principal{Sub: c.Sub, Name: c.Name, Email: c.Email}
	for _, r := range c.Roles {
		p.Roles = append(p.Roles, models.NormalizeRole(r))
	}
	tok, err := tokens.GenerateAccessToken(c.Secret, p, c.TTL)
	if err != nil {
		return err
	}
	out := c.out
	if out == nil {
		out = os.Stdout
	}
	_, err = fmt.Fprintln(out, tok)
	return err
}

type options struct {
	Migrate migrateCmd `command:"migrate" description:"apply SQLite schema migrations"`
	Token   tokenCmd   `command:"token" description:"print a signed access token"`
}

func run(args []string, out io.Writer) error {
	var opts options
	opts.Token.out = out
	p := flags.NewParser(&opts, flags.Default)
	_, err := p.ParseArgs(args)
	return err
}

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.SetOutput(os.Stderr, true)
	if err := run(os.Args[1:], os.Stdout); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
