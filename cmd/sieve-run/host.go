package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/migadu/sievevm"
	"github.com/migadu/sievevm/interp"
)

// dupStore tracks duplicate ids in sqlite, honoring per-test expiry.
type dupStore struct {
	db *sql.DB
}

const defaultDupExpiry = 7 * 24 * time.Hour

func openDupStore(path string) (*dupStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS seen (
		id      TEXT PRIMARY KEY,
		expires INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &dupStore{db: db}, nil
}

func (s *dupStore) Close() error { return s.db.Close() }

// Seen reports whether id was tracked and not yet expired, then records it.
// With last, the expiry window restarts on every occurrence.
func (s *dupStore) Seen(id, handle string, seconds uint64, last bool) (bool, error) {
	if handle != "" {
		id = handle + "\x00" + id
	}
	if seconds == 0 {
		seconds = uint64(defaultDupExpiry / time.Second)
	}
	now := time.Now().Unix()

	var expires int64
	seen := false
	err := s.db.QueryRow(`SELECT expires FROM seen WHERE id = ?`, id).Scan(&expires)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return false, err
	default:
		seen = expires > now
	}

	if !seen || last {
		_, err = s.db.Exec(`INSERT INTO seen (id, expires) VALUES (?, ?)
			ON CONFLICT(id) DO UPDATE SET expires = excluded.expires`,
			id, now+int64(seconds))
		if err != nil {
			return false, err
		}
	}
	return seen, nil
}

// host executes the event stream for one message.
type host struct {
	log  *logrus.Logger
	cfg  *Config
	opts sievevm.Options
	dups *dupStore
}

func (h *host) run(rt *sievevm.Runtime, program *sievevm.Sieve, msg []byte, from, to string) error {
	ctx := sievevm.NewContext(rt, msg)
	ctx.SetEnvelope(interp.EnvelopeFrom, from)
	ctx.SetEnvelope(interp.EnvelopeTo, to)

	in := sievevm.InputScript("", program)
	for {
		ev, err := ctx.Run(in)
		if err != nil {
			return err
		}
		if ev == nil {
			break
		}
		if in, err = h.handleEvent(ev); err != nil {
			return err
		}
	}

	h.log.WithFields(logrus.Fields{
		"implicit_keep": ctx.ImplicitKeep(),
		"flags":         ctx.Flags(),
		"header_edits":  len(ctx.HeaderInsertions()) + len(ctx.HeaderDeletions()),
	}).Info("script finished")
	return nil
}

func (h *host) handleEvent(ev sievevm.Event) (sievevm.Input, error) {
	switch ev := ev.(type) {
	case interp.EventKeep:
		h.log.WithField("flags", ev.Flags).Info("keep")
	case interp.EventFileInto:
		h.log.WithFields(logrus.Fields{
			"folder": ev.Folder,
			"copy":   ev.Copy,
			"create": ev.Create,
			"flags":  ev.Flags,
		}).Info("fileinto")
	case interp.EventRedirect:
		h.log.WithFields(logrus.Fields{
			"address": ev.Address,
			"copy":    ev.Copy,
		}).Info("redirect")
	case interp.EventReject:
		h.log.WithFields(logrus.Fields{
			"reason":  ev.Reason,
			"ereject": ev.Ereject,
		}).Info("reject")
	case interp.EventNotify:
		h.log.WithFields(logrus.Fields{
			"method":  ev.Method,
			"message": ev.Message,
		}).Info("notify")
	case interp.EventVacation:
		h.log.WithFields(logrus.Fields{
			"subject": ev.Subject,
			"handle":  ev.Handle,
			"seconds": ev.Seconds,
		}).Info("vacation")
	case interp.EventSetFlag:
		h.log.WithField("flags", ev.Flags).Info("setflag")
	case interp.EventAddFlag:
		h.log.WithField("flags", ev.Flags).Info("addflag")
	case interp.EventRemoveFlag:
		h.log.WithField("flags", ev.Flags).Info("removeflag")

	case interp.EventDuplicateId:
		seen, err := h.dups.Seen(ev.Id, ev.Handle, ev.Seconds, ev.Last)
		if err != nil {
			return sievevm.InputFalse, err
		}
		h.log.WithFields(logrus.Fields{"id": ev.Id, "seen": seen}).Debug("duplicate")
		if seen {
			return sievevm.InputTrue, nil
		}
		return sievevm.InputFalse, nil

	case interp.EventListContains:
		for _, list := range ev.Lists {
			for _, member := range h.cfg.Lists[list] {
				for _, v := range ev.Values {
					if v == member {
						return sievevm.InputTrue, nil
					}
				}
			}
		}
		return sievevm.InputFalse, nil

	case interp.EventEnvironmentGet:
		// Unknown environment items never match.
		h.log.WithField("name", ev.Name).Debug("environment item not set")
		return sievevm.InputFalse, nil

	case interp.EventSpamTest, interp.EventVirusTest:
		// No score configured; treat as not matching.
		return sievevm.InputFalse, nil

	case interp.EventIncludeScript:
		return h.includeScript(ev)

	case interp.EventTestCommand:
		h.log.WithFields(logrus.Fields{
			"command": ev.Command,
			"params":  ev.Params,
		}).Info("test command")
	}
	return sievevm.InputTrue, nil
}

func (h *host) includeScript(ev interp.EventIncludeScript) (sievevm.Input, error) {
	path := filepath.Join(h.cfg.ScriptsDir, ev.Name+".sieve")
	data, err := os.ReadFile(path)
	if err != nil {
		if ev.Optional && os.IsNotExist(err) {
			h.log.WithField("name", ev.Name).Debug("optional include missing")
			return sievevm.InputFalse, nil
		}
		return sievevm.InputFalse, fmt.Errorf("include %q: %w", ev.Name, err)
	}
	script, err := sievevm.CompileBytes(data, h.opts)
	if err != nil {
		return sievevm.InputFalse, fmt.Errorf("include %q: %w", ev.Name, err)
	}
	h.log.WithField("name", ev.Name).Debug("included script loaded")
	return sievevm.InputScript(ev.Name, script), nil
}
