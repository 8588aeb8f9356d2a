package applier

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
)

// chown applies the configured owner and group to path. With neither
// configured it is a no-op, so unprivileged runs stay possible.
func (a *Applier) chown(path string) error {
	if a.opts.Owner == "" && a.opts.Group == "" {
		return nil
	}

	uid, gid := -1, -1
	if a.opts.Owner != "" {
		u, err := user.Lookup(a.opts.Owner)
		if err != nil {
			return fmt.Errorf("lookup owner %q: %w", a.opts.Owner, err)
		}
		uid, err = strconv.Atoi(u.Uid)
		if err != nil {
			return fmt.Errorf("owner %q has non-numeric uid %q", a.opts.Owner, u.Uid)
		}
	}
	if a.opts.Group != "" {
		g, err := user.LookupGroup(a.opts.Group)
		if err != nil {
			return fmt.Errorf("lookup group %q: %w", a.opts.Group, err)
		}
		gid, err = strconv.Atoi(g.Gid)
		if err != nil {
			return fmt.Errorf("group %q has non-numeric gid %q", a.opts.Group, g.Gid)
		}
	}

	if err := os.Chown(path, uid, gid); err != nil {
		return fmt.Errorf("chown %s: %w", path, err)
	}
	return nil
}
