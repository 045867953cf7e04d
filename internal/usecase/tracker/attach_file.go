package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	domainctt "ctt/internal/domain/ctt"
	"ctt/internal/errs"
)

// AttachFile copies a file into <attach_location>/<id>/<yyyy-mm-dd hh:mm>.<name> and
// returns the destination path.
func (s *Service) AttachFile(ctx context.Context, issueID uint64, path string, actor Actor) (string, error) {
	if err := s.check(ctx); err != nil {
		return "", err
	}
	if err := checkActor(actor); err != nil {
		return "", err
	}

	root := strings.TrimSpace(s.opts.AttachLocation)
	if root == "" {
		return "", errors.New("attach_location is not configured")
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return "", fmt.Errorf("attachment root %q does not exist", root)
	}
	src := strings.TrimSpace(path)
	if info, err := os.Stat(src); err != nil || info.IsDir() {
		return "", fmt.Errorf("file %q does not exist", src)
	}

	var dest string
	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.loadIssue(txCtx, issueID); err != nil {
			return err
		}

		now := s.timestamp()
		dir := filepath.Join(root, strconv.FormatUint(issueID, 10))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errs.Wrapf(err, "create attachment directory %q", dir)
		}
		dest = filepath.Join(dir, domainctt.ShortTime(now)+"."+filepath.Base(src))
		if err := copyFile(src, dest); err != nil {
			return err
		}
		return s.history(txCtx, issueID, actor.Name, now, "attached file "+filepath.Base(src))
	})
	if err != nil {
		return "", err
	}
	return dest, nil
}

func copyFile(src string, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return errs.Wrapf(err, "open %q", src)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return errs.Wrapf(err, "create %q", dest)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return errs.Wrapf(err, "copy %q", src)
	}
	if err := out.Close(); err != nil {
		return errs.Wrapf(err, "close %q", dest)
	}
	return nil
}
