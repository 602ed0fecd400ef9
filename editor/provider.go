package editor

import (
	"context"
	"errors"
	"fmt"

	"github.com/caffeineduck/rise/share"
	"go.uber.org/zap"
)

// Origin says where the initial source came from.
type Origin int

const (
	OriginEmpty Origin = iota
	OriginShare
	OriginDraft
)

func (o Origin) String() string {
	switch o {
	case OriginShare:
		return "share"
	case OriginDraft:
		return "draft"
	default:
		return "empty"
	}
}

// Source is the text an editor opens with.
type Source struct {
	Text   string
	Origin Origin
}

// ResolveSource picks the initial source: the share parameter of pageURL if
// present (even when empty), otherwise a non-empty saved draft, otherwise
// nothing. drafts may be nil.
//
// A malformed page URL or a failed draft load does not stop resolution;
// the returned error reports what was skipped alongside the Source used.
func ResolveSource(ctx context.Context, pageURL string, drafts Drafts) (Source, error) {
	var errs []error

	if pageURL != "" {
		code, ok, err := share.Decode(pageURL)
		switch {
		case err != nil:
			errs = append(errs, err)
		case ok:
			return Source{Text: code, Origin: OriginShare}, nil
		}
	}

	if drafts != nil {
		saved, ok, err := drafts.Load(ctx)
		switch {
		case err != nil:
			errs = append(errs, err)
		case ok && saved != "":
			return Source{Text: saved, Origin: OriginDraft}, errors.Join(errs...)
		}
	}

	return Source{Origin: OriginEmpty}, errors.Join(errs...)
}

// Bootstrap loads the initial source into a fresh session and hides the
// output, as a page does when it first opens.
func Bootstrap(ctx context.Context, s *EditorSession, pageURL string) (Source, error) {
	if s.Closed() {
		return Source{}, ErrSessionClosed
	}
	src, err := ResolveSource(ctx, pageURL, s.drafts)
	if err != nil {
		s.logger.Warn("initial source partly unavailable", zap.Error(err))
	}
	if src.Origin != OriginEmpty {
		s.ReplaceText(src.Text)
	}
	s.SetOutputVisible(false)
	s.logger.Debug("session bootstrapped",
		zap.Stringer("origin", src.Origin),
		zap.Int("bytes", len(src.Text)))
	return src, nil
}

// PageURL joins a base URL with a raw query string.
func PageURL(base, rawQuery string) string {
	if rawQuery == "" {
		return base
	}
	return fmt.Sprintf("%s?%s", base, rawQuery)
}
